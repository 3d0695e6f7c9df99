// Package application wires configuration, storage, downloads and the
// synchronizer into one value shared by the server and the CLI.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/mastersync/internal/config"
	"github.com/JonMunkholm/mastersync/internal/core"
	"github.com/JonMunkholm/mastersync/internal/fetch"
	"github.com/JonMunkholm/mastersync/internal/master"
	"github.com/JonMunkholm/mastersync/internal/store"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config   *config.Config
	Catalog  *master.Catalog
	Store    store.Store
	ErrorLog *core.ErrorLog
	Service  *core.Service
}

// New opens the store, creates every instrument table and builds the
// synchronizer. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	catalog, err := master.DefaultCatalog(cfg.Sync.MasterBaseURL)
	if err != nil {
		return nil, fmt.Errorf("build catalog: %w", err)
	}

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN(), store.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to instrument store", "driver", cfg.Database.Driver)

	if err := st.EnsureSchema(ctx, catalog.Models()); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	errLog, err := core.OpenErrorLog(cfg.ErrorLogPath(), cfg.ErrorLog.Tail)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open error log: %w", err)
	}

	svc, err := core.NewService(core.Options{
		Catalog: catalog,
		Store:   st,
		Downloader: fetch.NewDownloader(fetch.Options{
			Timeout:            cfg.Sync.DownloadTimeout,
			InsecureSkipVerify: cfg.Sync.InsecureSkipVerify,
		}),
		WorkDir:        cfg.Sync.WorkDir,
		ErrorLog:       errLog,
		LeaseWait:      cfg.Sync.LeaseWait,
		RefreshTimeout: cfg.Sync.RefreshTimeout,
	})
	if err != nil {
		errLog.Close()
		st.Close()
		return nil, err
	}

	slog.Info("catalog loaded",
		"tools", len(catalog.Tools()),
		"masters", catalog.MasterCount(),
		"models", len(catalog.Models()),
	)

	return &App{
		Config:   cfg,
		Catalog:  catalog,
		Store:    st,
		ErrorLog: errLog,
		Service:  svc,
	}, nil
}

// SchedulerConfig returns the scheduler settings from the configuration.
func (a *App) SchedulerConfig() core.SchedulerConfig {
	return core.SchedulerConfig{
		Interval:   a.Config.Sync.RefreshInterval,
		RunOnStart: a.Config.Sync.RefreshOnStart,
	}
}

// Close flushes the error log and closes the store.
func (a *App) Close() error {
	return errors.Join(a.ErrorLog.Close(), a.Store.Close())
}
