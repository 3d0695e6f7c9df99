// Command masterctl refreshes and queries master files from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/mastersync/internal/application"
	"github.com/JonMunkholm/mastersync/internal/config"
	"github.com/JonMunkholm/mastersync/internal/logging"
)

// app is built by the root command before any subcommand runs.
var app *application.App

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if app != nil {
		if cerr := app.Close(); cerr != nil {
			slog.Warn("close failed", "error", cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "masterctl",
		Short:         "Synchronize and query brokerage master files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("load %s: %w", envFile, err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			slog.Debug("configuration loaded", "config", cfg.String())

			app, err = application.New(cmd.Context(), cfg)
			return err
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	rootCmd.AddCommand(
		newToolsCmd(),
		newRefreshCmd(),
		newStatusCmd(),
		newResolveCmd(),
		newErrorsCmd(),
		newResetCmd(),
	)
	return rootCmd
}
