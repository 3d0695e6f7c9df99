package application

import (
	"context"
	"testing"

	"github.com/JonMunkholm/mastersync/internal/config"
)

func TestNew_SQLite(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()

	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		switch key {
		case "SQLITE_PATH":
			return ":memory:", true
		case "SYNC_WORK_DIR":
			return workDir, true
		}
		return "", false
	})
	if err != nil {
		t.Fatal(err)
	}

	app, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	tools := app.Service.ListTools(ctx)
	if len(tools) != len(app.Catalog.Tools()) || len(tools) == 0 {
		t.Fatalf("ListTools() = %d tools", len(tools))
	}
	for _, tool := range tools {
		// Tables exist and are empty; only tools without masters are available.
		if tool.Available != (len(tool.Masters) == 0) {
			t.Errorf("tool %s available = %v with %d masters", tool.ID, tool.Available, len(tool.Masters))
		}
	}

	sc := app.SchedulerConfig()
	if sc.Interval != cfg.Sync.RefreshInterval || !sc.RunOnStart {
		t.Errorf("SchedulerConfig() = %+v", sc)
	}
}
