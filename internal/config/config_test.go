package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirTemp(t *testing.T, dotenv string) {
	t.Helper()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	d := t.TempDir()
	if dotenv != "" {
		if err := os.WriteFile(filepath.Join(d, ".env"), []byte(dotenv), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Chdir(d); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, old)
			} else {
				_ = os.Unsetenv(k)
			}
		})
	}
}

var allKeys = []string{
	"STREAMFORGE_SCHEMAS_DIR", "STREAMFORGE_TARGETS_DIR", "STREAMFORGE_RUNS_DB",
	"STREAMFORGE_LOG_LEVEL", "STREAMFORGE_DEFAULT_MODE", "STREAMFORGE_BATCH_SIZE", "STREAMFORGE_METRICS_FILE",
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t, "")
	unsetEnv(t, allKeys...)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		SchemasDir:  "./schemas",
		TargetsDir:  "./targets",
		RunsDB:      "./streamforge-runs.sqlite",
		LogLevel:    "info",
		DefaultMode: "create",
		BatchSize:   1000,
	}
	if *cfg != want {
		t.Fatalf("unexpected defaults: %+v", *cfg)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	chdirTemp(t, "STREAMFORGE_RUNS_DB=postgres://u:p@localhost:5432/streamforge?sslmode=disable\nSTREAMFORGE_LOG_LEVEL=debug\nSTREAMFORGE_BATCH_SIZE=250\n")
	unsetEnv(t, allKeys...)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RunsDB != "postgres://u:p@localhost:5432/streamforge?sslmode=disable" {
		t.Fatalf("expected STREAMFORGE_RUNS_DB from .env, got %q", cfg.RunsDB)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected STREAMFORGE_LOG_LEVEL from .env, got %q", cfg.LogLevel)
	}
	if cfg.BatchSize != 250 {
		t.Fatalf("expected batch size 250, got %d", cfg.BatchSize)
	}
}

func TestLoad_EnvOverridesDotEnv(t *testing.T) {
	chdirTemp(t, "STREAMFORGE_LOG_LEVEL=debug\n")
	unsetEnv(t, allKeys...)
	t.Setenv("STREAMFORGE_LOG_LEVEL", "error")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "error" {
		t.Fatalf("expected environment to win, got %q", cfg.LogLevel)
	}
}

func TestLoad_RejectsBadBatchSize(t *testing.T) {
	chdirTemp(t, "STREAMFORGE_BATCH_SIZE=0\n")
	unsetEnv(t, allKeys...)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}
