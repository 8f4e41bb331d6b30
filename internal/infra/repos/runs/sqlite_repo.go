package runs

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	sqlRepository
	dbPath string
}

func NewSQLiteRepository(dbPath string) *SQLiteRepository {
	return &SQLiteRepository{
		dbPath: dbPath,
		sqlRepository: sqlRepository{migrations: []migration{
			{1, []string{`
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				tables TEXT NOT NULL,
				target_id TEXT NOT NULL,
				target_name TEXT NOT NULL,
				target_kind TEXT NOT NULL,
				seed INTEGER NOT NULL,
				config_hash TEXT NOT NULL,
				mode TEXT NOT NULL,
				status TEXT NOT NULL,
				started_at TEXT NOT NULL,
				completed_at TEXT,
				stats TEXT,
				error TEXT
			)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
			}},
			{2, []string{`
			CREATE TABLE IF NOT EXISTS run_logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id TEXT NOT NULL,
				created_at TEXT NOT NULL,
				level TEXT NOT NULL,
				message TEXT NOT NULL
			)`,
				`CREATE INDEX IF NOT EXISTS idx_run_logs_run ON run_logs(run_id, id)`,
			}},
		}},
	}
}

func (r *SQLiteRepository) Init() error {
	if r.dbPath == "" {
		return fmt.Errorf("runs db path is required")
	}
	if dir := filepath.Dir(r.dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create runs db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", r.dbPath)
	if err != nil {
		return err
	}
	// sqlite has a single writer.
	db.SetMaxOpenConns(1)
	r.db = db
	return r.applyMigrations()
}
