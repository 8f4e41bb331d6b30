package runs

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	sqlRepository
	dsn string
}

func NewPostgresRepository(dsn string) *PostgresRepository {
	return &PostgresRepository{
		dsn: strings.TrimSpace(dsn),
		sqlRepository: sqlRepository{numbered: true, migrations: []migration{
			{1, []string{`
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				tables TEXT NOT NULL,
				target_id TEXT NOT NULL,
				target_name TEXT NOT NULL,
				target_kind TEXT NOT NULL,
				seed BIGINT NOT NULL,
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
				id BIGSERIAL PRIMARY KEY,
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

func (r *PostgresRepository) Init() error {
	if r.dsn == "" {
		return fmt.Errorf("runs db dsn is required")
	}
	db, err := sql.Open("postgres", r.dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return err
	}
	r.db = db
	return r.applyMigrations()
}
