package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `id, tables, target_id, target_name, target_kind,
	seed, config_hash, mode, status, started_at, completed_at, stats, error`

type migration struct {
	version int
	stmts   []string
}

// sqlRepository holds the queries shared by both backends. Statements are written with ?
// placeholders; bind rewrites them for drivers that number parameters.
type sqlRepository struct {
	db         *sql.DB
	numbered   bool
	migrations []migration
}

func (r *sqlRepository) DB() *sql.DB { return r.db }

func (r *sqlRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *sqlRepository) bind(query string) string {
	if !r.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlRepository) exec(query string, args ...interface{}) error {
	_, err := r.db.Exec(r.bind(query), args...)
	return err
}

func (r *sqlRepository) applyMigrations() error {
	if err := r.exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var cur int
	if err := r.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&cur); err != nil {
		return err
	}
	for _, m := range r.migrations {
		if cur >= m.version {
			continue
		}
		for _, stmt := range m.stmts {
			if err := r.exec(stmt); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
		}
		if err := r.exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			return err
		}
		cur = m.version
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func (r *sqlRepository) Create(run *domain.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	tablesJSON, err := json.Marshal(run.Tables)
	if err != nil {
		return err
	}
	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = formatTime(*run.CompletedAt)
	}
	var stats interface{}
	if len(run.Stats) > 0 {
		stats = string(run.Stats)
	}

	return r.exec(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(tablesJSON), run.TargetID, run.TargetName, run.TargetKind,
		run.Seed, run.ConfigHash, run.Mode, string(run.Status),
		formatTime(run.StartedAt), completedAt, stats, run.Error,
	)
}

func (r *sqlRepository) Update(run *domain.Run) error {
	var completedAt interface{}
	if run.CompletedAt != nil {
		completedAt = formatTime(*run.CompletedAt)
	}
	var stats interface{}
	if len(run.Stats) > 0 {
		stats = string(run.Stats)
	}

	res, err := r.db.Exec(r.bind(`UPDATE runs SET status = ?, completed_at = ?, stats = ?, error = ? WHERE id = ?`),
		string(run.Status), completedAt, stats, run.Error, run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*domain.Run, error) {
	var run domain.Run
	var tablesStr, status, startedAt string
	var completedAt, stats, errStr sql.NullString

	if err := s.Scan(
		&run.ID, &tablesStr, &run.TargetID, &run.TargetName, &run.TargetKind,
		&run.Seed, &run.ConfigHash, &run.Mode, &status,
		&startedAt, &completedAt, &stats, &errStr,
	); err != nil {
		return nil, err
	}

	run.Status = domain.RunStatus(status)
	if tablesStr != "" {
		if err := json.Unmarshal([]byte(tablesStr), &run.Tables); err != nil {
			return nil, fmt.Errorf("run %s: invalid tables: %w", run.ID, err)
		}
	}
	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: invalid started_at: %w", run.ID, err)
	}
	run.StartedAt = t
	if completedAt.Valid {
		t, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("run %s: invalid completed_at: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}
	if stats.Valid {
		run.Stats = json.RawMessage(stats.String)
	}
	if errStr.Valid {
		run.Error = errStr.String
	}
	return &run, nil
}

func (r *sqlRepository) Get(id string) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRow(r.bind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

func (r *sqlRepository) List(limit int, status string) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	args := make([]interface{}, 0, 2)
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(r.bind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *sqlRepository) AppendRunLog(runID, level, message string) error {
	return r.exec(`INSERT INTO run_logs (run_id, created_at, level, message) VALUES (?, ?, ?, ?)`,
		runID, formatTime(time.Now()), level, message)
}

// ListRunLogs returns the newest lines first.
func (r *sqlRepository) ListRunLogs(runID string, limit int) ([]*domain.RunLog, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.Query(r.bind(`
		SELECT id, run_id, created_at, level, message
		FROM run_logs
		WHERE run_id = ?
		ORDER BY id DESC
		LIMIT ?`), runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.RunLog, 0)
	for rows.Next() {
		var rl domain.RunLog
		var created string
		if err := rows.Scan(&rl.ID, &rl.RunID, &created, &rl.Level, &rl.Message); err != nil {
			return nil, err
		}
		if rl.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, err
		}
		out = append(out, &rl)
	}
	return out, rows.Err()
}
