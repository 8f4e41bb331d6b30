package app

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/exec"
	"github.com/mmrzaf/streamforge/internal/infra/targets/csvfile"
	"github.com/mmrzaf/streamforge/internal/infra/targets/objectstore"
	pgTarget "github.com/mmrzaf/streamforge/internal/infra/targets/postgres"
	sqliteTarget "github.com/mmrzaf/streamforge/internal/infra/targets/sqlite"
	"github.com/mmrzaf/streamforge/internal/validation"
)

// BuildTarget returns the writer for a resolved target config.
func BuildTarget(t *domain.TargetConfig) (exec.Target, error) {
	switch t.Kind {
	case domain.TargetKindCSV:
		return csvfile.NewCSVTarget(t.DSN), nil
	case domain.TargetKindSQLite:
		return sqliteTarget.NewSQLiteTarget(t.DSN), nil
	case domain.TargetKindPostgres:
		schema := t.Schema
		if schema == "" {
			schema = "public"
		}
		return pgTarget.NewPostgresTarget(t.DSN, schema), nil
	case domain.TargetKindS3:
		return objectstore.NewObjectStoreTarget(t.DSN)
	default:
		return nil, fmt.Errorf("unsupported target kind: %s", t.Kind)
	}
}

// CheckTarget connects to t and probes whether tables can be created, filled and truncated.
// The returned check is filled in even when err is set.
func CheckTarget(t *domain.TargetConfig) (*domain.TargetCheck, error) {
	check := &domain.TargetCheck{
		TargetID:  t.ID,
		CheckedAt: time.Now().UTC(),
	}

	val := validation.NewValidator(nil)
	if err := val.ValidateTarget(t); err != nil {
		check.Error = err.Error()
		return check, err
	}

	start := time.Now()
	effective := resolveTargetForRun(t, "")
	tgt, err := BuildTarget(effective)
	if err != nil {
		check.Error = err.Error()
		return check, err
	}
	if err := tgt.Connect(); err != nil {
		check.Error = err.Error()
		check.LatencyMS = time.Since(start).Milliseconds()
		return check, err
	}

	check.OK = true
	check.LatencyMS = time.Since(start).Milliseconds()
	if ver, verErr := serverVersion(effective); verErr == nil {
		check.ServerVer = ver
	}
	check.Capabilities = probeCapabilities(tgt)
	if err := tgt.Close(); err != nil {
		check.OK = false
		check.Error = err.Error()
		return check, err
	}
	return check, nil
}

func serverVersion(t *domain.TargetConfig) (string, error) {
	switch t.Kind {
	case domain.TargetKindPostgres:
		return queryServerVersion("postgres", t.DSN, "SHOW server_version")
	case domain.TargetKindSQLite:
		return queryServerVersion("sqlite3", t.DSN, "SELECT sqlite_version()")
	default:
		return "", fmt.Errorf("%s targets report no server version", t.Kind)
	}
}

func queryServerVersion(driver, dsn, query string) (string, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return "", err
	}
	defer db.Close()
	var version string
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

func probeCapabilities(tgt exec.Target) domain.TargetCapabilities {
	tbl := &domain.Table{
		Name:    fmt.Sprintf("streamforge_check_%d", time.Now().UnixNano()),
		Columns: []domain.ColumnMeta{{Name: "id", Type: domain.ColumnTypeInt}},
	}

	var caps domain.TargetCapabilities
	if err := tgt.CreateTableIfNotExists(tbl); err != nil {
		return caps
	}
	caps.CanCreate = true

	if err := tgt.InsertBatch(tbl.Name, []string{"id"}, [][]interface{}{{int64(1)}}); err != nil {
		return caps
	}
	caps.CanInsert = true

	if err := tgt.TruncateTable(tbl.Name); err != nil {
		return caps
	}
	caps.CanTruncate = true
	return caps
}
