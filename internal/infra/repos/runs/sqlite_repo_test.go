package runs

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mmrzaf/streamforge/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo := NewSQLiteRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err := repo.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestInitCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "runs.db")
	repo := NewSQLiteRepository(dbPath)

	if err := repo.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if repo.DB() == nil {
		t.Fatal("expected db handle to be initialized")
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
}

func TestInitIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	for i := 0; i < 2; i++ {
		repo := NewSQLiteRepository(path)
		if err := repo.Init(); err != nil {
			t.Fatalf("init #%d failed: %v", i, err)
		}
		_ = repo.Close()
	}
}

func TestCreateGetUpdate(t *testing.T) {
	repo := newTestRepo(t)

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	run := &domain.Run{
		Tables:     []string{"assets", "sensor_emissions"},
		TargetID:   "local",
		TargetName: "Local CSV",
		TargetKind: domain.TargetKindCSV,
		Seed:       42,
		ConfigHash: "abc",
		Mode:       domain.TableModeCreate,
		Status:     domain.RunStatusRunning,
		StartedAt:  started,
	}
	if err := repo.Create(run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated id")
	}

	done := started.Add(3 * time.Second)
	run.Status = domain.RunStatusSuccess
	run.CompletedAt = &done
	run.Stats = json.RawMessage(`{"total_rows":10}`)
	if err := repo.Update(run); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Get("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
	if err := repo.Update(&domain.Run{ID: "nope", Status: domain.RunStatusFailed}); err == nil {
		t.Fatal("expected error updating missing run")
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, status := range []domain.RunStatus{domain.RunStatusSuccess, domain.RunStatusFailed, domain.RunStatusSuccess} {
		run := &domain.Run{
			ID: string(rune('a' + i)), Tables: []string{"assets"}, TargetID: "t", TargetName: "t",
			TargetKind: domain.TargetKindCSV, Mode: domain.TableModeCreate, Status: status,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Create(run); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := repo.List(0, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	ok, err := repo.List(1, string(domain.RunStatusSuccess))
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(ok) != 1 || ok[0].ID != "c" {
		t.Fatalf("filtered list = %+v", ok)
	}
}

func TestRunLogs(t *testing.T) {
	repo := newTestRepo(t)
	for _, msg := range []string{"started", "assets: 10 rows", "done"} {
		if err := repo.AppendRunLog("r1", "info", msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := repo.AppendRunLog("r2", "error", "other"); err != nil {
		t.Fatalf("append: %v", err)
	}

	logs, err := repo.ListRunLogs("r1", 2)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Message != "done" || logs[1].Message != "assets: 10 rows" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestOpenPicksBackend(t *testing.T) {
	if _, ok := Open("postgres://u:p@localhost/db").(*PostgresRepository); !ok {
		t.Fatal("expected postgres repository")
	}
	if _, ok := Open("./runs.sqlite").(*SQLiteRepository); !ok {
		t.Fatal("expected sqlite repository")
	}
}

func TestBindNumbersPlaceholders(t *testing.T) {
	r := &sqlRepository{numbered: true}
	if got := r.bind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("bind = %q", got)
	}
}
