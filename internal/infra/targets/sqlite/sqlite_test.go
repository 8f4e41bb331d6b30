package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
)

func TestSQLiteTarget_RoundTrip(t *testing.T) {
	target := NewSQLiteTarget(filepath.Join(t.TempDir(), "out.sqlite"))
	if err := target.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer target.Close()

	tbl := &domain.Table{
		Name: "daily_weather",
		Columns: []domain.ColumnMeta{
			{Name: "site_id", Type: domain.ColumnTypeString},
			{Name: "date", Type: domain.ColumnTypeDate},
			{Name: "temperature_celsius", Type: domain.ColumnTypeFloat},
			{Name: "clear", Type: domain.ColumnTypeBool},
		},
	}
	if err := target.CreateTableIfNotExists(tbl); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := target.CreateTableIfNotExists(tbl); err != nil {
		t.Fatalf("create is idempotent: %v", err)
	}

	rows := [][]interface{}{
		{"SITE_001", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 28.4, true},
		{"SITE_002", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 31.0, false},
	}
	if err := target.InsertBatch(tbl.Name, []string{"site_id", "date", "temperature_celsius", "clear"}, rows); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var date string
	var clear int
	if err := target.DB().QueryRow("SELECT date, clear FROM daily_weather WHERE site_id = ?", "SITE_001").Scan(&date, &clear); err != nil {
		t.Fatalf("query: %v", err)
	}
	if date != "2024-07-01" || clear != 1 {
		t.Fatalf("unexpected stored values: %q %d", date, clear)
	}

	if err := target.TruncateTable(tbl.Name); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	var n int
	if err := target.DB().QueryRow("SELECT COUNT(*) FROM daily_weather").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected empty table after truncate, got %d rows", n)
	}
}
