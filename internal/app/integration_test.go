package app

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/infra/repos/runs"
	"github.com/mmrzaf/streamforge/internal/infra/repos/schemas"
	"github.com/mmrzaf/streamforge/internal/infra/repos/targets"
	"github.com/mmrzaf/streamforge/internal/logging"
	"github.com/mmrzaf/streamforge/internal/metrics"
	"github.com/mmrzaf/streamforge/internal/registry"
)

const assetsYAML = `
table: assets
generator: dimension
num_rows: 5
generator_config:
  key_column: asset_id
columns:
  asset_name:
    type: string
    choices: [pump, compressor, separator]
`

const emissionsYAML = `
table: sensor_emissions
generator: fact
num_rows: 20
columns:
  asset_id:
    type: foreign_key
    references: assets
  methane_level:
    type: float
    min: 0
    max: 1000
  timestamp:
    type: datetime
    format: iso
data_quality_rules:
  methane_level:
    min_value: 0
    max_value: 1000
    anomaly_percentage: 0.1
`

const weatherYAML = `
table: daily_weather
generator: weather
generator_config:
  start_date: "2024-01-01"
  days: 2
  site_count: 2
`

type fixture struct {
	svc     *RunService
	outDir  string
	runRepo *runs.SQLiteRepository
	m       *metrics.Metrics
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	outDir := filepath.Join(root, "out")

	writeFile(t, filepath.Join(root, "schemas", "assets.yaml"), assetsYAML)
	writeFile(t, filepath.Join(root, "schemas", "sensor_emissions.yaml"), emissionsYAML)
	writeFile(t, filepath.Join(root, "schemas", "daily_weather.yaml"), weatherYAML)
	writeFile(t, filepath.Join(root, "targets", "local.yaml"), "name: Local CSV\nkind: csv\ndsn: "+outDir+"\n")
	writeFile(t, filepath.Join(root, "targets", "lite.yaml"), "kind: sqlite3\ndsn: "+filepath.Join(root, "lite.db")+"\n")

	runRepo := runs.NewSQLiteRepository(filepath.Join(root, "runs.db"))
	if err := runRepo.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = runRepo.Close() })

	m := metrics.New()
	svc := NewRunService(
		schemas.NewFileRepository(filepath.Join(root, "schemas")),
		targets.NewFileRepository(filepath.Join(root, "targets")),
		runRepo,
		registry.DefaultGeneratorRegistry(),
		m,
		logging.Nop(),
		8,
	)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, outDir: outDir, runRepo: runRepo, m: m}
}

func seedPtr(n int64) *int64 { return &n }

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return records
}

func TestPlanRun_ResolvesOrderCountsAndWarnings(t *testing.T) {
	fx := newFixture(t)
	req := &domain.RunRequest{
		TargetID:     "local",
		Mode:         domain.TableModeCreate,
		Seed:         seedPtr(7),
		RowOverrides: map[string]int64{"sensor_emissions": 40, "daily_weather": 3, "unknown": 10},
	}

	plan, err := fx.svc.PlanRun(req)
	if err != nil {
		t.Fatal(err)
	}
	if plan.ExecutionOrder[0] != "assets" {
		t.Fatalf("expected dimension first, got %v", plan.ExecutionOrder)
	}
	want := map[string]int64{"assets": 5, "sensor_emissions": 40, "daily_weather": 4}
	for table, n := range want {
		if plan.ResolvedCounts[table] != n {
			t.Fatalf("ResolvedCounts[%s] = %d, want %d (%v)", table, plan.ResolvedCounts[table], n, plan.ResolvedCounts)
		}
	}
	if len(plan.Warnings) != 2 {
		t.Fatalf("expected warnings for weather and unknown overrides, got %#v", plan.Warnings)
	}
	if plan.Seed != 7 || plan.ConfigHash == "" {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	again, err := fx.svc.PlanRun(req)
	if err != nil {
		t.Fatal(err)
	}
	if again.ConfigHash != plan.ConfigHash {
		t.Fatal("expected identical requests to hash the same")
	}

	list, err := fx.svc.ListRuns(10, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Fatalf("plan should not create run rows; got %d", len(list))
	}
}

func TestPlanRun_RejectsBadRequests(t *testing.T) {
	fx := newFixture(t)
	cases := map[string]*domain.RunRequest{
		"no mode":        {TargetID: "local"},
		"no target":      {Mode: domain.TableModeCreate},
		"unknown target": {TargetID: "nope", Mode: domain.TableModeCreate},
		"unknown schema": {SchemaIDs: []string{"nope"}, TargetID: "local", Mode: domain.TableModeCreate},
		"missing dimension": {
			SchemaIDs: []string{"sensor_emissions"}, TargetID: "local", Mode: domain.TableModeCreate,
		},
		"inline target unknown kind": {
			Target: &domain.TargetConfig{Name: "x", Kind: "elasticsearch", DSN: "http://localhost:9200"}, Mode: domain.TableModeCreate,
		},
		"inline target without dsn": {
			Target: &domain.TargetConfig{Name: "x", Kind: domain.TargetKindCSV}, Mode: domain.TableModeCreate,
		},
		"inline csv target with schema": {
			Target: &domain.TargetConfig{Name: "x", Kind: domain.TargetKindCSV, DSN: t.TempDir(), Schema: "raw"}, Mode: domain.TableModeCreate,
		},
	}
	for name, req := range cases {
		if _, err := fx.svc.PlanRun(req); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestStartRun_WritesCSVAndRecordsSuccess(t *testing.T) {
	fx := newFixture(t)
	run, err := fx.svc.StartRun(&domain.RunRequest{TargetID: "local", Mode: domain.TableModeCreate, Seed: seedPtr(3)})
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != domain.RunStatusSuccess || run.CompletedAt == nil {
		t.Fatalf("unexpected run: %+v", run)
	}

	assets := readCSV(t, filepath.Join(fx.outDir, "assets.csv"))
	if strings.Join(assets[0], ",") != "asset_id,asset_name" || len(assets) != 6 {
		t.Fatalf("unexpected assets csv: %v", assets)
	}
	emissions := readCSV(t, filepath.Join(fx.outDir, "sensor_emissions.csv"))
	if len(emissions) != 21 {
		t.Fatalf("expected header + 20 rows, got %d", len(emissions))
	}
	weather := readCSV(t, filepath.Join(fx.outDir, "daily_weather.csv"))
	if len(weather) != 5 || weather[1][1] != "2024-01-01" {
		t.Fatalf("unexpected weather csv: %v", weather)
	}

	got, err := fx.svc.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	var stats domain.RunStats
	if err := json.Unmarshal(got.Stats, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalRows != 5+20+4 || stats.KeyRanges["asset_id"] != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	logs, err := fx.svc.RunLogs(run.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) < 5 || logs[0].Message != "run completed" {
		t.Fatalf("unexpected run logs: %+v", logs)
	}
}

func TestStartRun_SameSeedSameOutput(t *testing.T) {
	fx := newFixture(t)
	req := &domain.RunRequest{TargetID: "local", Mode: domain.TableModeTruncate, Seed: seedPtr(11)}
	if _, err := fx.svc.StartRun(req); err != nil {
		t.Fatal(err)
	}
	first := readCSV(t, filepath.Join(fx.outDir, "sensor_emissions.csv"))
	if _, err := fx.svc.StartRun(req); err != nil {
		t.Fatal(err)
	}
	second := readCSV(t, filepath.Join(fx.outDir, "sensor_emissions.csv"))
	if len(first) != len(second) {
		t.Fatalf("truncate should replace rows: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if strings.Join(first[i], ",") != strings.Join(second[i], ",") {
			t.Fatalf("row %d differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestStartRun_RecordsFailure(t *testing.T) {
	fx := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "file")
	writeFile(t, blocker, "x")

	run, err := fx.svc.StartRun(&domain.RunRequest{
		Target: &domain.TargetConfig{Name: "broken", Kind: domain.TargetKindCSV, DSN: filepath.Join(blocker, "sub")},
		Mode:   domain.TableModeCreate,
		Seed:   seedPtr(1),
	})
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if run == nil || run.Status != domain.RunStatusFailed || run.Error == "" {
		t.Fatalf("expected failed run record, got %+v", run)
	}

	failed, err := fx.svc.ListRuns(10, string(domain.RunStatusFailed))
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].ID != run.ID {
		t.Fatalf("expected the failed run to be listed, got %+v", failed)
	}
}

func TestPreview_GeneratesWithoutRecording(t *testing.T) {
	fx := newFixture(t)
	var seen []string
	stats, err := fx.svc.Preview(&domain.RunRequest{SchemaIDs: []string{"assets", "sensor_emissions"}, Seed: seedPtr(5)},
		func(s *domain.Schema, tbl *domain.Table) error {
			seen = append(seen, tbl.Name)
			return nil
		})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "assets" || stats.TotalRows != 25 {
		t.Fatalf("unexpected preview: %v %+v", seen, stats)
	}
	list, _ := fx.svc.ListRuns(0, "")
	if len(list) != 0 {
		t.Fatalf("preview should not record runs, got %d", len(list))
	}
}

func TestCheckTarget_SQLite(t *testing.T) {
	fx := newFixture(t)
	check, err := fx.svc.CheckTarget("lite")
	if err != nil {
		t.Fatalf("check failed: %v (%+v)", err, check)
	}
	if !check.OK || check.ServerVer == "" {
		t.Fatalf("unexpected check: %+v", check)
	}
	caps := check.Capabilities
	if !caps.CanCreate || !caps.CanInsert || !caps.CanTruncate {
		t.Fatalf("expected full capabilities, got %+v", caps)
	}
}

func TestCheckTarget_InvalidConfig(t *testing.T) {
	check, err := CheckTarget(&domain.TargetConfig{Name: "x", Kind: "elasticsearch", DSN: "http://localhost:9200"})
	if err == nil || check.OK || check.Error == "" {
		t.Fatalf("expected failed check, got %+v (%v)", check, err)
	}
}
