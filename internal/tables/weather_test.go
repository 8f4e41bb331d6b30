package tables

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
)

func weatherSchema(cfg domain.GeneratorConfig) *domain.Schema {
	return &domain.Schema{TableName: "daily_weather", Generator: domain.GeneratorWeather, Config: cfg}
}

func generateWeather(t *testing.T, s *domain.Schema, opts Options) *domain.Table {
	t.Helper()
	w, err := NewWeather(s, opts)
	if err != nil {
		t.Fatalf("new weather: %v", err)
	}
	tbl, err := w.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return tbl
}

func oneDecimal(v float64) bool {
	return math.Abs(v*10-math.Round(v*10)) < 1e-6
}

func TestWeather_SitesTimesDays(t *testing.T) {
	tbl := generateWeather(t, weatherSchema(domain.GeneratorConfig{StartDate: "2024-01-30", Days: 3}), Options{Seed: 2, Now: fixedNow})
	if len(tbl.Rows) != 15 {
		t.Fatalf("expected 5 sites x 3 days, got %d rows", len(tbl.Rows))
	}
	first := tbl.Rows[0]
	if first["site_id"] != "SITE_001" {
		t.Fatalf("unexpected first site %v", first["site_id"])
	}
	if d := first["date"].(time.Time); !d.Equal(time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first date %v", d)
	}
	last := tbl.Rows[14]
	if last["site_id"] != "SITE_005" {
		t.Fatalf("unexpected last site %v", last["site_id"])
	}
	if d := last["date"].(time.Time); !d.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected last date %v", d)
	}
}

func TestWeather_ExpectedRows(t *testing.T) {
	w, err := NewWeather(weatherSchema(domain.GeneratorConfig{StartDate: "2024-01-30", Days: 3, SiteCount: 4}), Options{Seed: 2, Now: fixedNow})
	if err != nil {
		t.Fatalf("new weather: %v", err)
	}
	tbl, err := w.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if w.ExpectedRows() != 12 || int64(len(tbl.Rows)) != w.ExpectedRows() {
		t.Fatalf("expected 12 rows, estimate %d, generated %d", w.ExpectedRows(), len(tbl.Rows))
	}
}

func TestWeather_SeasonalBands(t *testing.T) {
	cases := []struct {
		start          string
		tMin, tMax     float64
		humMin, humMax float64
	}{
		{"2024-01-10", -12, 7, 25, 75},
		{"2024-04-10", 3, 22, 25, 75},
		{"2024-07-10", 18, 37, 45, 95},
		{"2024-10-10", 3, 20, 25, 75},
	}
	for _, tc := range cases {
		tbl := generateWeather(t, weatherSchema(domain.GeneratorConfig{StartDate: tc.start, Days: 10}), Options{Seed: 6, Now: fixedNow})
		for _, row := range tbl.Rows {
			temp := row["temperature_celsius"].(float64)
			hum := row["humidity_percentage"].(float64)
			if temp < tc.tMin || temp > tc.tMax {
				t.Fatalf("%s: temperature %v outside [%v,%v]", tc.start, temp, tc.tMin, tc.tMax)
			}
			if hum < tc.humMin || hum > tc.humMax {
				t.Fatalf("%s: humidity %v outside [%v,%v]", tc.start, hum, tc.humMin, tc.humMax)
			}
			if !oneDecimal(temp) || !oneDecimal(hum) {
				t.Fatalf("%s: values not rounded to 1dp: %v %v", tc.start, temp, hum)
			}
		}
	}
}

func TestWeather_FixedColumnRanges(t *testing.T) {
	tbl := generateWeather(t, weatherSchema(domain.GeneratorConfig{StartDate: "2023-01-01", EndDate: "2023-03-31"}), Options{Seed: 7, Now: fixedNow})
	conditions := map[string]bool{}
	for _, c := range WeatherConditions {
		conditions[c] = true
	}
	for _, row := range tbl.Rows {
		if v := row["wind_speed_kmh"].(float64); v < 0 || v > 50 {
			t.Fatalf("wind %v", v)
		}
		if v := row["precipitation_mm"].(float64); v < 0 || v > 25 {
			t.Fatalf("precipitation %v", v)
		}
		if v := row["atmospheric_pressure"].(float64); v < 980 || v > 1020 {
			t.Fatalf("pressure %v", v)
		}
		if !conditions[row["weather_condition"].(string)] {
			t.Fatalf("unknown condition %v", row["weather_condition"])
		}
	}
}

func TestWeather_SitesFromKeyRange(t *testing.T) {
	tbl := generateWeather(t, weatherSchema(domain.GeneratorConfig{StartDate: "2024-05-01", Days: 1}),
		Options{Seed: 1, Now: fixedNow, KeyRanges: domain.KeyRanges{"site_id": 3}})
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tbl.Rows))
	}
	for i, row := range tbl.Rows {
		if row["site_id"] != int64(i+1) {
			t.Fatalf("row %d: site %v", i, row["site_id"])
		}
	}
	if tbl.Columns[0].Type != domain.ColumnTypeInt {
		t.Fatalf("site_id should be int when sourced from a key range, got %s", tbl.Columns[0].Type)
	}
}

func TestWeather_DaysCountBackFromToday(t *testing.T) {
	w, err := NewWeather(weatherSchema(domain.GeneratorConfig{Days: 7}), Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("new weather: %v", err)
	}
	days := w.Days()
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if !days[6].Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected window to end today, got %v", days[6])
	}
}

func TestWeather_DefaultWindowStartsAtEpoch(t *testing.T) {
	w, err := NewWeather(weatherSchema(domain.GeneratorConfig{}), Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("new weather: %v", err)
	}
	days := w.Days()
	if !days[0].Equal(PipelineEpoch) {
		t.Fatalf("expected first day %v, got %v", PipelineEpoch, days[0])
	}
}

func TestWeather_ExtraColumnsUseValuePolicy(t *testing.T) {
	s := weatherSchema(domain.GeneratorConfig{StartDate: "2024-03-01", Days: 30})
	s.Columns = []domain.Column{
		{Name: "temperature_celsius", Def: domain.FloatDef{Min: -50, Max: 50}},
		{Name: "visibility_km", Def: domain.FloatDef{Min: 0, Max: 20}},
	}
	tbl := generateWeather(t, s, Options{Seed: 3, Now: fixedNow})
	if got := tbl.Columns[len(tbl.Columns)-1].Name; got != "visibility_km" {
		t.Fatalf("expected extra column last, got %s", got)
	}
	if len(tbl.Columns) != len(weatherColumns)+1 {
		t.Fatalf("fixed columns must not be duplicated: %v", tbl.ColumnNames())
	}
	for _, row := range tbl.Rows {
		v := row["visibility_km"].(float64)
		if v < 0 || v > 20 {
			t.Fatalf("visibility %v", v)
		}
	}
}

func TestWeather_DaysConflict(t *testing.T) {
	_, err := NewWeather(weatherSchema(domain.GeneratorConfig{StartDate: "2024-01-01", EndDate: "2024-01-05", Days: 3}), Options{Now: fixedNow})
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
