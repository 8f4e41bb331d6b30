package tables

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/generators"
	"github.com/mmrzaf/streamforge/internal/timeutil"
)

const (
	ColumnSiteID        = "site_id"
	ColumnDate          = "date"
	ColumnTemperature   = "temperature_celsius"
	ColumnHumidity      = "humidity_percentage"
	ColumnWindSpeed     = "wind_speed_kmh"
	ColumnPrecipitation = "precipitation_mm"
	ColumnPressure      = "atmospheric_pressure"
	ColumnCondition     = "weather_condition"

	DefaultSiteCount = 5

	temperatureNoise = 2.0
	humidityNoise    = 5.0
)

var WeatherConditions = []string{
	"Clear", "Partly Cloudy", "Cloudy", "Rain", "Light Rain",
	"Heavy Rain", "Thunderstorm", "Fog", "Mist",
}

var weatherColumns = []domain.ColumnMeta{
	{Name: ColumnSiteID, Type: domain.ColumnTypeString},
	{Name: ColumnDate, Type: domain.ColumnTypeDate},
	{Name: ColumnTemperature, Type: domain.ColumnTypeFloat},
	{Name: ColumnHumidity, Type: domain.ColumnTypeFloat},
	{Name: ColumnWindSpeed, Type: domain.ColumnTypeFloat},
	{Name: ColumnPrecipitation, Type: domain.ColumnTypeFloat},
	{Name: ColumnPressure, Type: domain.ColumnTypeFloat},
	{Name: ColumnCondition, Type: domain.ColumnTypeString},
}

// Band is the seasonal range base values are drawn from.
type Band struct {
	TempMin, TempMax         float64
	HumidityMin, HumidityMax float64
}

// SeasonBand maps a month to its band: Dec-Feb winter, Mar-May spring, Jun-Aug summer,
// Sep-Nov fall.
func SeasonBand(m time.Month) Band {
	switch m {
	case time.December, time.January, time.February:
		return Band{TempMin: -10, TempMax: 5, HumidityMin: 30, HumidityMax: 70}
	case time.March, time.April, time.May:
		return Band{TempMin: 5, TempMax: 20, HumidityMin: 30, HumidityMax: 70}
	case time.June, time.July, time.August:
		return Band{TempMin: 20, TempMax: 35, HumidityMin: 50, HumidityMax: 90}
	default:
		return Band{TempMin: 5, TempMax: 18, HumidityMin: 30, HumidityMax: 70}
	}
}

// Weather produces one row per site per day.
type Weather struct {
	schema *domain.Schema
	rng    *rand.Rand
	keys   domain.KeyRanges
	days   []time.Time
	sites  []any
	extra  []domain.Column
	window domain.DateWindow
}

func NewWeather(s *domain.Schema, opts Options) (*Weather, error) {
	w := &Weather{schema: s, rng: opts.rng(), keys: opts.keys()}

	window, err := dayWindow(s.Config, opts.now())
	if err != nil {
		return nil, withTable(s.TableName, err)
	}
	w.window = domain.DateWindow{Start: window.Start, End: window.End.Add(24*time.Hour - time.Second)}
	for d := window.Start; !d.After(window.End); d = d.AddDate(0, 0, 1) {
		w.days = append(w.days, d)
	}

	if max, ok := w.keys[ColumnSiteID]; ok {
		if max < 1 {
			return nil, &domain.ConfigError{Table: s.TableName, Field: ColumnSiteID, Msg: "key range is empty"}
		}
		for i := int64(1); i <= max; i++ {
			w.sites = append(w.sites, i)
		}
	} else {
		n := s.Config.SiteCount
		if n == 0 {
			n = DefaultSiteCount
		}
		for i := 1; i <= n; i++ {
			w.sites = append(w.sites, fmt.Sprintf("SITE_%03d", i))
		}
	}

	fixed := make(map[string]bool, len(weatherColumns))
	for _, c := range weatherColumns {
		fixed[c.Name] = true
	}
	for _, c := range s.Columns {
		if !fixed[c.Name] {
			w.extra = append(w.extra, c)
		}
	}
	return w, nil
}

// dayWindow resolves whole days. days alone counts back from today; with a start date it
// counts forward.
func dayWindow(cfg domain.GeneratorConfig, now time.Time) (domain.DateWindow, error) {
	today := timeutil.StartOfDay(now)
	w := domain.DateWindow{Start: PipelineEpoch, End: today}

	if cfg.Days > 0 && cfg.StartDate != "" && cfg.EndDate != "" {
		return w, &domain.ConfigError{Field: "generator_config.days", Msg: "days cannot be combined with both start_date and end_date"}
	}
	if cfg.StartDate != "" {
		t, err := timeutil.ParseDate(cfg.StartDate, now)
		if err != nil {
			return w, &domain.ConfigError{Field: "generator_config.start_date", Msg: "invalid date", Err: err}
		}
		w.Start = timeutil.StartOfDay(t)
	}
	if cfg.EndDate != "" {
		t, err := timeutil.ParseDate(cfg.EndDate, now)
		if err != nil {
			return w, &domain.ConfigError{Field: "generator_config.end_date", Msg: "invalid date", Err: err}
		}
		w.End = timeutil.StartOfDay(t)
	}
	if cfg.Days > 0 {
		if cfg.StartDate != "" {
			w.End = w.Start.AddDate(0, 0, cfg.Days-1)
		} else {
			w.Start = w.End.AddDate(0, 0, -(cfg.Days - 1))
		}
	}
	if w.Start.After(w.End) {
		return w, &domain.ConfigError{
			Field: "generator_config",
			Msg:   fmt.Sprintf("start_date %s is after end_date %s", w.Start.Format(timeutil.DateLayout), w.End.Format(timeutil.DateLayout)),
		}
	}
	return w, nil
}

func (w *Weather) Kind() domain.GeneratorKind { return domain.GeneratorWeather }

func (w *Weather) ExpectedRows() int64 { return int64(len(w.days) * len(w.sites)) }

// Days returns the resolved calendar days in order.
func (w *Weather) Days() []time.Time { return append([]time.Time(nil), w.days...) }

func (w *Weather) Generate() (*domain.Table, error) {
	cols := append([]domain.ColumnMeta(nil), weatherColumns...)
	if _, intSites := w.keys[ColumnSiteID]; intSites {
		cols[0].Type = domain.ColumnTypeInt
	}
	cols = append(cols, columnMeta(w.extra)...)

	t := &domain.Table{
		Name:    w.schema.TableName,
		Columns: cols,
		Rows:    make([]domain.Row, 0, len(w.days)*len(w.sites)),
		Stats:   domain.TableStats{Anomalies: map[string]int64{}},
	}

	for _, day := range w.days {
		band := SeasonBand(day.Month())
		for _, site := range w.sites {
			baseTemp := generators.UniformFloat(w.rng, band.TempMin, band.TempMax)
			baseHumidity := generators.UniformFloat(w.rng, band.HumidityMin, band.HumidityMax)

			temp := baseTemp + generators.UniformFloat(w.rng, -temperatureNoise, temperatureNoise)
			humidity := baseHumidity + generators.UniformFloat(w.rng, -humidityNoise, humidityNoise)
			humidity = math.Min(100, math.Max(0, humidity))

			row := domain.Row{
				ColumnSiteID:        site,
				ColumnDate:          day,
				ColumnTemperature:   generators.Round(temp, 1),
				ColumnHumidity:      generators.Round(humidity, 1),
				ColumnWindSpeed:     generators.Round(generators.UniformFloat(w.rng, 0, 50), 1),
				ColumnPrecipitation: generators.Round(generators.UniformFloat(w.rng, 0, 25), 1),
				ColumnPressure:      generators.Round(generators.UniformFloat(w.rng, 980, 1020), 1),
				ColumnCondition:     WeatherConditions[w.rng.Intn(len(WeatherConditions))],
			}

			for _, c := range w.extra {
				v, err := generators.Generate(w.rng, c, w.schema.Rule(c.Name), w.keys, w.window)
				if err != nil {
					return nil, withTable(w.schema.TableName, err)
				}
				row[c.Name] = v.V
				if v.Anomalous {
					t.Stats.Anomalies[c.Name]++
				}
			}
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}
