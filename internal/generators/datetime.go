package generators

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/timeutil"
)

// DefaultWindowStart is used when a schema does not set start_date.
var DefaultWindowStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// ResolveWindow turns the configured start/end strings into a window, using defStart and
// now when a bound is not set. It runs once, when a generator is built.
func ResolveWindow(cfg domain.GeneratorConfig, now, defStart time.Time) (domain.DateWindow, error) {
	w := domain.DateWindow{Start: defStart, End: now}
	if cfg.StartDate != "" {
		t, err := timeutil.ParseDate(cfg.StartDate, now)
		if err != nil {
			return w, &domain.ConfigError{Field: "generator_config.start_date", Msg: "invalid date", Err: err}
		}
		w.Start = t
	}
	if cfg.EndDate != "" {
		t, err := timeutil.ParseDate(cfg.EndDate, now)
		if err != nil {
			return w, &domain.ConfigError{Field: "generator_config.end_date", Msg: "invalid date", Err: err}
		}
		w.End = t
	}
	if w.Start.After(w.End) {
		return w, &domain.ConfigError{
			Field: "generator_config",
			Msg:   fmt.Sprintf("start_date %s is after end_date %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339)),
		}
	}
	return w, nil
}

// UniformTime draws a time from the inclusive window.
func UniformTime(rng *rand.Rand, w domain.DateWindow) (time.Time, error) {
	if w.Start.After(w.End) {
		return time.Time{}, &domain.ConfigError{Field: "generator_config", Msg: "start_date is after end_date"}
	}
	span := w.End.Sub(w.Start)
	if span == 0 {
		return w.Start, nil
	}
	n := int64(span)
	if n < math.MaxInt64 {
		n++
	}
	return w.Start.Add(time.Duration(rng.Int63n(n))), nil
}
