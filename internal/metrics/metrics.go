// Package metrics counts generated rows and injected anomalies.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the generation collectors on a private registry so runs can be exported to
// a textfile without touching the global default registry.
type Metrics struct {
	Registry *prometheus.Registry

	RowsGenerated      *prometheus.CounterVec
	AnomaliesInjected  *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	TablesFailed       *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		RowsGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamforge_rows_generated_total",
				Help: "Total number of rows generated",
			},
			[]string{"table", "generator"},
		),
		AnomaliesInjected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamforge_anomalies_injected_total",
				Help: "Total number of values deliberately pushed outside their quality rule",
			},
			[]string{"table", "column"},
		),
		GenerationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamforge_table_generation_seconds",
				Help:    "Time spent generating and writing one table",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"generator"},
		),
		TablesFailed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamforge_tables_failed_total",
				Help: "Total number of tables whose generation or write failed",
			},
			[]string{"table", "generator"},
		),
	}
}

// ObserveTable records one finished table. A nil receiver is a no-op.
func (m *Metrics) ObserveTable(table, generator string, rows int64, anomalies map[string]int64, took time.Duration) {
	if m == nil {
		return
	}
	m.RowsGenerated.WithLabelValues(table, generator).Add(float64(rows))
	for col, n := range anomalies {
		m.AnomaliesInjected.WithLabelValues(table, col).Add(float64(n))
	}
	m.GenerationDuration.WithLabelValues(generator).Observe(took.Seconds())
}

func (m *Metrics) ObserveFailure(table, generator string) {
	if m == nil {
		return
	}
	m.TablesFailed.WithLabelValues(table, generator).Inc()
}

// WriteFile dumps the registry in the text exposition format, for node_exporter's
// textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
