package exec

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/metrics"
	"github.com/mmrzaf/streamforge/internal/registry"
	"github.com/mmrzaf/streamforge/internal/tables"
	"github.com/mmrzaf/streamforge/internal/validation"
)

const DefaultBatchSize = 1000

type Target interface {
	Connect() error
	Close() error
	CreateTableIfNotExists(t *domain.Table) error
	TruncateTable(tableName string) error
	InsertBatch(tableName string, columns []string, rows [][]interface{}) error
}

type Options struct {
	Seed      int64
	Mode      string
	BatchSize int
	// KeyRanges seeds the run with ranges for dimensions generated elsewhere.
	KeyRanges domain.KeyRanges
	Now       time.Time
}

type Executor struct {
	genRegistry *registry.GeneratorRegistry
	metrics     *metrics.Metrics
}

// NewExecutor builds an executor. m may be nil.
func NewExecutor(genRegistry *registry.GeneratorRegistry, m *metrics.Metrics) *Executor {
	return &Executor{genRegistry: genRegistry, metrics: m}
}

// Sink receives each generated table in execution order.
type Sink func(s *domain.Schema, t *domain.Table) error

// TableSeed derives a table's seed from the run seed so reordering tables does not change
// what each one draws.
func TableSeed(seed int64, table string) int64 {
	h := fnv.New64a()
	h.Write([]byte(table))
	return seed + int64(h.Sum64())
}

// Generate runs every schema in dependency order and hands each table to sink. Dimension
// key ranges accumulate and are offered to every later table.
func (e *Executor) Generate(list []*domain.Schema, opts Options, sink Sink) (*domain.RunStats, error) {
	order, err := validation.TopologicalSort(list)
	if err != nil {
		return nil, fmt.Errorf("failed to sort tables: %w", err)
	}

	byTable := make(map[string]*domain.Schema, len(list))
	for _, s := range list {
		byTable[s.TableName] = s
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	merged := opts.KeyRanges.Clone()
	published := make(map[string]int64)
	stats := &domain.RunStats{TableStats: make([]domain.TableRunStats, 0, len(order))}
	runStart := time.Now()

	for _, name := range order {
		s := byTable[name]
		startTime := time.Now()

		keys := merged.Clone()
		for _, col := range s.ForeignKeys() {
			if max, ok := published[col.Def.(domain.ForeignKeyDef).References]; ok {
				keys[col.Name] = max
			}
		}

		gen, err := e.genRegistry.New(s, tables.Options{
			Rand:      rand.New(rand.NewSource(TableSeed(opts.Seed, s.TableName))),
			KeyRanges: keys,
			Now:       now,
		})
		if err != nil {
			e.metrics.ObserveFailure(s.TableName, string(s.Generator))
			return stats, fmt.Errorf("table '%s': %w", s.TableName, err)
		}

		tbl, err := gen.Generate()
		if err != nil {
			e.metrics.ObserveFailure(s.TableName, string(s.Generator))
			return stats, fmt.Errorf("table '%s': %w", s.TableName, err)
		}

		if kp, ok := gen.(tables.KeyPublisher); ok {
			kr := kp.KeyRange()
			merged = merged.Merge(kr)
			for _, max := range kr {
				published[s.TableName] = max
			}
		}

		if err := sink(s, tbl); err != nil {
			e.metrics.ObserveFailure(s.TableName, string(s.Generator))
			return stats, err
		}

		duration := time.Since(startTime)
		rows := int64(len(tbl.Rows))
		e.metrics.ObserveTable(s.TableName, string(s.Generator), rows, tbl.Stats.Anomalies, duration)
		stats.TableStats = append(stats.TableStats, domain.TableRunStats{
			Table:           s.TableName,
			Generator:       s.Generator,
			RowsGenerated:   rows,
			Anomalies:       tbl.TotalAnomalies(),
			DurationSeconds: duration.Seconds(),
		})
		stats.TotalRows += rows
		stats.TotalAnomalies += tbl.TotalAnomalies()
	}

	stats.TablesGenerated = len(order)
	stats.KeyRanges = merged
	stats.DurationSeconds = time.Since(runStart).Seconds()
	return stats, nil
}

// Estimate resolves execution order and per-table row counts without generating. Tables
// report num_rows unless their generator is a tables.RowEstimator; dimensions are assumed
// to publish keys 1..num_rows.
func (e *Executor) Estimate(list []*domain.Schema, opts Options) ([]string, map[string]int64, error) {
	order, err := validation.TopologicalSort(list)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sort tables: %w", err)
	}
	byTable := make(map[string]*domain.Schema, len(list))
	for _, s := range list {
		byTable[s.TableName] = s
	}

	merged := opts.KeyRanges.Clone()
	published := make(map[string]int64)
	counts := make(map[string]int64, len(order))
	for _, name := range order {
		s := byTable[name]
		keys := merged.Clone()
		for _, col := range s.ForeignKeys() {
			if max, ok := published[col.Def.(domain.ForeignKeyDef).References]; ok {
				keys[col.Name] = max
			}
		}

		gen, err := e.genRegistry.New(s, tables.Options{Seed: TableSeed(opts.Seed, name), KeyRanges: keys, Now: opts.Now})
		if err != nil {
			return nil, nil, fmt.Errorf("table '%s': %w", name, err)
		}
		counts[name] = s.RowCount
		if est, ok := gen.(tables.RowEstimator); ok {
			counts[name] = est.ExpectedRows()
		}
		if s.Generator == domain.GeneratorDimension {
			published[name] = s.RowCount
			merged[validation.DimensionKeyColumn(s)] = s.RowCount
		}
	}
	return order, counts, nil
}

// Execute generates every table and writes it to target after applying the table mode.
// Targets that buffer flush on Close, so a Close failure fails the run.
func (e *Executor) Execute(list []*domain.Schema, target Target, opts Options) (stats *domain.RunStats, err error) {
	if err := target.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to target: %w", err)
	}
	defer func() {
		if cerr := target.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close target: %w", cerr)
		}
	}()

	mode := opts.Mode
	if mode == "" {
		mode = domain.TableModeCreate
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return e.Generate(list, opts, func(s *domain.Schema, tbl *domain.Table) error {
		switch mode {
		case domain.TableModeCreate:
			if err := target.CreateTableIfNotExists(tbl); err != nil {
				return fmt.Errorf("failed to create table '%s': %w", tbl.Name, err)
			}
		case domain.TableModeTruncate:
			if err := target.CreateTableIfNotExists(tbl); err != nil {
				return fmt.Errorf("failed to create table '%s': %w", tbl.Name, err)
			}
			if err := target.TruncateTable(tbl.Name); err != nil {
				return fmt.Errorf("failed to truncate table '%s': %w", tbl.Name, err)
			}
		case domain.TableModeAppend:
		default:
			return fmt.Errorf("unknown table mode: %s", mode)
		}

		columnNames := tbl.ColumnNames()
		for from := 0; from < len(tbl.Rows); from += batchSize {
			to := from + batchSize
			if to > len(tbl.Rows) {
				to = len(tbl.Rows)
			}
			if err := target.InsertBatch(tbl.Name, columnNames, tbl.Values(from, to)); err != nil {
				return fmt.Errorf("failed to insert batch for table '%s': %w", tbl.Name, err)
			}
		}
		return nil
	})
}
