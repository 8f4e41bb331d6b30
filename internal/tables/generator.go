// Package tables implements the table generators: dimension, fact, change feed and
// weather. Each generator owns its schema and random source and returns a fresh table on
// every Generate call.
package tables

import (
	"math/rand"
	"time"

	"github.com/mmrzaf/streamforge/internal/domain"
)

type Generator interface {
	Kind() domain.GeneratorKind
	Generate() (*domain.Table, error)
}

// KeyPublisher is implemented by generators whose runs bound foreign keys elsewhere.
type KeyPublisher interface {
	KeyRange() domain.KeyRanges
}

// RowEstimator is implemented by generators whose output size is not num_rows.
type RowEstimator interface {
	ExpectedRows() int64
}

type Options struct {
	// Rand overrides Seed when set. It must not be shared with another generator.
	Rand      *rand.Rand
	Seed      int64
	KeyRanges domain.KeyRanges
	// Now anchors "now", "today" and relative dates. Defaults to time.Now at construction.
	Now time.Time
}

func (o Options) rng() *rand.Rand {
	if o.Rand != nil {
		return o.Rand
	}
	return rand.New(rand.NewSource(o.Seed))
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) keys() domain.KeyRanges {
	if o.KeyRanges == nil {
		return domain.KeyRanges{}
	}
	return o.KeyRanges.Clone()
}

func checkRowCount(s *domain.Schema) error {
	if s.RowCount <= 0 {
		return &domain.ConfigError{Table: s.TableName, Field: "num_rows", Msg: "row count must be > 0"}
	}
	return nil
}

func columnMeta(cols []domain.Column) []domain.ColumnMeta {
	out := make([]domain.ColumnMeta, len(cols))
	for i, c := range cols {
		out[i] = domain.ColumnMeta{Name: c.Name, Type: domain.StorageType(c.Def)}
	}
	return out
}

// withTable fills in the table name on errors raised below the generator.
func withTable(table string, err error) error {
	switch e := err.(type) {
	case *domain.ReferentialError:
		if e.Table == "" {
			e.Table = table
		}
	case *domain.ConfigError:
		if e.Table == "" {
			e.Table = table
		}
	case *domain.SchemaError:
		if e.Table == "" {
			e.Table = table
		}
	}
	return err
}
