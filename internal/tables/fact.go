package tables

import (
	"math/rand"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/generators"
)

// Fact produces measurement rows whose foreign keys point into dimension key ranges.
type Fact struct {
	schema *domain.Schema
	rng    *rand.Rand
	keys   domain.KeyRanges
	window domain.DateWindow
}

func NewFact(s *domain.Schema, opts Options) (*Fact, error) {
	if err := checkRowCount(s); err != nil {
		return nil, err
	}
	window, err := generators.ResolveWindow(s.Config, opts.now(), generators.DefaultWindowStart)
	if err != nil {
		return nil, withTable(s.TableName, err)
	}
	return &Fact{schema: s, rng: opts.rng(), keys: opts.keys(), window: window}, nil
}

func (f *Fact) Kind() domain.GeneratorKind { return domain.GeneratorFact }

func (f *Fact) Generate() (*domain.Table, error) {
	if err := checkForeignKeys(f.schema, f.keys); err != nil {
		return nil, err
	}

	n := f.schema.RowCount
	t := &domain.Table{
		Name:    f.schema.TableName,
		Columns: columnMeta(f.schema.Columns),
		Rows:    make([]domain.Row, 0, n),
		Stats:   domain.TableStats{Anomalies: map[string]int64{}},
	}

	rules := make([]*domain.DataQualityRule, len(f.schema.Columns))
	for i, c := range f.schema.Columns {
		rules[i] = f.schema.Rule(c.Name)
	}

	for i := int64(0); i < n; i++ {
		row := make(domain.Row, len(f.schema.Columns))
		for ci, c := range f.schema.Columns {
			v, err := generators.Generate(f.rng, c, rules[ci], f.keys, f.window)
			if err != nil {
				return nil, withTable(f.schema.TableName, err)
			}
			row[c.Name] = v.V
			if v.Anomalous {
				t.Stats.Anomalies[c.Name]++
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// checkForeignKeys fails before any row is produced when a declared foreign key has no
// key range.
func checkForeignKeys(s *domain.Schema, keys domain.KeyRanges) error {
	for _, c := range s.ForeignKeys() {
		max, ok := keys[c.Name]
		if !ok {
			return &domain.ReferentialError{Table: s.TableName, Column: c.Name}
		}
		if max < 1 {
			return &domain.ConfigError{Table: s.TableName, Field: c.Name, Msg: "key range is empty"}
		}
	}
	return nil
}
