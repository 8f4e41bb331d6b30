package tables

import (
	"math/rand"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/generators"
)

const DefaultKeyColumn = "id"

// Dimension produces independent reference rows keyed 1..N.
type Dimension struct {
	schema    *domain.Schema
	rng       *rand.Rand
	window    domain.DateWindow
	keyColumn string
	columns   []domain.Column
	lastRows  int64
}

func NewDimension(s *domain.Schema, opts Options) (*Dimension, error) {
	if err := checkRowCount(s); err != nil {
		return nil, err
	}
	window, err := generators.ResolveWindow(s.Config, opts.now(), generators.DefaultWindowStart)
	if err != nil {
		return nil, withTable(s.TableName, err)
	}

	d := &Dimension{
		schema:    s,
		rng:       opts.rng(),
		window:    window,
		keyColumn: s.Config.KeyColumn,
	}
	if d.keyColumn == "" {
		d.keyColumn = DefaultKeyColumn
	}

	if len(s.Rules) > 0 {
		return nil, &domain.SchemaError{Table: s.TableName, Field: "data_quality_rules", Msg: "dimension tables do not apply data quality rules"}
	}

	if col, declared := s.Column(d.keyColumn); declared {
		if _, isInt := col.Def.(domain.IntegerDef); !isInt {
			return nil, &domain.SchemaError{Table: s.TableName, Field: "columns." + d.keyColumn, Msg: "key column must be an integer column"}
		}
		d.columns = s.Columns
	} else {
		d.columns = append([]domain.Column{{Name: d.keyColumn, Def: domain.IntegerDef{Min: 1, Max: s.RowCount}}}, s.Columns...)
	}
	for _, c := range d.columns {
		if _, isFK := c.Def.(domain.ForeignKeyDef); isFK {
			return nil, &domain.SchemaError{Table: s.TableName, Field: "columns." + c.Name, Msg: "dimension tables cannot hold foreign keys"}
		}
	}
	return d, nil
}

func (d *Dimension) Kind() domain.GeneratorKind { return domain.GeneratorDimension }

func (d *Dimension) KeyColumn() string { return d.keyColumn }

func (d *Dimension) Generate() (*domain.Table, error) {
	n := d.schema.RowCount
	t := &domain.Table{
		Name:    d.schema.TableName,
		Columns: columnMeta(d.columns),
		Rows:    make([]domain.Row, 0, n),
	}

	for i := int64(1); i <= n; i++ {
		row := make(domain.Row, len(d.columns))
		for _, c := range d.columns {
			if c.Name == d.keyColumn {
				row[c.Name] = i
				continue
			}
			v, err := generators.Generate(d.rng, c, nil, nil, d.window)
			if err != nil {
				return nil, withTable(d.schema.TableName, err)
			}
			row[c.Name] = v.V
		}
		t.Rows = append(t.Rows, row)
	}

	d.lastRows = n
	return t, nil
}

// KeyRange publishes {key_column: N} for the most recent Generate call.
func (d *Dimension) KeyRange() domain.KeyRanges {
	return domain.KeyRanges{d.keyColumn: d.lastRows}
}
