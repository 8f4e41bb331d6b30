package domain

import (
	"encoding/json"
	"time"
)

// GeneratorKind selects the table generator a schema is run with.
type GeneratorKind string

const (
	GeneratorDimension  GeneratorKind = "dimension"
	GeneratorFact       GeneratorKind = "fact"
	GeneratorChangeFeed GeneratorKind = "change_feed"
	GeneratorWeather    GeneratorKind = "weather"
)

// Schema describes one target table. It is read-only once loaded.
type Schema struct {
	ID        string                     `json:"id" yaml:"id"`
	TableName string                     `json:"table" yaml:"table"`
	Generator GeneratorKind              `json:"generator" yaml:"generator"`
	RowCount  int64                      `json:"num_rows" yaml:"num_rows"`
	Columns   []Column                   `json:"columns" yaml:"columns"`
	Rules     map[string]DataQualityRule `json:"data_quality_rules,omitempty" yaml:"data_quality_rules,omitempty"`
	Config    GeneratorConfig            `json:"generator_config" yaml:"generator_config"`
}

// Column returns the named column definition.
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Rule returns the quality rule attached to a column, if any.
func (s *Schema) Rule(name string) *DataQualityRule {
	r, ok := s.Rules[name]
	if !ok {
		return nil
	}
	return &r
}

// ForeignKeys lists the columns declared as foreign keys, in column order.
func (s *Schema) ForeignKeys() []Column {
	out := make([]Column, 0)
	for _, c := range s.Columns {
		if _, ok := c.Def.(ForeignKeyDef); ok {
			out = append(out, c)
		}
	}
	return out
}

type Column struct {
	Name string    `json:"name" yaml:"name"`
	Def  ColumnDef `json:"def" yaml:"def"`
}

// ColumnDef is the closed set of column kinds. Only types in this package implement it.
type ColumnDef interface {
	Kind() ColumnKind
	columnDef()
}

type ColumnKind string

const (
	KindInteger     ColumnKind = "integer"
	KindFloat       ColumnKind = "float"
	KindCategorical ColumnKind = "categorical"
	KindBoolean     ColumnKind = "boolean"
	KindDatetime    ColumnKind = "datetime"
	KindForeignKey  ColumnKind = "foreign_key"
)

// IntegerDef draws from [Min, Max] inclusive.
type IntegerDef struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// FloatDef draws uniformly from [Min, Max].
type FloatDef struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// CategoricalDef draws from Choices (optionally weighted) or, without choices, from the
// faker kind named by Faker.
type CategoricalDef struct {
	Choices []string  `json:"choices,omitempty" yaml:"choices,omitempty"`
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
	Faker   string    `json:"faker,omitempty" yaml:"faker,omitempty"`
}

type BooleanDef struct {
	TrueRatio float64 `json:"true_ratio" yaml:"true_ratio"`
}

// DatetimeDef formats with a Go time layout when Format is set; otherwise values are
// time.Time.
type DatetimeDef struct {
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ForeignKeyDef references the key column of a dimension table.
type ForeignKeyDef struct {
	References string `json:"references,omitempty" yaml:"references,omitempty"`
}

func (IntegerDef) Kind() ColumnKind     { return KindInteger }
func (FloatDef) Kind() ColumnKind       { return KindFloat }
func (CategoricalDef) Kind() ColumnKind { return KindCategorical }
func (BooleanDef) Kind() ColumnKind     { return KindBoolean }
func (DatetimeDef) Kind() ColumnKind    { return KindDatetime }
func (ForeignKeyDef) Kind() ColumnKind  { return KindForeignKey }

func (IntegerDef) columnDef()     {}
func (FloatDef) columnDef()       {}
func (CategoricalDef) columnDef() {}
func (BooleanDef) columnDef()     {}
func (DatetimeDef) columnDef()    {}
func (ForeignKeyDef) columnDef()  {}

// IsNumeric reports whether a quality rule may be attached to the column kind.
func IsNumeric(def ColumnDef) bool {
	switch def.(type) {
	case IntegerDef, FloatDef, ForeignKeyDef:
		return true
	default:
		return false
	}
}

// StorageType maps a column kind to the type used by targets.
func StorageType(def ColumnDef) ColumnType {
	switch d := def.(type) {
	case IntegerDef, ForeignKeyDef:
		return ColumnTypeInt
	case FloatDef:
		return ColumnTypeFloat
	case BooleanDef:
		return ColumnTypeBool
	case DatetimeDef:
		if d.Format != "" {
			return ColumnTypeString
		}
		return ColumnTypeTimestamp
	default:
		return ColumnTypeString
	}
}

// DataQualityRule bounds a numeric column and sets the rate of boundary-violating values.
// AnomalyScale is the unit the 10-30% excursion is measured in.
type DataQualityRule struct {
	MinValue          float64 `json:"min_value" yaml:"min_value"`
	MaxValue          float64 `json:"max_value" yaml:"max_value"`
	AnomalyPercentage float64 `json:"anomaly_percentage" yaml:"anomaly_percentage"`
	AnomalyScale      float64 `json:"anomaly_scale,omitempty" yaml:"anomaly_scale,omitempty"`
}

const (
	DefaultFloatAnomalyScale   = 1.0
	DefaultIntegerAnomalyScale = 10.0
)

// GeneratorConfig holds the generator-specific settings as written in the document.
// Dates are resolved against a clock by the generator that consumes them.
type GeneratorConfig struct {
	StartDate   string   `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	Days        int      `json:"days,omitempty" yaml:"days,omitempty" validate:"gte=0"`
	KeyColumn   string   `json:"key_column,omitempty" yaml:"key_column,omitempty"`
	SiteCount   int      `json:"site_count,omitempty" yaml:"site_count,omitempty" validate:"gte=0"`
	EntityCount int64    `json:"entity_count,omitempty" yaml:"entity_count,omitempty" validate:"gte=0"`
	MinChanges  int      `json:"min_changes,omitempty" yaml:"min_changes,omitempty" validate:"gte=0"`
	MaxChanges  int      `json:"max_changes,omitempty" yaml:"max_changes,omitempty" validate:"gte=0"`
	NaturalKeys []string `json:"natural_keys,omitempty" yaml:"natural_keys,omitempty"`
	DeleteRatio float64  `json:"delete_ratio,omitempty" yaml:"delete_ratio,omitempty" validate:"gte=0,lte=1"`
}

// DateWindow is an inclusive [Start, End] range.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// KeyRanges maps a key column name to the largest key a dimension run produced.
type KeyRanges map[string]int64

func (k KeyRanges) Clone() KeyRanges {
	out := make(KeyRanges, len(k))
	for name, max := range k {
		out[name] = max
	}
	return out
}

// Merge returns a new mapping holding k overlaid with other.
func (k KeyRanges) Merge(other KeyRanges) KeyRanges {
	out := k.Clone()
	for name, max := range other {
		out[name] = max
	}
	return out
}

// Describe flattens a column into its document form, kind included.
func (c Column) Describe() map[string]any {
	out := map[string]any{"name": c.Name}
	if c.Def == nil {
		return out
	}
	out["type"] = string(c.Def.Kind())
	switch d := c.Def.(type) {
	case IntegerDef:
		out["min"], out["max"] = d.Min, d.Max
	case FloatDef:
		out["min"], out["max"] = d.Min, d.Max
	case CategoricalDef:
		if len(d.Choices) > 0 {
			out["choices"] = d.Choices
		}
		if len(d.Weights) > 0 {
			out["weights"] = d.Weights
		}
		if d.Faker != "" {
			out["faker"] = d.Faker
		}
	case BooleanDef:
		out["true_ratio"] = d.TrueRatio
	case DatetimeDef:
		if d.Format != "" {
			out["format"] = d.Format
		}
	case ForeignKeyDef:
		if d.References != "" {
			out["references"] = d.References
		}
	}
	return out
}

func (c Column) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Describe())
}

func (c Column) MarshalYAML() (interface{}, error) {
	return c.Describe(), nil
}
