// Package schema parses table schema documents into domain.Schema.
//
// Documents are YAML; JSON parses the same way. Column order in the document is preserved
// because generated rows are built in that order.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/generators"
	"github.com/mmrzaf/streamforge/internal/tables"
	"gopkg.in/yaml.v3"
)

const DefaultRowCount = 10

var validate = validator.New()

type document struct {
	ID        string                 `yaml:"id"`
	Table     string                 `yaml:"table"`
	TableName string                 `yaml:"table_name"`
	Generator string                 `yaml:"generator"`
	NumRows   *int64                 `yaml:"num_rows"`
	RowCount  *int64                 `yaml:"row_count"`
	Columns   yaml.Node              `yaml:"columns"`
	Rules     yaml.Node              `yaml:"data_quality_rules"`
	Config    domain.GeneratorConfig `yaml:"generator_config"`
}

type columnDoc struct {
	Type       string    `yaml:"type" validate:"required"`
	Min        *float64  `yaml:"min"`
	Max        *float64  `yaml:"max"`
	Choices    []string  `yaml:"choices"`
	Weights    []float64 `yaml:"weights" validate:"omitempty,dive,gte=0"`
	Faker      string    `yaml:"faker"`
	TrueRatio  *float64  `yaml:"true_ratio" validate:"omitempty,gte=0,lte=1"`
	Format     string    `yaml:"format"`
	References string    `yaml:"references"`
}

type ruleDoc struct {
	MinValue          *float64 `yaml:"min_value" validate:"required"`
	MaxValue          *float64 `yaml:"max_value" validate:"required"`
	AnomalyPercentage float64  `yaml:"anomaly_percentage" validate:"gte=0,lte=1"`
	AnomalyScale      float64  `yaml:"anomaly_scale" validate:"gte=0"`
}

func LoadFile(path string) (*domain.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Load(r io.Reader) (*domain.Schema, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*domain.Schema, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &domain.SchemaError{Msg: "empty document"}
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &domain.SchemaError{Msg: "malformed document", Err: err}
	}

	s := &domain.Schema{
		ID:        doc.ID,
		TableName: strings.TrimSpace(doc.Table),
		Generator: domain.GeneratorKind(strings.TrimSpace(doc.Generator)),
		Config:    doc.Config,
	}
	if s.TableName == "" {
		s.TableName = strings.TrimSpace(doc.TableName)
	}
	if s.TableName == "" {
		return nil, &domain.SchemaError{Field: "table", Msg: "table name is required"}
	}
	if s.Generator == "" {
		s.Generator = domain.GeneratorFact
	}
	if !isKnownGenerator(s.Generator) {
		return nil, &domain.SchemaError{Table: s.TableName, Field: "generator", Msg: fmt.Sprintf("unknown generator kind: %s", s.Generator)}
	}

	switch {
	case doc.NumRows != nil:
		s.RowCount = *doc.NumRows
	case doc.RowCount != nil:
		s.RowCount = *doc.RowCount
	default:
		s.RowCount = DefaultRowCount
	}

	if err := validate.Struct(doc.Config); err != nil {
		return nil, schemaErrFromValidation(s.TableName, "generator_config", err)
	}

	columns, err := parseColumns(s.TableName, &doc.Columns)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 && s.Generator != domain.GeneratorWeather {
		return nil, &domain.SchemaError{Table: s.TableName, Field: "columns", Msg: "at least one column is required"}
	}
	s.Columns = columns

	rules, err := parseRules(s, &doc.Rules)
	if err != nil {
		return nil, err
	}
	s.Rules = rules

	if err := checkGeneratorConfig(s); err != nil {
		return nil, err
	}

	return s, nil
}

func isKnownGenerator(k domain.GeneratorKind) bool {
	switch k {
	case domain.GeneratorDimension, domain.GeneratorFact, domain.GeneratorChangeFeed, domain.GeneratorWeather:
		return true
	default:
		return false
	}
}

func isAbsent(node *yaml.Node) bool {
	return node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

func parseColumns(table string, node *yaml.Node) ([]domain.Column, error) {
	if isAbsent(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &domain.SchemaError{Table: table, Field: "columns", Msg: "columns must be a mapping of name to definition"}
	}

	columns := make([]domain.Column, 0, len(node.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(node.Content[i].Value)
		if name == "" {
			return nil, &domain.SchemaError{Table: table, Field: "columns", Msg: "column name is required"}
		}
		if seen[name] {
			return nil, &domain.SchemaError{Table: table, Field: "columns." + name, Msg: "duplicate column"}
		}
		seen[name] = true

		var cd columnDoc
		valueNode := node.Content[i+1]
		if valueNode.Kind == yaml.ScalarNode {
			cd.Type = valueNode.Value
		} else if err := valueNode.Decode(&cd); err != nil {
			return nil, &domain.SchemaError{Table: table, Field: "columns." + name, Msg: "malformed column definition", Err: err}
		}
		if err := validate.Struct(cd); err != nil {
			return nil, schemaErrFromValidation(table, "columns."+name, err)
		}

		def, err := buildDef(cd)
		if err != nil {
			return nil, &domain.SchemaError{Table: table, Field: "columns." + name, Msg: err.Error()}
		}
		columns = append(columns, domain.Column{Name: name, Def: def})
	}
	return columns, nil
}

func buildDef(cd columnDoc) (domain.ColumnDef, error) {
	switch strings.ToLower(strings.TrimSpace(cd.Type)) {
	case "integer", "int", "bigint":
		lo, hi := bounds(cd, 0, 1000)
		if lo > hi {
			return nil, fmt.Errorf("min (%v) must not exceed max (%v)", lo, hi)
		}
		return domain.IntegerDef{Min: int64(lo), Max: int64(hi)}, nil
	case "float", "double", "decimal":
		lo, hi := bounds(cd, 0, 1000)
		if lo > hi {
			return nil, fmt.Errorf("min (%v) must not exceed max (%v)", lo, hi)
		}
		return domain.FloatDef{Min: lo, Max: hi}, nil
	case "string", "categorical", "text":
		if len(cd.Weights) > 0 {
			if len(cd.Choices) == 0 {
				return nil, errors.New("weights require choices")
			}
			if len(cd.Weights) != len(cd.Choices) {
				return nil, errors.New("'weights' and 'choices' must have the same length")
			}
			total := 0.0
			for _, w := range cd.Weights {
				total += w
			}
			if total == 0 {
				return nil, errors.New("total weight is zero")
			}
		}
		if cd.Faker != "" && !generators.IsFakerKind(cd.Faker) {
			return nil, fmt.Errorf("unknown faker kind: %s", cd.Faker)
		}
		return domain.CategoricalDef{Choices: cd.Choices, Weights: cd.Weights, Faker: cd.Faker}, nil
	case "boolean", "bool":
		ratio := 0.5
		if cd.TrueRatio != nil {
			ratio = *cd.TrueRatio
		}
		return domain.BooleanDef{TrueRatio: ratio}, nil
	case "datetime", "timestamp":
		return domain.DatetimeDef{Format: layout(cd.Format)}, nil
	case "date":
		f := layout(cd.Format)
		if f == "" {
			f = "2006-01-02"
		}
		return domain.DatetimeDef{Format: f}, nil
	case "foreign_key", "fk":
		return domain.ForeignKeyDef{References: strings.TrimSpace(cd.References)}, nil
	default:
		return nil, fmt.Errorf("unknown column type: %s", cd.Type)
	}
}

func bounds(cd columnDoc, defMin, defMax float64) (float64, float64) {
	lo, hi := defMin, defMax
	if cd.Min != nil {
		lo = *cd.Min
	}
	if cd.Max != nil {
		hi = *cd.Max
	}
	return lo, hi
}

func layout(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		return ""
	case "iso", "iso8601", "rfc3339":
		return time.RFC3339
	case "date":
		return "2006-01-02"
	default:
		return format
	}
}

func parseRules(s *domain.Schema, node *yaml.Node) (map[string]domain.DataQualityRule, error) {
	if isAbsent(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &domain.SchemaError{Table: s.TableName, Field: "data_quality_rules", Msg: "rules must be a mapping of column to rule"}
	}

	rules := make(map[string]domain.DataQualityRule, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		field := "data_quality_rules." + name

		col, ok := s.Column(name)
		if !ok {
			return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: fmt.Sprintf("rule references undefined column '%s'", name)}
		}
		if !domain.IsNumeric(col.Def) {
			return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: fmt.Sprintf("rule attached to non-numeric column of kind %s", col.Def.Kind())}
		}

		var rd ruleDoc
		if err := node.Content[i+1].Decode(&rd); err != nil {
			return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: "malformed rule", Err: err}
		}
		if err := validate.Struct(rd); err != nil {
			return nil, schemaErrFromValidation(s.TableName, field, err)
		}
		if *rd.MinValue > *rd.MaxValue {
			return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: fmt.Sprintf("min_value (%v) must not exceed max_value (%v)", *rd.MinValue, *rd.MaxValue)}
		}
		_, isInt := col.Def.(domain.IntegerDef)
		if isInt && math.Ceil(*rd.MinValue) > math.Floor(*rd.MaxValue) {
			return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: fmt.Sprintf("[%v, %v] holds no whole number for an integer column", *rd.MinValue, *rd.MaxValue)}
		}

		rule := domain.DataQualityRule{
			MinValue:          *rd.MinValue,
			MaxValue:          *rd.MaxValue,
			AnomalyPercentage: rd.AnomalyPercentage,
			AnomalyScale:      rd.AnomalyScale,
		}
		if rule.AnomalyScale == 0 {
			if isInt {
				rule.AnomalyScale = domain.DefaultIntegerAnomalyScale
			} else {
				rule.AnomalyScale = domain.DefaultFloatAnomalyScale
			}
		}
		if rule.AnomalyPercentage > 0 {
			if isInt && rule.AnomalyScale < domain.DefaultIntegerAnomalyScale {
				return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: "integer rules need anomaly_scale >= 10 so every excursion is at least one unit"}
			}
			if !isInt && rule.AnomalyScale < 0.1 {
				return nil, &domain.SchemaError{Table: s.TableName, Field: field, Msg: "anomaly_scale must be >= 0.1 to survive rounding"}
			}
		}
		rules[name] = rule
	}
	return rules, nil
}

func checkGeneratorConfig(s *domain.Schema) error {
	cfg := s.Config
	key := cfg.KeyColumn
	if key == "" && s.Generator == domain.GeneratorDimension {
		key = tables.DefaultKeyColumn
	}
	if key != "" {
		if col, ok := s.Column(key); ok {
			if _, isInt := col.Def.(domain.IntegerDef); !isInt {
				return &domain.SchemaError{Table: s.TableName, Field: "columns." + key, Msg: fmt.Sprintf("key column '%s' must be an integer column", key)}
			}
		}
	}
	if s.Generator == domain.GeneratorDimension && len(s.Rules) > 0 {
		return &domain.SchemaError{Table: s.TableName, Field: "data_quality_rules", Msg: "dimension tables do not apply data quality rules"}
	}
	for _, k := range cfg.NaturalKeys {
		if _, ok := s.Column(k); !ok {
			return &domain.SchemaError{Table: s.TableName, Field: "generator_config.natural_keys", Msg: fmt.Sprintf("natural key '%s' is not a column", k)}
		}
	}
	if s.Generator == domain.GeneratorChangeFeed {
		return checkChangeFeed(s)
	}
	return nil
}

// checkChangeFeed rejects feeds whose entities could share a natural key or whose
// change_timestamp layout cannot order events. Key ranges are only known at run time and
// are checked again when the generator is built.
func checkChangeFeed(s *domain.Schema) error {
	var keys []domain.Column
	for _, name := range tables.NaturalKeyNames(s) {
		if col, ok := s.Column(name); ok {
			keys = append(keys, col)
		}
	}
	entities := s.Config.EntityCount
	if entities == 0 {
		entities = s.RowCount
	}
	if _, err := tables.IdentityKey(s, keys, nil, entities); err != nil {
		return err
	}
	if col, ok := s.Column(tables.ColumnChangeTimestamp); ok {
		if d, isTime := col.Def.(domain.DatetimeDef); isTime {
			if _, ok := tables.TimestampStep(d.Format); !ok {
				return &domain.SchemaError{Table: s.TableName, Field: "columns." + col.Name, Msg: fmt.Sprintf("format %q cannot order change events", d.Format)}
			}
		}
	}
	return nil
}

func schemaErrFromValidation(table, field string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domain.SchemaError{
			Table: table,
			Field: field,
			Msg:   fmt.Sprintf("field %s failed '%s' check", fe.Field(), fe.Tag()),
		}
	}
	return &domain.SchemaError{Table: table, Field: field, Msg: "invalid", Err: err}
}
