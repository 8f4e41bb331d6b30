// Package generators holds the per-column value policy shared by every table generator.
package generators

import (
	"fmt"
	"math/rand"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// Value is one generated cell. Anomalous marks values deliberately pushed past a quality
// rule's bounds.
type Value struct {
	V         any
	Anomalous bool
}

// Generate produces a value for col. Resolution order:
//  1. a column named in keys is a foreign key and draws from [1, max];
//  2. a numeric column with a rule follows the anomaly policy;
//  3. everything else is generated from its declared kind.
//
// A ForeignKeyDef column that is missing from keys is a *domain.ReferentialError.
func Generate(rng *rand.Rand, col domain.Column, rule *domain.DataQualityRule, keys domain.KeyRanges, window domain.DateWindow) (Value, error) {
	if max, ok := keys[col.Name]; ok {
		v, err := ForeignKey(rng, col.Name, max)
		return Value{V: v}, err
	}

	if _, isFK := col.Def.(domain.ForeignKeyDef); isFK {
		return Value{}, &domain.ReferentialError{Column: col.Name}
	}

	if rule != nil && domain.IsNumeric(col.Def) {
		_, isInt := col.Def.(domain.IntegerDef)
		return ApplyRule(rng, *rule, isInt), nil
	}

	switch d := col.Def.(type) {
	case domain.IntegerDef:
		return Value{V: UniformInt(rng, d.Min, d.Max)}, nil
	case domain.FloatDef:
		return Value{V: Round(UniformFloat(rng, d.Min, d.Max), 2)}, nil
	case domain.CategoricalDef:
		v, err := Categorical(rng, d)
		return Value{V: v}, err
	case domain.BooleanDef:
		return Value{V: rng.Float64() < d.TrueRatio}, nil
	case domain.DatetimeDef:
		t, err := UniformTime(rng, window)
		if err != nil {
			return Value{}, err
		}
		if d.Format != "" {
			return Value{V: t.Format(d.Format)}, nil
		}
		return Value{V: t}, nil
	default:
		return Value{}, fmt.Errorf("column '%s': unsupported column kind %T", col.Name, col.Def)
	}
}

// ForeignKey draws a key uniformly from [1, max].
func ForeignKey(rng *rand.Rand, column string, max int64) (int64, error) {
	if max < 1 {
		return 0, &domain.ConfigError{Field: column, Msg: fmt.Sprintf("key range for '%s' is empty", column)}
	}
	return 1 + rng.Int63n(max), nil
}
