package generators

import (
	"math"
	"math/rand"

	"github.com/mmrzaf/streamforge/internal/domain"
)

const (
	minExcursion = 0.1
	maxExcursion = 0.3

	roundingSlack = 1e-9
)

// ApplyRule draws a value for a rule-governed column. With probability
// rule.AnomalyPercentage the value lands 10-30% of one AnomalyScale unit outside
// [MinValue, MaxValue], on a side picked 50/50; otherwise it is uniform inside the range.
// Float values carry two decimals, integer values whole units.
func ApplyRule(rng *rand.Rand, rule domain.DataQualityRule, integer bool) Value {
	scale := rule.AnomalyScale
	if scale <= 0 {
		scale = domain.DefaultFloatAnomalyScale
		if integer {
			scale = domain.DefaultIntegerAnomalyScale
		}
	}

	anomalous := rng.Float64() < rule.AnomalyPercentage
	if integer {
		return Value{V: integerRuleValue(rng, rule, scale, anomalous), Anomalous: anomalous}
	}
	return Value{V: floatRuleValue(rng, rule, scale, anomalous), Anomalous: anomalous}
}

func excursion(rng *rand.Rand, scale float64) float64 {
	return (minExcursion + rng.Float64()*(maxExcursion-minExcursion)) * scale
}

func floatRuleValue(rng *rand.Rand, rule domain.DataQualityRule, scale float64, anomalous bool) float64 {
	lo, hi := rule.MinValue, rule.MaxValue
	if !anomalous {
		v := Round(UniformFloat(rng, lo, hi), 2)
		return math.Min(math.Max(v, lo), hi)
	}

	below := rng.Float64() < 0.5
	exc := excursion(rng, scale)
	limit := maxExcursion * scale
	if below {
		raw := lo - exc
		v := Round(raw, 2)
		if v < lo-limit-roundingSlack {
			v = raw
		}
		if v >= lo {
			v = lo - 0.01
		}
		return v
	}
	raw := hi + exc
	v := Round(raw, 2)
	if v > hi+limit+roundingSlack {
		v = raw
	}
	if v <= hi {
		v = hi + 0.01
	}
	return v
}

func integerRuleValue(rng *rand.Rand, rule domain.DataQualityRule, scale float64, anomalous bool) int64 {
	lo := int64(math.Ceil(rule.MinValue))
	hi := int64(math.Floor(rule.MaxValue))
	if !anomalous {
		if hi < lo {
			return lo
		}
		return UniformInt(rng, lo, hi)
	}

	below := rng.Float64() < 0.5
	exc := int64(math.Floor(excursion(rng, scale)))
	if exc < 1 {
		exc = 1
	}
	if below {
		return lo - exc
	}
	return hi + exc
}

// OutOfRange reports whether v violates the rule's bounds.
func OutOfRange(rule domain.DataQualityRule, v any) bool {
	f, ok := toFloat64(v)
	if !ok {
		return false
	}
	return f < rule.MinValue || f > rule.MaxValue
}
