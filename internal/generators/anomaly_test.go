package generators

import (
	"math/rand"
	"testing"

	"github.com/mmrzaf/streamforge/internal/domain"
)

func TestApplyRule_AnomalyRateConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	rule := domain.DataQualityRule{MinValue: 0, MaxValue: 100, AnomalyPercentage: 0.1, AnomalyScale: 1}

	const n = 100000
	outside := 0
	for i := 0; i < n; i++ {
		v := ApplyRule(rng, rule, false)
		if OutOfRange(rule, v.V) {
			outside++
			if !v.Anomalous {
				t.Fatalf("value %v outside range but not flagged anomalous", v.V)
			}
		} else if v.Anomalous {
			t.Fatalf("value %v flagged anomalous but inside range", v.V)
		}
	}
	frac := float64(outside) / n
	if frac < 0.08 || frac > 0.12 {
		t.Fatalf("expected out-of-range fraction near 0.1, got %v", frac)
	}
}

func TestApplyRule_AnomaliesStayNearBoundary(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	rule := domain.DataQualityRule{MinValue: 10, MaxValue: 20, AnomalyPercentage: 1, AnomalyScale: 1}

	below, above := 0, 0
	for i := 0; i < 10000; i++ {
		v := ApplyRule(rng, rule, false)
		f := v.V.(float64)
		if f >= 10 && f <= 20 {
			t.Fatalf("anomalous value %v inside the normal range", f)
		}
		if f < 10-0.3 || f > 20+0.3 {
			t.Fatalf("anomalous value %v beyond 0.3 units of the boundary", f)
		}
		if f < 10 {
			below++
		} else {
			above++
		}
	}
	if below < 4500 || above < 4500 {
		t.Fatalf("expected roughly even sides, got below=%d above=%d", below, above)
	}
}

func TestApplyRule_ScaleWidensExcursion(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	rule := domain.DataQualityRule{MinValue: 0, MaxValue: 1000, AnomalyPercentage: 1, AnomalyScale: 50}

	for i := 0; i < 5000; i++ {
		f := ApplyRule(rng, rule, false).V.(float64)
		if f < 0 {
			if f > -5 || f < -15 {
				t.Fatalf("below-range value %v not within 10-30%% of scale 50", f)
			}
		} else if f < 1005 || f > 1015 {
			t.Fatalf("above-range value %v not within 10-30%% of scale 50", f)
		}
	}
}

func TestApplyRule_NormalValuesRoundedInsideRange(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	rule := domain.DataQualityRule{MinValue: 0.5, MaxValue: 0.75, AnomalyPercentage: 0}

	for i := 0; i < 10000; i++ {
		v := ApplyRule(rng, rule, false)
		f := v.V.(float64)
		if v.Anomalous || f < 0.5 || f > 0.75 {
			t.Fatalf("unexpected value %v (anomalous=%v)", f, v.Anomalous)
		}
		if Round(f, 2) != f {
			t.Fatalf("value %v not rounded to 2 decimals", f)
		}
	}
}

func TestApplyRule_IntegerRuleKeepsWholeUnits(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	rule := domain.DataQualityRule{MinValue: 0, MaxValue: 100, AnomalyPercentage: 0.5, AnomalyScale: 10}

	for i := 0; i < 10000; i++ {
		v := ApplyRule(rng, rule, true)
		n, ok := v.V.(int64)
		if !ok {
			t.Fatalf("expected int64, got %T", v.V)
		}
		if v.Anomalous {
			if n >= 0 && n <= 100 {
				t.Fatalf("anomalous integer %d inside range", n)
			}
			if n < -3 || n > 103 {
				t.Fatalf("anomalous integer %d beyond 0.3 of scale 10", n)
			}
		} else if n < 0 || n > 100 {
			t.Fatalf("normal integer %d outside range", n)
		}
	}
}
