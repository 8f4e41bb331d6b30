package generators

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mmrzaf/streamforge/internal/domain"
)

// Categorical draws from the declared choices, honoring weights, or falls back to the
// faker kind when no choices are declared.
func Categorical(rng *rand.Rand, d domain.CategoricalDef) (string, error) {
	if len(d.Choices) == 0 {
		return Fake(rng, d.Faker)
	}
	return WeightedChoice(rng, d.Choices, d.Weights)
}

func WeightedChoice(rng *rand.Rand, values []string, weights []float64) (string, error) {
	if len(values) == 0 {
		return "", errors.New("'choices' cannot be empty")
	}
	if len(weights) == 0 {
		return values[rng.Intn(len(values))], nil
	}
	if len(weights) != len(values) {
		return "", errors.New("'weights' and 'choices' must have the same length")
	}

	totalWeight := 0.0
	for _, w := range weights {
		if w < 0 {
			return "", fmt.Errorf("negative weight: %v", w)
		}
		totalWeight += w
	}
	if totalWeight == 0 {
		return "", errors.New("total weight is zero")
	}

	r := rng.Float64() * totalWeight
	cumWeight := 0.0
	for i, w := range weights {
		cumWeight += w
		if r < cumWeight {
			return values[i], nil
		}
	}

	return values[len(values)-1], nil
}
