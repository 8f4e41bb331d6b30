package generators

import (
	"fmt"
	"math/rand"

	"github.com/go-faker/faker/v4"
)

var cities = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix",
	"Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose",
	"Austin", "Jacksonville", "Fort Worth", "Columbus", "Charlotte",
	"San Francisco", "Indianapolis", "Seattle", "Denver", "Washington",
	"Boston", "Nashville", "Detroit", "Portland", "Las Vegas",
	"London", "Paris", "Tokyo", "Berlin", "Madrid",
	"Rome", "Amsterdam", "Vienna", "Prague", "Barcelona",
	"Munich", "Milan", "Stockholm", "Copenhagen", "Oslo",
}

// fakers maps a column's faker kind to its source. city and uuid draw from rng so they
// follow the run seed; the rest come from go-faker.
var fakers = map[string]func(rng *rand.Rand) string{
	"name":       func(*rand.Rand) string { return faker.Name() },
	"first_name": func(*rand.Rand) string { return faker.FirstName() },
	"last_name":  func(*rand.Rand) string { return faker.LastName() },
	"email":      func(*rand.Rand) string { return faker.Email() },
	"username":   func(*rand.Rand) string { return faker.Username() },
	"word":       func(*rand.Rand) string { return faker.Word() },
	"sentence":   func(*rand.Rand) string { return faker.Sentence() },
	"phone":      func(*rand.Rand) string { return faker.Phonenumber() },
	"city":       func(rng *rand.Rand) string { return cities[rng.Intn(len(cities))] },
	"uuid":       func(rng *rand.Rand) string { return UUID4(rng) },
}

func IsFakerKind(kind string) bool {
	_, ok := fakers[kind]
	return ok
}

// Fake returns a value of the given kind. An empty kind yields a word.
func Fake(rng *rand.Rand, kind string) (string, error) {
	if kind == "" {
		kind = "word"
	}
	f, ok := fakers[kind]
	if !ok {
		return "", fmt.Errorf("unknown faker kind: %s", kind)
	}
	return f(rng), nil
}
