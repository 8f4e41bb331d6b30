package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mmrzaf/streamforge/internal/domain"
	"github.com/mmrzaf/streamforge/internal/tables"
)

// Constructor builds a table generator for one schema.
type Constructor func(s *domain.Schema, opts tables.Options) (tables.Generator, error)

type GeneratorRegistry struct {
	mu           sync.RWMutex
	constructors map[domain.GeneratorKind]Constructor
}

func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{
		constructors: make(map[domain.GeneratorKind]Constructor),
	}
}

func (r *GeneratorRegistry) Register(kind domain.GeneratorKind, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[kind] = c
}

func (r *GeneratorRegistry) Get(kind domain.GeneratorKind) (Constructor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[kind]
	if !ok {
		return nil, fmt.Errorf("generator not found: %s", kind)
	}
	return c, nil
}

// New looks up the schema's generator kind and builds it.
func (r *GeneratorRegistry) New(s *domain.Schema, opts tables.Options) (tables.Generator, error) {
	c, err := r.Get(s.Generator)
	if err != nil {
		return nil, err
	}
	return c(s, opts)
}

func (r *GeneratorRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for kind := range r.constructors {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

func DefaultGeneratorRegistry() *GeneratorRegistry {
	r := NewGeneratorRegistry()
	r.Register(domain.GeneratorDimension, func(s *domain.Schema, o tables.Options) (tables.Generator, error) {
		return tables.NewDimension(s, o)
	})
	r.Register(domain.GeneratorFact, func(s *domain.Schema, o tables.Options) (tables.Generator, error) {
		return tables.NewFact(s, o)
	})
	r.Register(domain.GeneratorChangeFeed, func(s *domain.Schema, o tables.Options) (tables.Generator, error) {
		return tables.NewChangeFeed(s, o)
	})
	r.Register(domain.GeneratorWeather, func(s *domain.Schema, o tables.Options) (tables.Generator, error) {
		return tables.NewWeather(s, o)
	})
	return r
}
