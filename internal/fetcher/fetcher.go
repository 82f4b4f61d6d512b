package fetcher

import (
	"context"
	"fmt"
	"sort"

	"cheaphours/internal/record"
)

// Source yields price and/or consumption records from one data provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]record.Record, error)
}

// Registry maps source names to implementations. It is built once at startup.
type Registry struct {
	sources map[string]Source
}

// NewRegistry registers the given sources under their names.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, src := range sources {
		if err := r.Register(src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds src; names must be unique.
func (r *Registry) Register(src Source) error {
	name := src.Name()
	if _, ok := r.sources[name]; ok {
		return fmt.Errorf("source %q already registered", name)
	}
	r.sources[name] = src
	return nil
}

// Get looks up a source by name.
func (r *Registry) Get(name string) (Source, error) {
	src, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return src, nil
}

// All returns every source sorted by name.
func (r *Registry) All() []Source {
	names := r.Names()
	out := make([]Source, 0, len(names))
	for _, name := range names {
		out = append(out, r.sources[name])
	}
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
