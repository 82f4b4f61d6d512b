// Package messaging delivers selected time ranges to devices and services.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"cheaphours/internal/selection"
)

// ErrRejected marks a delivery the receiving side refused.
var ErrRejected = errors.New("message rejected")

// Status reports the outcome of one Send.
type Status struct {
	Target string
	// Delivered counts accepted payloads, which may be fewer than Total
	// when delivery stops at the first rejection.
	Delivered int
	Total     int
	OK        bool
}

// Target sends a selection somewhere.
type Target interface {
	Name() string
	Send(ctx context.Context, sel *selection.Selection) (Status, error)
}

// Registry maps target names to implementations.
type Registry struct {
	targets map[string]Target
}

// NewRegistry registers every target, rejecting duplicate names.
func NewRegistry(targets ...Target) (*Registry, error) {
	r := &Registry{targets: make(map[string]Target, len(targets))}
	for _, t := range targets {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a target under its name.
func (r *Registry) Register(t Target) error {
	name := t.Name()
	if _, exists := r.targets[name]; exists {
		return fmt.Errorf("message target %q registered twice", name)
	}
	r.targets[name] = t
	return nil
}

// Get returns the named target.
func (r *Registry) Get(name string) (Target, error) {
	t, ok := r.targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown message target %q (have %v)", name, r.Names())
	}
	return t, nil
}

// Names lists registered targets alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SendAll sends sel to each named target in turn. Every target is attempted;
// failures are joined.
func (r *Registry) SendAll(ctx context.Context, sel *selection.Selection, names ...string) ([]Status, error) {
	var (
		statuses []Status
		errs     []error
	)
	for _, name := range names {
		target, err := r.Get(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		status, err := target.Send(ctx, sel)
		statuses = append(statuses, status)
		if err != nil {
			errs = append(errs, fmt.Errorf("send %s: %w", name, err))
		}
	}
	return statuses, errors.Join(errs...)
}
