// Package core defines the Registry of operator schemas known to a dispatcher.
package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/comalice/adlayers/internal/primitives"
)

// Registry resolves operator names to schemas.
type Registry interface {
	// Register adds a schema under its qualified name.
	Register(ctx context.Context, schema primitives.OperatorSchema) error

	// Lookup returns the schema for a qualified name, or for a bare name that
	// has exactly one overload.
	Lookup(ctx context.Context, name string) (primitives.OperatorSchema, error)

	// List returns all qualified names, sorted.
	List(ctx context.Context) ([]string, error)
}

var (
	ErrNotFound  = errors.New("operator not found")
	ErrExists    = errors.New("operator already registered")
	ErrAmbiguous = errors.New("operator name matches several overloads")
)

// MemoryRegistry is an in-memory Registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	schemas map[string]primitives.OperatorSchema
}

// NewMemoryRegistry creates a registry holding every operator of catalogs.
func NewMemoryRegistry(catalogs ...*primitives.Catalog) (*MemoryRegistry, error) {
	r := &MemoryRegistry{schemas: make(map[string]primitives.OperatorSchema)}
	for _, c := range catalogs {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("catalog %q: %w", c.ID, err)
		}
		for _, op := range c.Operators {
			if err := r.Register(context.Background(), op); err != nil {
				return nil, fmt.Errorf("catalog %q: %w", c.ID, err)
			}
		}
	}
	return r, nil
}

func (r *MemoryRegistry) Register(ctx context.Context, schema primitives.OperatorSchema) error {
	if err := schema.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := schema.QualifiedName()
	if _, ok := r.schemas[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrExists)
	}
	r.schemas[name] = schema
	return nil
}

func (r *MemoryRegistry) Lookup(ctx context.Context, name string) (primitives.OperatorSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[name]; ok {
		return s, nil
	}
	var matches []primitives.OperatorSchema
	for _, s := range r.schemas {
		if s.Name == name || strings.TrimPrefix(s.Name, "aten::") == name {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return primitives.OperatorSchema{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return primitives.OperatorSchema{}, fmt.Errorf("%s (%d overloads): %w", name, len(matches), ErrAmbiguous)
	}
}

func (r *MemoryRegistry) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}
