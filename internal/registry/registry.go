// Package registry maps entity ids to their table definitions.
package registry

import (
	"fmt"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

type Registry struct {
	order    []string
	entities map[string]domain.Entity
}

// New validates and registers entities in the given order.
func New(entities ...domain.Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]domain.Entity, len(entities))}
	for _, e := range entities {
		if err := r.add(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(e domain.Entity) error {
	if e.Name == "" {
		return fmt.Errorf("entity without a name")
	}
	if _, dup := r.entities[e.Name]; dup {
		return fmt.Errorf("entity %s registered twice", e.Name)
	}
	if len(e.Fields) == 0 {
		return fmt.Errorf("entity %s has no fields", e.Name)
	}
	seen := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			return fmt.Errorf("entity %s: field without a name", e.Name)
		}
		if seen[f.Field] {
			return fmt.Errorf("entity %s: duplicate field %s", e.Name, f.Field)
		}
		seen[f.Field] = true
	}
	if len(e.Rates) > 0 && e.Key == "" {
		return fmt.Errorf("entity %s derives rates but has no key field", e.Name)
	}
	if e.Source == nil {
		return fmt.Errorf("entity %s has no data source", e.Name)
	}
	r.entities[e.Name] = e
	r.order = append(r.order, e.Name)
	return nil
}

// Lookup returns the entity registered as name.
func (r *Registry) Lookup(name string) (domain.Entity, error) {
	e, ok := r.entities[name]
	if !ok {
		return domain.Entity{}, fmt.Errorf("%q: %w", name, domain.ErrUnknownEntity)
	}
	return e, nil
}

// Names lists entity ids in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Len() int { return len(r.order) }
