package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the entity definitions known to a query factory. Reference
// fields are resolved against it when joins are rendered.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*EntityDefinition
}

// NewRegistry creates a registry populated with the given definitions.
func NewRegistry(defs ...*EntityDefinition) (*Registry, error) {
	r := &Registry{entities: make(map[string]*EntityDefinition)}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a definition. Names are unique.
func (r *Registry) Register(def *EntityDefinition) error {
	if def == nil {
		return fmt.Errorf("cannot register nil entity definition")
	}
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entities[def.Name]; exists {
		return fmt.Errorf("entity '%s' already registered", def.Name)
	}
	r.entities[def.Name] = def
	return nil
}

// Lookup returns the definition with the given name.
func (r *Registry) Lookup(name string) (*EntityDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.entities[name]
	return def, ok
}

// MustLookup is like Lookup but panics when the entity is unknown.
func (r *Registry) MustLookup(name string) *EntityDefinition {
	def, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("schema: entity '%s' not registered", name))
	}
	return def
}

// Entities returns all definitions ordered so that referenced entities come
// before the entities referencing them, ties broken by name. This is the
// order tables must be created in.
func (r *Registry) Entities() []*EntityDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]*EntityDefinition, 0, len(names))
	visited := make(map[string]bool, len(names))
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		def, ok := r.entities[name]
		if !ok {
			return
		}
		for _, ref := range def.References() {
			if ref.Reference != name {
				visit(ref.Reference)
			}
		}
		ordered = append(ordered, def)
	}
	for _, name := range names {
		visit(name)
	}
	return ordered
}

// CheckReferences reports reference fields whose target is not registered.
func (r *Registry) CheckReferences() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var issues []Issue
	for _, def := range r.entities {
		for _, ref := range def.References() {
			if _, ok := r.entities[ref.Reference]; !ok {
				issues = append(issues, Issue{
					Code:    "UNKNOWN_REFERENCE",
					Message: fmt.Sprintf("field '%s.%s' references unknown entity '%s'", def.Name, ref.Name, ref.Reference),
					Path:    def.Name + "." + ref.Name,
				})
			}
		}
	}
	if len(issues) > 0 {
		sort.Slice(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
		return &ValidationError{Entity: "registry", Issues: issues}
	}
	return nil
}
