// Package registry holds the entity types known to the persistence core.
// Types are registered explicitly at startup; registration detects name
// and table conflicts and provides lookup and instantiation by name.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/schema"
)

// Registry manages registered entity types.
type Registry struct {
	mu sync.RWMutex

	// entries by entity name
	entries map[string]entry

	// tables to entity names
	tables map[string]string
}

type entry struct {
	decl    schema.Entity
	factory model.Factory
}

// New creates a new registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		tables:  make(map[string]string),
	}
}

// Register registers the type produced by factory.
// Returns an error if the name or table is already claimed.
func (r *Registry) Register(factory model.Factory) error {
	if factory == nil {
		return fmt.Errorf("nil factory")
	}
	return r.register(factory().Schema(), factory)
}

// RegisterAll registers every factory, stopping at the first error.
func (r *Registry) RegisterAll(factories ...model.Factory) error {
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			return err
		}
	}
	return nil
}

// RegisterSchema registers a runtime declaration backed by model.Record.
func (r *Registry) RegisterSchema(decl schema.Entity) error {
	return r.register(decl, model.RecordFactory(decl))
}

func (r *Registry) register(decl schema.Entity, factory model.Factory) error {
	if decl.Name == "" {
		return schema.Errorf(decl.Name, "entity name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[decl.Name]; exists {
		return &ConflictError{Conflicts: []Conflict{{Kind: "entity", Name: decl.Name, Claims: []string{decl.Name, decl.Name}}}}
	}

	table := convention.TableName(decl)
	if existing, exists := r.tables[table]; exists {
		return &ConflictError{Conflicts: []Conflict{{Kind: "table", Name: table, Claims: []string{existing, decl.Name}}}}
	}

	r.entries[decl.Name] = entry{decl: decl, factory: factory}
	r.tables[table] = decl.Name

	return nil
}

// Unregister removes an entity type from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, exists := r.entries[name]
	if !exists {
		return fmt.Errorf("entity %q not registered", name)
	}

	delete(r.tables, convention.TableName(e.decl))
	delete(r.entries, name)

	return nil
}

// Lookup returns the declaration of a registered entity type.
func (r *Registry) Lookup(name string) (schema.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e.decl, ok
}

// Instantiate creates a new transient instance of a registered type.
func (r *Registry) Instantiate(name string) (model.Entity, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &schema.Error{Entity: name, Err: schema.ErrUnknownEntity}
	}
	return e.factory(), nil
}

// List returns all registered declarations sorted by name.
func (r *Registry) List() []schema.Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]schema.Entity, 0, len(r.entries))
	for _, e := range r.entries {
		decls = append(decls, e.decl)
	}

	sort.Slice(decls, func(i, j int) bool {
		return decls[i].Name < decls[j].Name
	})

	return decls
}

// Names returns the registered entity names sorted.
func (r *Registry) Names() []string {
	decls := r.List()
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Conflict describes one name claimed twice.
type Conflict struct {
	Kind   string // "entity" or "table"
	Name   string
	Claims []string
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s %q claimed by %s", c.Kind, c.Name, strings.Join(c.Claims, " and "))
}

// ConflictError represents one or more registration conflicts.
type ConflictError struct {
	Conflicts []Conflict
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	var msgs []string
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.String())
	}
	return fmt.Sprintf("registration conflicts detected:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasConflicts returns true if there are any conflicts.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Conflicts) > 0
}
