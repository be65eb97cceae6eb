// Package introspect derives entity descriptors on first use, caches them
// for the lifetime of the introspector and makes sure the storage tables
// behind them exist.
package introspect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/registry"
	"github.com/artpar/rowmap/core/schema"
	"github.com/artpar/rowmap/ports"
	"github.com/rs/zerolog"
)

// Introspector is the schema cache of the persistence core. It is the only
// component that alters storage structure.
type Introspector struct {
	mu sync.Mutex

	// registry resolves entity names to declarations
	registry *registry.Registry

	// store receives DDL
	store ports.Store

	// recorder observes table creation
	recorder ports.Recorder

	logger zerolog.Logger

	// cache of derived descriptors by entity name
	cache map[string]*convention.Derived
}

// Config configures an Introspector.
type Config struct {
	Registry *registry.Registry
	Store    ports.Store
	Recorder ports.Recorder
	Logger   zerolog.Logger
}

// New creates an introspector with an empty cache.
func New(cfg Config) *Introspector {
	rec := cfg.Recorder
	if rec == nil {
		rec = ports.NopRecorder{}
	}
	return &Introspector{
		registry: cfg.Registry,
		store:    cfg.Store,
		recorder: rec,
		logger:   cfg.Logger,
		cache:    make(map[string]*convention.Derived),
	}
}

// Describe returns the descriptor of a registered entity type.
//
// The first call for a type validates and derives it, creates its table
// (or adds missing columns) and does the same for every type it references,
// so no DDL is needed once a save is underway. Later calls hit the cache.
func (in *Introspector) Describe(ctx context.Context, name string) (*convention.Derived, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.describe(ctx, name, make(map[string]bool))
}

// DescribeEntity returns the descriptor of e's type.
func (in *Introspector) DescribeEntity(ctx context.Context, e model.Entity) (*convention.Derived, error) {
	return in.Describe(ctx, model.Name(e))
}

// Closure returns the cached descriptors of names and of every type they
// reference, transitively. It never touches storage, so the result can be
// used while a transaction holds the store. Every name must have been
// described first.
func (in *Introspector) Closure(names ...string) (map[string]*convention.Derived, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make(map[string]*convention.Derived)
	stack := append([]string(nil), names...)
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := out[name]; ok {
			continue
		}

		d, ok := in.cache[name]
		if !ok {
			return nil, schema.Errorf(name, "entity is not described; is it registered?")
		}
		out[name] = d
		for _, ref := range d.References() {
			stack = append(stack, ref.Ref)
		}
	}
	return out, nil
}

// Cached returns the names of the types derived so far, sorted.
func (in *Introspector) Cached() []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	names := make([]string, 0, len(in.cache))
	for name := range in.cache {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// describe derives name and its references. pending holds the types being
// described further up the stack and stops type-level cycles.
func (in *Introspector) describe(ctx context.Context, name string, pending map[string]bool) (*convention.Derived, error) {
	if d, ok := in.cache[name]; ok {
		return d, nil
	}
	if pending[name] {
		return nil, nil
	}

	derived, err := derive(in.registry, name)
	if err != nil {
		return nil, err
	}

	if err := in.ensureTable(ctx, &derived); err != nil {
		return nil, fmt.Errorf("ensure table for %q: %w", name, err)
	}

	pending[name] = true
	for _, ref := range derived.References() {
		if _, err := in.describe(ctx, ref.Ref, pending); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, ref.Name, err)
		}
	}
	delete(pending, name)

	in.cache[name] = &derived
	in.logger.Debug().
		Str("entity", name).
		Str("table", derived.Table).
		Int("fields", len(derived.Fields)).
		Msg("derived entity")

	return &derived, nil
}

// Check validates and derives every registered entity type without touching
// storage. All failures are returned joined.
func Check(reg *registry.Registry) error {
	var errs []error
	for _, name := range reg.Names() {
		if _, err := derive(reg, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func derive(reg *registry.Registry, name string) (convention.Derived, error) {
	decl, ok := reg.Lookup(name)
	if !ok {
		return convention.Derived{}, &schema.Error{Entity: name, Err: schema.ErrUnknownEntity}
	}

	if err := schema.Validate(decl); err != nil {
		return convention.Derived{}, err
	}

	derived, err := convention.Derive(decl)
	if err != nil {
		return convention.Derived{}, err
	}

	for _, ref := range derived.References() {
		if _, ok := reg.Lookup(ref.Ref); !ok {
			return convention.Derived{}, schema.Errorf(name, "field %q references unregistered entity %q", ref.Name, ref.Ref)
		}
	}
	return derived, nil
}

// ensureTable creates the table of d, or adds the columns it lacks, and
// creates the requested indexes.
func (in *Introspector) ensureTable(ctx context.Context, d *convention.Derived) error {
	exists, err := in.store.TableExists(ctx, d.Table)
	if err != nil {
		return err
	}

	if !exists {
		cols := make([]ports.ColumnDef, len(d.Fields))
		for i, f := range d.Fields {
			cols[i] = columnDef(f)
		}
		if err := in.store.CreateTable(ctx, d.Table, cols); err != nil {
			return err
		}
		in.recorder.TableCreated(d.Table)
		in.logger.Info().Str("entity", d.Name).Str("table", d.Table).Msg("created table")
	} else {
		existing, err := in.store.Columns(ctx, d.Table)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(existing))
		for _, c := range existing {
			have[c] = true
		}

		for _, f := range d.Fields {
			if have[f.Column] {
				continue
			}
			if f.Identity {
				return schema.Errorf(d.Name, "table %q exists without identity column %q", d.Table, f.Column)
			}
			if err := in.store.AddColumn(ctx, d.Table, columnDef(f)); err != nil {
				return err
			}
			in.logger.Info().Str("table", d.Table).Str("column", f.Column).Msg("added column")
		}
	}

	for _, f := range d.Fields {
		if f.Index && !f.Identity {
			if err := in.store.CreateIndex(ctx, d.Table, f.Column); err != nil {
				return err
			}
		}
	}

	return nil
}

// columnDef maps a derived field to its column. Only the identity carries
// constraints; nullability is enforced by coercion so that columns can be
// added to existing tables.
func columnDef(f convention.DerivedField) ports.ColumnDef {
	return ports.ColumnDef{
		Name:          f.Column,
		Type:          f.SQLType,
		PrimaryKey:    f.Identity,
		AutoIncrement: f.Identity,
	}
}
