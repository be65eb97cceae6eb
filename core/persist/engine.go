// Package persist is the persistence engine: it saves, loads, counts and
// deletes entities, using the introspector for schemas, the coercion layer
// for values and the relation resolver for references.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/rowmap/core/coerce"
	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/introspect"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/registry"
	"github.com/artpar/rowmap/core/relation"
	"github.com/artpar/rowmap/core/schema"
	"github.com/artpar/rowmap/core/storage"
	"github.com/artpar/rowmap/ports"
	"github.com/rs/zerolog"
)

// Options tune the engine.
type Options struct {
	// Transactional wraps each Save, cascade included, in one transaction.
	Transactional bool

	// PageSize is the number of rows a cursor reads per query.
	PageSize int

	// MaxDepth bounds reference chains on save and load.
	MaxDepth int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Transactional: true,
		PageSize:      100,
		MaxDepth:      relation.DefaultMaxDepth,
	}
}

// Config configures an Engine.
type Config struct {
	Registry *registry.Registry
	Store    ports.Store

	// Introspector is created from Registry and Store when nil.
	Introspector *introspect.Introspector

	Recorder ports.Recorder
	Clock    ports.Clock
	Logger   zerolog.Logger
	Options  Options
}

// Engine executes persistence operations against one store.
type Engine struct {
	registry *registry.Registry
	store    ports.Store
	schemas  *introspect.Introspector
	resolver *relation.Resolver
	recorder ports.Recorder
	clock    ports.Clock
	logger   zerolog.Logger
	opts     Options
}

// New creates an engine.
func New(cfg Config) *Engine {
	rec := cfg.Recorder
	if rec == nil {
		rec = ports.NopRecorder{}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = systemClock{}
	}

	opts := cfg.Options
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = relation.DefaultMaxDepth
	}

	schemas := cfg.Introspector
	if schemas == nil {
		schemas = introspect.New(introspect.Config{
			Registry: cfg.Registry,
			Store:    cfg.Store,
			Recorder: rec,
			Logger:   cfg.Logger,
		})
	}

	return &Engine{
		registry: cfg.Registry,
		store:    cfg.Store,
		schemas:  schemas,
		resolver: &relation.Resolver{MaxDepth: opts.MaxDepth, Recorder: rec},
		recorder: rec,
		clock:    clk,
		logger:   cfg.Logger,
		opts:     opts,
	}
}

// Registry returns the registry of known entity types.
func (eng *Engine) Registry() *registry.Registry {
	return eng.registry
}

// Describe returns the descriptor of an entity type, creating its table
// on first use.
func (eng *Engine) Describe(ctx context.Context, entity string) (*convention.Derived, error) {
	return eng.schemas.Describe(ctx, entity)
}

// Options returns the options in effect.
func (eng *Engine) Options() Options {
	return eng.opts
}

// -----------------------------------------------------------------------------
// Write path
// -----------------------------------------------------------------------------

// Save writes e and returns its identity. Transient referenced entities are
// saved first. A transient e is inserted and receives a fresh identity; an
// identified e is upserted: inserted when its row is missing, overwritten
// otherwise.
//
// When the engine is transactional and any step fails, nothing is written
// and every identity assigned during the attempt is reset to 0.
func (eng *Engine) Save(ctx context.Context, e model.Entity) (id int64, err error) {
	if model.IsNil(e) {
		return 0, errors.New("save: nil entity")
	}
	name := model.Name(e)
	defer eng.observe("save", name, eng.clock.Now(), &err)

	err = eng.writeAll(ctx, []model.Entity{e})
	if err != nil {
		return 0, err
	}
	return e.ID(), nil
}

// SaveAll saves every entity, in order. When the engine is transactional
// all of them are written in one transaction.
func (eng *Engine) SaveAll(ctx context.Context, es ...model.Entity) (err error) {
	for _, e := range es {
		if model.IsNil(e) {
			return errors.New("save all: nil entity")
		}
	}
	defer eng.observe("save_all", "", eng.clock.Now(), &err)

	return eng.writeAll(ctx, es)
}

func (eng *Engine) writeAll(ctx context.Context, es []model.Entity) error {
	// Describe up front so no DDL is needed once the transaction is open,
	// and take the descriptors along so the introspector is not locked
	// while the store is.
	names := make([]string, 0, len(es))
	for _, e := range es {
		if _, err := eng.schemas.DescribeEntity(ctx, e); err != nil {
			return err
		}
		names = append(names, model.Name(e))
	}
	descs, err := eng.schemas.Closure(names...)
	if err != nil {
		return err
	}

	if !eng.opts.Transactional {
		for _, e := range es {
			if _, err := eng.save(ctx, eng.store, descs, e, 0, nil); err != nil {
				return err
			}
		}
		return nil
	}

	var assigned []model.Entity
	err = eng.store.WithTx(ctx, func(ex ports.Executor) error {
		for _, e := range es {
			if _, err := eng.save(ctx, ex, descs, e, 0, &assigned); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, a := range assigned {
			a.SetID(0)
		}
		if len(assigned) > 0 {
			eng.logger.Debug().Int("entities", len(assigned)).Msg("rolled back identities")
		}
		return err
	}
	return nil
}

// save writes one entity through ex after cascading its references.
// descs holds the descriptors of every type reachable from the entities
// being written. Identities handed out are appended to assigned when it is
// not nil.
func (eng *Engine) save(ctx context.Context, ex ports.Executor, descs map[string]*convention.Derived, e model.Entity, depth int, assigned *[]model.Entity) (int64, error) {
	name := model.Name(e)
	d, ok := descs[name]
	if !ok {
		return 0, schema.Errorf(name, "entity is not described; is it registered?")
	}

	persist := func(ctx context.Context, ref model.Entity, depth int) (int64, error) {
		return eng.save(ctx, ex, descs, ref, depth, assigned)
	}
	if err := eng.resolver.CascadeSave(ctx, e, d, depth, persist); err != nil {
		return 0, err
	}

	row, err := coerce.Row(d, e)
	if err != nil {
		return 0, err
	}
	cols := persistedColumns(d)

	if model.StateOf(e) == model.Transient {
		res, err := ex.Exec(ctx, storage.BuildInsertSQL(d.Table, cols), row...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", name, err)
		}

		id := res.LastInsertID
		if id == 0 {
			id = eng.store.LastInsertedID()
		}
		if id == 0 {
			return 0, fmt.Errorf("insert %s: no identity assigned", name)
		}

		e.SetID(id)
		if assigned != nil {
			*assigned = append(*assigned, e)
		}

		eng.logger.Debug().Str("entity", name).Int64("id", id).Msg("inserted")
		return id, nil
	}

	args := append([]any{e.ID()}, row...)
	if _, err := ex.Exec(ctx, storage.BuildUpsertSQL(d.Table, convention.IdentityColumn, cols), args...); err != nil {
		return 0, fmt.Errorf("upsert %s#%d: %w", name, e.ID(), err)
	}

	eng.logger.Debug().Str("entity", name).Int64("id", e.ID()).Msg("upserted")
	return e.ID(), nil
}

// DeleteByID removes the row with the given identity. Deleting a missing
// row is not an error.
func (eng *Engine) DeleteByID(ctx context.Context, entity string, id int64) (err error) {
	defer eng.observe("delete", entity, eng.clock.Now(), &err)

	d, err := eng.schemas.Describe(ctx, entity)
	if err != nil {
		return err
	}

	res, err := eng.store.Exec(ctx, storage.BuildDeleteByIDSQL(d.Table, convention.IdentityColumn), id)
	if err != nil {
		return fmt.Errorf("delete %s#%d: %w", entity, id, err)
	}

	eng.logger.Debug().Str("entity", entity).Int64("id", id).Int64("rows", res.RowsAffected).Msg("deleted")
	return nil
}

// Delete removes the row of e. The identity stays on e: saving it again
// re-inserts the row under the same identity. Deleting a transient entity
// does nothing.
func (eng *Engine) Delete(ctx context.Context, e model.Entity) error {
	if model.IsNil(e) || model.StateOf(e) == model.Transient {
		return nil
	}
	return eng.DeleteByID(ctx, model.Name(e), e.ID())
}

// DeleteAll removes every row matching where, or every row when where is
// empty, and returns how many were removed.
func (eng *Engine) DeleteAll(ctx context.Context, entity, where string, args ...any) (n int64, err error) {
	defer eng.observe("delete_all", entity, eng.clock.Now(), &err)

	d, err := eng.schemas.Describe(ctx, entity)
	if err != nil {
		return 0, err
	}

	res, err := eng.store.Exec(ctx, storage.BuildDeleteSQL(d.Table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", entity, err)
	}
	return res.RowsAffected, nil
}

// -----------------------------------------------------------------------------
// Read path
// -----------------------------------------------------------------------------

// FindByID loads the entity with the given identity and its references.
// A missing row returns found == false and no error.
func (eng *Engine) FindByID(ctx context.Context, entity string, id int64) (e model.Entity, found bool, err error) {
	defer eng.observe("find_by_id", entity, eng.clock.Now(), &err)

	if _, err := eng.schemas.Describe(ctx, entity); err != nil {
		return nil, false, err
	}
	return eng.load(ctx, entity, id, 0)
}

// Get loads an entity of type T by identity. T must be a compiled entity
// type whose Schema does not read the receiver; declared records share one
// Go type and are loaded with FindByID.
func Get[T model.Entity](ctx context.Context, eng *Engine, id int64) (T, bool, error) {
	var zero T
	if _, ok := any(zero).(*model.Record); ok {
		return zero, false, errors.New("get: records carry no static entity name; use FindByID")
	}
	e, found, err := eng.FindByID(ctx, zero.Schema().Name, id)
	if err != nil || !found {
		return zero, found, err
	}

	t, ok := e.(T)
	if !ok {
		return zero, false, fmt.Errorf("%s#%d: loaded %T, want %T", zero.Schema().Name, id, e, zero)
	}
	return t, true, nil
}

// Count returns the number of rows of an entity type.
func (eng *Engine) Count(ctx context.Context, entity string) (int64, error) {
	return eng.CountWhere(ctx, entity, "")
}

// CountWhere returns the number of rows matching where.
func (eng *Engine) CountWhere(ctx context.Context, entity, where string, args ...any) (n int64, err error) {
	defer eng.observe("count", entity, eng.clock.Now(), &err)

	d, err := eng.schemas.Describe(ctx, entity)
	if err != nil {
		return 0, err
	}

	rs, err := eng.store.Query(ctx, storage.BuildCountSQL(d.Table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", entity, err)
	}
	if rs.Len() == 0 || len(rs.Values[0]) == 0 {
		return 0, nil
	}

	n, ok := rs.Values[0][0].(int64)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected %T", entity, rs.Values[0][0])
	}
	return n, nil
}

// ListAll returns a cursor over every row of an entity type.
func (eng *Engine) ListAll(ctx context.Context, entity string) *Cursor {
	return eng.newCursor(ctx, "list", entity, "", nil)
}

// Find returns a cursor over the rows matching an opaque predicate.
func (eng *Engine) Find(ctx context.Context, entity, where string, args ...any) *Cursor {
	return eng.newCursor(ctx, "find", entity, where, args)
}

// First loads the row with the lowest identity.
func (eng *Engine) First(ctx context.Context, entity string) (model.Entity, bool, error) {
	return eng.edge(ctx, "first", entity, false)
}

// Last loads the row with the highest identity.
func (eng *Engine) Last(ctx context.Context, entity string) (model.Entity, bool, error) {
	return eng.edge(ctx, "last", entity, true)
}

func (eng *Engine) edge(ctx context.Context, op, entity string, desc bool) (e model.Entity, found bool, err error) {
	defer eng.observe(op, entity, eng.clock.Now(), &err)

	d, err := eng.schemas.Describe(ctx, entity)
	if err != nil {
		return nil, false, err
	}

	stmt := storage.BuildSelectSQL(d.Table, d.Columns(), storage.SelectOptions{
		Key:   convention.IdentityColumn,
		Desc:  desc,
		Limit: 1,
	})
	rs, err := eng.store.Query(ctx, stmt)
	if err != nil {
		return nil, false, fmt.Errorf("%s %s: %w", op, entity, err)
	}
	if rs.Len() == 0 {
		return nil, false, nil
	}

	e, err = eng.materialize(ctx, d, rs.Values[0], 0)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// load reads one row by identity. It is the LoadFunc of the resolver.
func (eng *Engine) load(ctx context.Context, entity string, id int64, depth int) (model.Entity, bool, error) {
	d, err := eng.schemas.Describe(ctx, entity)
	if err != nil {
		return nil, false, err
	}

	rs, err := eng.store.Query(ctx, storage.BuildSelectByIDSQL(d.Table, d.Columns(), convention.IdentityColumn), id)
	if err != nil {
		return nil, false, fmt.Errorf("load %s#%d: %w", entity, id, err)
	}
	if rs.Len() == 0 {
		return nil, false, nil
	}

	e, err := eng.materialize(ctx, d, rs.Values[0], depth)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// materialize builds an entity from a row aligned with d.Columns() and
// hydrates its references.
func (eng *Engine) materialize(ctx context.Context, d *convention.Derived, row []any, depth int) (model.Entity, error) {
	dec, err := coerce.Decode(d, row)
	if err != nil {
		return nil, err
	}

	e, err := eng.registry.Instantiate(d.Name)
	if err != nil {
		return nil, err
	}
	e.SetID(dec.ID)

	for name, v := range dec.Values {
		if err := e.Set(name, v); err != nil {
			return nil, fmt.Errorf("load %s#%d: %w", d.Name, dec.ID, err)
		}
	}

	if err := eng.resolver.Hydrate(ctx, e, d, dec.Refs, depth, eng.load); err != nil {
		return nil, err
	}
	return e, nil
}

// observe reports one finished operation. err points at the named result
// of the caller so the outcome is read after it returns.
func (eng *Engine) observe(op, entity string, start time.Time, err *error) {
	eng.recorder.Operation(op, entity, eng.clock.Now().Sub(start), *err)

	if *err != nil {
		eng.logger.Debug().Err(*err).Str("op", op).Str("entity", entity).Msg("operation failed")
	}
}

func persistedColumns(d *convention.Derived) []string {
	fields := d.Persisted()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
	}
	return cols
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
