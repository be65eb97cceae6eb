// Package relation walks reference fields: referenced entities are saved
// before the entities that depend on them, and loaded eagerly when a row
// is read back.
package relation

import (
	"context"
	"fmt"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/ports"
)

// DefaultMaxDepth bounds reference chains when Resolver.MaxDepth is zero.
const DefaultMaxDepth = 32

// PersistFunc saves a referenced entity and returns its identity.
// depth is the position of e in the chain being saved.
type PersistFunc func(ctx context.Context, e model.Entity, depth int) (int64, error)

// LoadFunc loads an entity by identity. A miss returns found == false.
type LoadFunc func(ctx context.Context, entity string, id int64, depth int) (e model.Entity, found bool, err error)

// Resolver resolves reference fields. Object graphs must be acyclic.
type Resolver struct {
	// MaxDepth is the longest reference chain followed from one entity.
	MaxDepth int

	// Recorder observes cascaded saves and hydrations. Optional.
	Recorder ports.Recorder
}

// CascadeSave saves every transient entity referenced by e, depth first,
// so that their identities exist when e is written. References that
// already carry an identity are left alone: saving is not an update
// cascade. The first failure aborts and is returned wrapped with the
// field it came from.
func (r *Resolver) CascadeSave(ctx context.Context, e model.Entity, d *convention.Derived, depth int, persist PersistFunc) error {
	for _, f := range d.References() {
		ref, ok := e.Get(f.Name).(model.Entity)
		if !ok || model.IsNil(ref) || ref.ID() != 0 {
			continue
		}

		if depth >= r.maxDepth() {
			return fmt.Errorf("cascade save %s.%s: %w (max %d)", d.Name, f.Name, ErrDepthExceeded, r.maxDepth())
		}

		r.recorder().CascadeSave(model.Name(ref))
		if _, err := persist(ctx, ref, depth+1); err != nil {
			return fmt.Errorf("cascade save %s.%s: %w", d.Name, f.Name, err)
		}
	}
	return nil
}

// Hydrate loads the entity behind every stored reference identity in refs
// and assigns it to e. References missing from refs stay unset. A stored
// identity with no row is a *DanglingReferenceError.
func (r *Resolver) Hydrate(ctx context.Context, e model.Entity, d *convention.Derived, refs map[string]int64, depth int, load LoadFunc) error {
	for _, f := range d.References() {
		id, ok := refs[f.Name]
		if !ok {
			continue
		}

		if depth >= r.maxDepth() {
			return fmt.Errorf("hydrate %s.%s: %w (max %d)", d.Name, f.Name, ErrDepthExceeded, r.maxDepth())
		}

		ref, found, err := load(ctx, f.Ref, id, depth+1)
		if err != nil {
			return fmt.Errorf("hydrate %s.%s: %w", d.Name, f.Name, err)
		}
		if !found {
			return &DanglingReferenceError{
				Entity:   d.Name,
				ID:       e.ID(),
				Field:    f.Name,
				Target:   f.Ref,
				TargetID: id,
			}
		}

		r.recorder().Hydration(f.Ref)
		if err := e.Set(f.Name, ref); err != nil {
			return fmt.Errorf("hydrate %s.%s: %w", d.Name, f.Name, err)
		}
	}
	return nil
}

func (r *Resolver) maxDepth() int {
	if r.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return r.MaxDepth
}

func (r *Resolver) recorder() ports.Recorder {
	if r.Recorder == nil {
		return ports.NopRecorder{}
	}
	return r.Recorder
}
