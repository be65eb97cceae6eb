package persist

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/model"
	"github.com/artpar/rowmap/core/storage"
)

// Cursor iterates the rows of one entity type in identity order.
//
// Rows are read a page at a time with keyset paging ("id > last"), and
// every page is fully read before its rows are hydrated, so loading
// references never competes with an open result set. A cursor is lazy,
// finite and cannot be restarted.
//
//	cur := eng.ListAll(ctx, "Nested")
//	for cur.Next() {
//		n := cur.Entity().(*Nested)
//	}
//	if err := cur.Err(); err != nil { ... }
type Cursor struct {
	eng    *Engine
	ctx    context.Context
	op     string
	entity string
	where  string
	args   []any
	limit  int

	d       *convention.Derived
	page    [][]any
	pos     int
	lastID  int64
	fetched bool
	drained bool

	current model.Entity
	seen    int
	err     error

	start    time.Time
	finished bool
}

func (eng *Engine) newCursor(ctx context.Context, op, entity, where string, args []any) *Cursor {
	return &Cursor{
		eng:    eng,
		ctx:    ctx,
		op:     op,
		entity: entity,
		where:  where,
		args:   args,
		start:  eng.clock.Now(),
	}
}

// Limit caps the number of entities the cursor yields. It must be called
// before the first Next.
func (c *Cursor) Limit(n int) *Cursor {
	c.limit = n
	return c
}

// Next advances to the next entity. It returns false when the rows are
// exhausted or an error occurred; check Err afterwards.
func (c *Cursor) Next() bool {
	if c.finished {
		return false
	}
	if c.limit > 0 && c.seen >= c.limit {
		c.finish(nil)
		return false
	}

	if c.d == nil {
		d, err := c.eng.schemas.Describe(c.ctx, c.entity)
		if err != nil {
			c.finish(err)
			return false
		}
		c.d = d
	}

	if c.pos >= len(c.page) {
		if c.drained {
			c.finish(nil)
			return false
		}
		if err := c.fetch(); err != nil {
			c.finish(err)
			return false
		}
		if len(c.page) == 0 {
			c.finish(nil)
			return false
		}
	}

	row := c.page[c.pos]
	c.pos++

	e, err := c.eng.materialize(c.ctx, c.d, row, 0)
	if err != nil {
		c.finish(err)
		return false
	}

	c.current = e
	c.lastID = e.ID()
	c.seen++
	return true
}

// Entity returns the entity Next advanced to.
func (c *Cursor) Entity() model.Entity {
	return c.current
}

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error {
	return c.err
}

// All returns the remaining entities as an iterator. An error is yielded
// once, as the last pair.
func (c *Cursor) All() iter.Seq2[model.Entity, error] {
	return func(yield func(model.Entity, error) bool) {
		for c.Next() {
			if !yield(c.current, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

// Collect reads the remaining entities into a slice.
func (c *Cursor) Collect() ([]model.Entity, error) {
	var out []model.Entity
	for c.Next() {
		out = append(out, c.current)
	}
	return out, c.err
}

// fetch reads the next page of rows after lastID.
func (c *Cursor) fetch() error {
	size := c.eng.opts.PageSize
	if c.limit > 0 && c.limit-c.seen < size {
		size = c.limit - c.seen
	}

	stmt := storage.BuildSelectSQL(c.d.Table, c.d.Columns(), storage.SelectOptions{
		Key:   convention.IdentityColumn,
		Where: c.where,
		After: c.fetched,
		Limit: size,
	})

	args := slices.Clone(c.args)
	if c.fetched {
		args = append(args, c.lastID)
	}

	rs, err := c.eng.store.Query(c.ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", c.op, c.entity, err)
	}

	c.page = rs.Values
	c.pos = 0
	c.fetched = true
	c.drained = rs.Len() < size
	return nil
}

// finish stops the cursor and reports the operation once.
func (c *Cursor) finish(err error) {
	if c.finished {
		return
	}
	c.finished = true
	c.err = err
	c.current = nil
	c.page = nil
	c.eng.observe(c.op, c.entity, c.start, &err)
}
