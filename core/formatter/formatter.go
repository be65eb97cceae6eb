// Package formatter renders encoded entity records for the command line.
// Records are the JSON-ready maps produced for an entity and its loaded
// references; a formatter turns a list or a single record into text.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/artpar/rowmap/core/convention"
)

// Formatter converts records of one entity type to an output format.
type Formatter interface {
	// Name returns the format name (e.g. "table", "json").
	Name() string

	// Description returns a one-line description for help output.
	Description() string

	// FormatList formats a list of records.
	FormatList(w io.Writer, d convention.Derived, records []map[string]any, opts Options) error

	// FormatRecord formats a single record.
	FormatRecord(w io.Writer, d convention.Derived, record map[string]any, opts Options) error
}

// Options configures formatting.
type Options struct {
	// Columns selects fields by declared name (nil = every field).
	Columns []string

	// NoHeader disables the header row of tabular formats.
	NoHeader bool

	// Compact minimizes whitespace for json.
	Compact bool

	// MaxWidth truncates long table cells (0 = no limit).
	MaxWidth int
}

// Registry holds the available formatters by name.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{formatters: make(map[string]Formatter)}
}

// Builtin returns a registry with every formatter of this package.
func Builtin() *Registry {
	r := NewRegistry()
	for _, f := range []Formatter{&JSON{}, &JSONLines{}, &Table{}, &YAML{}} {
		r.formatters[f.Name()] = f
	}
	return r
}

// Register adds a formatter.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}
	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %v)", name, r.names())
	}
	return f, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.formatters))
	for name := range r.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// columns returns the requested fields, or every field of d in order.
func columns(d convention.Derived, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	cols := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		cols[i] = f.Name
	}
	return cols
}

// project keeps only the selected fields of record. Unknown names are
// skipped.
func project(record map[string]any, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := record[c]; ok {
			out[c] = v
		}
	}
	return out
}

func projectAll(records []map[string]any, cols []string) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = project(r, cols)
	}
	return out
}
