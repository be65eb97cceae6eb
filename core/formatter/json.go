package formatter

import (
	"encoding/json"
	"io"

	"github.com/artpar/rowmap/core/convention"
)

// JSON writes an envelope naming the entity with the records under "data".
type JSON struct{}

func (*JSON) Name() string        { return "json" }
func (*JSON) Description() string { return "JSON document with entity, count and data" }

// FormatList formats a list of records as one JSON document.
func (f *JSON) FormatList(w io.Writer, d convention.Derived, records []map[string]any, opts Options) error {
	return encodeJSON(w, map[string]any{
		"entity": d.Name,
		"count":  len(records),
		"data":   projectAll(records, columns(d, opts.Columns)),
	}, opts.Compact)
}

// FormatRecord formats a single record. A nil record encodes as null data.
func (f *JSON) FormatRecord(w io.Writer, d convention.Derived, record map[string]any, opts Options) error {
	var data any
	if record != nil {
		data = project(record, columns(d, opts.Columns))
	}
	return encodeJSON(w, map[string]any{"entity": d.Name, "data": data}, opts.Compact)
}

// JSONLines writes one compact JSON object per record, suitable for piping.
type JSONLines struct{}

func (*JSONLines) Name() string        { return "jsonl" }
func (*JSONLines) Description() string { return "one JSON object per line" }

// FormatList formats each record on its own line.
func (f *JSONLines) FormatList(w io.Writer, d convention.Derived, records []map[string]any, opts Options) error {
	cols := columns(d, opts.Columns)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(project(r, cols)); err != nil {
			return err
		}
	}
	return nil
}

// FormatRecord formats a single record on one line.
func (f *JSONLines) FormatRecord(w io.Writer, d convention.Derived, record map[string]any, opts Options) error {
	if record == nil {
		return encodeJSON(w, nil, true)
	}
	return encodeJSON(w, project(record, columns(d, opts.Columns)), true)
}

func encodeJSON(w io.Writer, data any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
