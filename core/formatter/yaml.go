package formatter

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/artpar/rowmap/core/convention"
)

// YAML writes the same envelope as JSON in YAML.
type YAML struct{}

func (*YAML) Name() string        { return "yaml" }
func (*YAML) Description() string { return "YAML document with entity, count and data" }

// FormatList formats a list of records as YAML.
func (f *YAML) FormatList(w io.Writer, d convention.Derived, records []map[string]any, opts Options) error {
	return encodeYAML(w, map[string]any{
		"entity": d.Name,
		"count":  len(records),
		"data":   projectAll(records, columns(d, opts.Columns)),
	})
}

// FormatRecord formats a single record as YAML.
func (f *YAML) FormatRecord(w io.Writer, d convention.Derived, record map[string]any, opts Options) error {
	var data any
	if record != nil {
		data = project(record, columns(d, opts.Columns))
	}
	return encodeYAML(w, map[string]any{"entity": d.Name, "data": data})
}

func encodeYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(data)
}
