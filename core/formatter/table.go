package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/artpar/rowmap/core/convention"
)

// Table writes aligned text columns. References are shown as Entity#id.
type Table struct{}

func (*Table) Name() string        { return "table" }
func (*Table) Description() string { return "aligned text table" }

// FormatList formats a list of records as a table.
func (f *Table) FormatList(w io.Writer, d convention.Derived, records []map[string]any, opts Options) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return nil
	}

	cols := columns(d, opts.Columns)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if !opts.NoHeader {
		headers := make([]string, len(cols))
		for i, c := range cols {
			headers[i] = strings.ToUpper(c)
		}
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}

	for _, record := range records {
		values := make([]string, len(cols))
		for i, c := range cols {
			values[i] = cell(d, c, record[c], opts.MaxWidth)
		}
		fmt.Fprintln(tw, strings.Join(values, "\t"))
	}

	return tw.Flush()
}

// FormatRecord formats a single record as label/value lines.
func (f *Table) FormatRecord(w io.Writer, d convention.Derived, record map[string]any, opts Options) error {
	if record == nil {
		fmt.Fprintln(w, "Record not found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range columns(d, opts.Columns) {
		fmt.Fprintf(tw, "%s:\t%s\n", c, cell(d, c, record[c], 0))
	}
	return tw.Flush()
}

// cell renders one value. Absent values render as "-".
func cell(d convention.Derived, field string, val any, maxWidth int) string {
	if val == nil {
		return "-"
	}

	var str string
	switch v := val.(type) {
	case string:
		str = v
	case bool:
		str = strconv.FormatBool(v)
	case []byte:
		str = fmt.Sprintf("[%d bytes]", len(v))
	case int64:
		str = strconv.FormatInt(v, 10)
	case float64:
		str = strconv.FormatFloat(v, 'g', -1, 64)
	case map[string]any:
		str = reference(d, field, v)
	default:
		b, _ := json.Marshal(v)
		if str = string(b); str == "null" {
			return "-"
		}
	}

	if maxWidth > 3 && len(str) > maxWidth {
		str = str[:maxWidth-3] + "..."
	}
	return str
}

// reference renders a loaded reference by target name and identity.
func reference(d convention.Derived, field string, v map[string]any) string {
	target := "ref"
	if f, ok := d.Field(field); ok && f.Ref != "" {
		target = f.Ref
	}
	return fmt.Sprintf("%s#%v", target, v[convention.IdentityColumn])
}
