package formatter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/artpar/rowmap/core/convention"
	"github.com/artpar/rowmap/core/schema"
)

func postDerived(t *testing.T) convention.Derived {
	t.Helper()
	d, err := convention.Derive(schema.Entity{
		Name: "Post",
		Fields: schema.Fields{
			{Name: "title", Type: schema.FieldTypeText},
			{Name: "score", Type: schema.FieldTypeReal, Nullable: true},
			{Name: "author", Type: schema.FieldTypeReference, To: "Author"},
		},
	})
	if err != nil {
		t.Fatalf("Derive error: %v", err)
	}
	return d
}

func postRecords() []map[string]any {
	score := 4.5
	return []map[string]any{
		{"id": int64(1), "title": "Kindred", "score": &score, "author": map[string]any{"id": int64(7), "name": "Butler"}},
		{"id": int64(2), "title": "Dawn", "score": (*float64)(nil), "author": nil},
	}
}

func TestBuiltin(t *testing.T) {
	r := Builtin()

	got := strings.Join(r.List(), ",")
	if got != "json,jsonl,table,yaml" {
		t.Errorf("List() = %s, want json,jsonl,table,yaml", got)
	}
	for _, name := range r.List() {
		f, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%s) error: %v", name, err)
		}
		if f.Name() != name || f.Description() == "" {
			t.Errorf("formatter %s: Name() = %s, Description() = %q", name, f.Name(), f.Description())
		}
	}

	if _, err := r.Get("csv"); err == nil || !strings.Contains(err.Error(), "available") {
		t.Errorf("Get(csv) error = %v, want unknown format listing available ones", err)
	}
	if err := r.Register(&JSON{}); err == nil {
		t.Error("registering json twice should fail")
	}
}

func TestTable_FormatList(t *testing.T) {
	var buf bytes.Buffer
	if err := (&Table{}).FormatList(&buf, postDerived(t), postRecords(), Options{}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); strings.Join(fields, " ") != "ID TITLE SCORE AUTHOR" {
		t.Errorf("header = %q", lines[0])
	}
	if fields := strings.Fields(lines[1]); strings.Join(fields, " ") != "1 Kindred 4.5 Author#7" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if fields := strings.Fields(lines[2]); strings.Join(fields, " ") != "2 Dawn - -" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestTable_Options(t *testing.T) {
	d := postDerived(t)

	var buf bytes.Buffer
	(&Table{}).FormatList(&buf, d, postRecords(), Options{Columns: []string{"title"}, NoHeader: true, MaxWidth: 5})
	if got := strings.Fields(buf.String()); strings.Join(got, " ") != "Ki... Dawn" {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	(&Table{}).FormatList(&buf, d, nil, Options{})
	if !strings.Contains(buf.String(), "No records found.") {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	(&Table{}).FormatRecord(&buf, d, postRecords()[0], Options{})
	if !strings.Contains(buf.String(), "title:") || !strings.Contains(buf.String(), "Author#7") {
		t.Errorf("record output = %q", buf.String())
	}

	buf.Reset()
	(&Table{}).FormatRecord(&buf, d, nil, Options{})
	if !strings.Contains(buf.String(), "Record not found.") {
		t.Errorf("nil record output = %q", buf.String())
	}
}

func TestCell(t *testing.T) {
	d := postDerived(t)
	n := int64(3)

	tests := []struct {
		val  any
		want string
	}{
		{nil, "-"},
		{"text", "text"},
		{true, "true"},
		{int64(42), "42"},
		{0.25, "0.25"},
		{[]byte{1, 2, 3}, "[3 bytes]"},
		{&n, "3"},
		{(*int64)(nil), "-"},
	}
	for _, tt := range tests {
		if got := cell(d, "title", tt.val, 0); got != tt.want {
			t.Errorf("cell(%v) = %q, want %q", tt.val, got, tt.want)
		}
	}
}

func TestJSON_FormatList(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSON{}).FormatList(&buf, postDerived(t), postRecords(), Options{Columns: []string{"id", "title", "missing"}}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}

	var out struct {
		Entity string           `json:"entity"`
		Count  int              `json:"count"`
		Data   []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Entity != "Post" || out.Count != 2 || len(out.Data) != 2 {
		t.Fatalf("output = %+v", out)
	}
	if len(out.Data[0]) != 2 || out.Data[0]["title"] != "Kindred" {
		t.Errorf("data[0] = %v, want id and title only", out.Data[0])
	}
}

func TestJSON_FormatRecord(t *testing.T) {
	var buf bytes.Buffer
	(&JSON{}).FormatRecord(&buf, postDerived(t), nil, Options{Compact: true})
	if strings.TrimSpace(buf.String()) != `{"data":null,"entity":"Post"}` {
		t.Errorf("nil record = %s", buf.String())
	}

	buf.Reset()
	(&JSON{}).FormatRecord(&buf, postDerived(t), postRecords()[0], Options{})
	if !strings.Contains(buf.String(), "\n  \"data\"") {
		t.Errorf("indented output = %s", buf.String())
	}
}

func TestJSONLines(t *testing.T) {
	d := postDerived(t)

	var buf bytes.Buffer
	if err := (&JSONLines{}).FormatList(&buf, d, postRecords(), Options{}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if second["title"] != "Dawn" || second["author"] != nil || second["score"] != nil {
		t.Errorf("line 2 = %v", second)
	}

	buf.Reset()
	(&JSONLines{}).FormatRecord(&buf, d, nil, Options{})
	if strings.TrimSpace(buf.String()) != "null" {
		t.Errorf("nil record = %q", buf.String())
	}
}

func TestYAML(t *testing.T) {
	d := postDerived(t)

	var buf bytes.Buffer
	if err := (&YAML{}).FormatList(&buf, d, postRecords(), Options{Columns: []string{"title"}}); err != nil {
		t.Fatalf("FormatList error: %v", err)
	}

	var out struct {
		Entity string              `yaml:"entity"`
		Count  int                 `yaml:"count"`
		Data   []map[string]string `yaml:"data"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Entity != "Post" || out.Count != 2 || out.Data[1]["title"] != "Dawn" {
		t.Errorf("output = %+v", out)
	}

	buf.Reset()
	(&YAML{}).FormatRecord(&buf, d, nil, Options{})
	if !strings.Contains(buf.String(), "data: null") {
		t.Errorf("nil record = %q", buf.String())
	}
}
