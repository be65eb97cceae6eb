package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	src := `
entity: nested
table: nested_models

fields:
  rel:    { type: reference, to: rel }
  label:  { type: text, nullable: true }
  score:  { type: real }
  active: { type: boolean, index: true }
`

	ent, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ent.Name != "nested" {
		t.Errorf("Name = %q, want %q", ent.Name, "nested")
	}
	if ent.Table != "nested_models" {
		t.Errorf("Table = %q, want %q", ent.Table, "nested_models")
	}

	want := []string{"rel", "label", "score", "active"}
	if len(ent.Fields) != len(want) {
		t.Fatalf("Fields has %d entries, want %d", len(ent.Fields), len(want))
	}
	for i, name := range want {
		if ent.Fields[i].Name != name {
			t.Errorf("Fields[%d].Name = %q, want %q (declaration order)", i, ent.Fields[i].Name, name)
		}
	}

	if ent.Fields[0].To != "rel" {
		t.Errorf("rel.To = %q, want rel", ent.Fields[0].To)
	}
	if !ent.Fields[1].Nullable {
		t.Error("label should be nullable")
	}
	if !ent.Fields[3].Index {
		t.Error("active should be indexed")
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	ent := Entity{
		Name: "simple",
		Fields: Fields{
			{Name: "zeta", Type: FieldTypeText},
			{Name: "alpha", Type: FieldTypeInteger, Nullable: true},
		},
	}

	data, err := yaml.Marshal(ent)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v\n%s", err, data)
	}
	if got.Fields[0].Name != "zeta" || got.Fields[1].Name != "alpha" {
		t.Errorf("field order not preserved: %+v", got.Fields)
	}
	if !got.Fields[1].Nullable {
		t.Error("alpha should stay nullable")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		anyErr  bool // yaml may reject the document before validation runs
	}{
		{
			name:    "missing entity name",
			yaml:    "fields:\n  a: { type: text }",
			wantErr: "entity name is required",
		},
		{
			name:    "invalid entity name",
			yaml:    "entity: 1bad\nfields:\n  a: { type: text }",
			wantErr: "not a valid identifier",
		},
		{
			name:    "unknown type",
			yaml:    "entity: x\nfields:\n  a: { type: decimal }",
			wantErr: `unknown type "decimal"`,
		},
		{
			name:    "reference without target",
			yaml:    "entity: x\nfields:\n  a: { type: reference }",
			wantErr: "requires 'to' target",
		},
		{
			name:    "target on scalar",
			yaml:    "entity: x\nfields:\n  a: { type: integer, to: y }",
			wantErr: "only valid on reference fields",
		},
		{
			name:    "two identities",
			yaml:    "entity: x\nfields:\n  a: { type: integer, identity: true }\n  b: { type: integer, identity: true }",
			wantErr: "2 identity fields",
		},
		{
			name:    "text identity",
			yaml:    "entity: x\nfields:\n  a: { type: text, identity: true }",
			wantErr: "identity must be an integer",
		},
		{
			name:    "nullable identity",
			yaml:    "entity: x\nfields:\n  a: { type: integer, identity: true, nullable: true }",
			wantErr: "identity cannot be nullable",
		},
		{
			name:    "duplicate field",
			yaml:    "entity: x\nfields:\n  a: { type: text }\n  a: { type: real }",
			wantErr: "declared twice",
			anyErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.anyErr {
				return
			}
			if !errors.Is(err, ErrSchema) {
				t.Errorf("error %v should match ErrSchema", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateNoFields(t *testing.T) {
	// An entity with only the implicit identity is allowed.
	if err := Validate(Entity{Name: "empty"}); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Entity: "x", Problems: []string{"one", "two"}}
	msg := err.Error()
	if !strings.Contains(msg, "- one") || !strings.Contains(msg, "- two") {
		t.Errorf("Error() = %q, want both problems listed", msg)
	}

	wrapped := &Error{Entity: "ghost", Err: ErrUnknownEntity}
	if !errors.Is(wrapped, ErrUnknownEntity) {
		t.Error("should unwrap to ErrUnknownEntity")
	}
	if !errors.Is(wrapped, ErrSchema) {
		t.Error("should match ErrSchema")
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		filepath.Join(dir, "simple.yaml"): "entity: simple\nfields:\n  name: { type: text }\n",
		filepath.Join(sub, "rel.yml"):     "entity: rel\nfields:\n  simple: { type: reference, to: simple }\n",
		filepath.Join(dir, "README.md"):   "not yaml",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entities, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("ParseDir returned %d entities, want 2", len(entities))
	}

	all, err := ParsePaths([]string{filepath.Join(dir, "simple.yaml"), sub})
	if err != nil {
		t.Fatalf("ParsePaths failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ParsePaths returned %d entities, want 2", len(all))
	}
}
