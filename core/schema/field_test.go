package schema

import (
	"testing"
)

func TestFieldSQLType(t *testing.T) {
	tests := []struct {
		fieldType FieldType
		expected  string
	}{
		{FieldTypeInteger, "INTEGER"},
		{FieldTypeBoolean, "INTEGER"},
		{FieldTypeReference, "INTEGER"},
		{FieldTypeReal, "REAL"},
		{FieldTypeText, "TEXT"},
		{FieldTypeBlob, "BLOB"},
	}

	for _, tt := range tests {
		t.Run(string(tt.fieldType), func(t *testing.T) {
			f := Field{Type: tt.fieldType}
			if got := f.SQLType(); got != tt.expected {
				t.Errorf("Field.SQLType() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFieldTypeValid(t *testing.T) {
	for _, ft := range []FieldType{
		FieldTypeInteger, FieldTypeReal, FieldTypeText,
		FieldTypeBlob, FieldTypeBoolean, FieldTypeReference,
	} {
		if !ft.Valid() {
			t.Errorf("%q should be valid", ft)
		}
	}

	for _, ft := range []FieldType{"", "string", "float", "ref"} {
		if ft.Valid() {
			t.Errorf("%q should not be valid", ft)
		}
	}
}

func TestEntityReferences(t *testing.T) {
	ent := Entity{
		Name: "order",
		Fields: Fields{
			{Name: "customer", Type: FieldTypeReference, To: "customer"},
			{Name: "total", Type: FieldTypeReal},
			{Name: "billing", Type: FieldTypeReference, To: "address"},
			{Name: "shipping", Type: FieldTypeReference, To: "address"},
		},
	}

	refs := ent.References()
	if len(refs) != 2 {
		t.Fatalf("References() = %v, want 2 entries", refs)
	}
	if refs[0] != "customer" || refs[1] != "address" {
		t.Errorf("References() = %v, want [customer address]", refs)
	}

	if _, ok := ent.Field("total"); !ok {
		t.Error("Field(total) not found")
	}
	if _, ok := ent.Field("missing"); ok {
		t.Error("Field(missing) should not be found")
	}
}
