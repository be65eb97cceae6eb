package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Entity is the declaration of a persisted entity type.
// Everything else (table, columns, identity) is derived from it.
type Entity struct {
	// Name is the entity type name (e.g., "simple", "NestedModel").
	// The table name is derived from it by convention.
	Name string `yaml:"entity"`

	// Table overrides the derived table name.
	Table string `yaml:"table,omitempty"`

	// Fields lists the persisted fields in declaration order.
	Fields Fields `yaml:"fields"`

	// Description for documentation.
	Description string `yaml:"description,omitempty"`
}

// Field returns the declared field with the given name.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// References returns the names of the entities this entity refers to,
// in declaration order and without duplicates.
func (e Entity) References() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, f := range e.Fields {
		if !f.IsReference() || f.To == "" || seen[f.To] {
			continue
		}
		seen[f.To] = true
		refs = append(refs, f.To)
	}
	return refs
}

// Fields is an ordered list of field declarations.
// In YAML it is written as a mapping whose key order is preserved.
type Fields []Field

// UnmarshalYAML decodes a mapping of field name to field declaration.
func (fs *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}

	out := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var f Field
		if err := value.Decode(&f); err != nil {
			return fmt.Errorf("field %q: %w", key.Value, err)
		}
		f.Name = key.Value
		out = append(out, f)
	}

	*fs = out
	return nil
}

// MarshalYAML encodes the fields back into an ordered mapping.
func (fs Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fs {
		var value yaml.Node
		if err := value.Encode(f); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&value,
		)
	}
	return node, nil
}
