package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile parses an entity declaration from a YAML file.
func ParseFile(path string) (Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entity{}, fmt.Errorf("read file %s: %w", path, err)
	}

	ent, err := Parse(data)
	if err != nil {
		return Entity{}, fmt.Errorf("%s: %w", path, err)
	}
	return ent, nil
}

// Parse parses an entity declaration from YAML bytes.
func Parse(data []byte) (Entity, error) {
	var ent Entity
	if err := yaml.Unmarshal(data, &ent); err != nil {
		return Entity{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(ent); err != nil {
		return Entity{}, err
	}

	return ent, nil
}

// ParseDir parses all entity declarations from a directory, including subdirectories.
func ParseDir(dir string) ([]Entity, error) {
	var entities []Entity

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			entities = append(entities, sub...)
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		ent, err := ParseFile(path)
		if err != nil {
			return nil, err
		}

		entities = append(entities, ent)
	}

	return entities, nil
}

// ParsePaths parses every file or directory in paths.
func ParsePaths(paths []string) ([]Entity, error) {
	var entities []Entity
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			sub, err := ParseDir(p)
			if err != nil {
				return nil, err
			}
			entities = append(entities, sub...)
			continue
		}
		ent, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		entities = append(entities, ent)
	}
	return entities, nil
}

// Validate checks an entity declaration and returns an *Error listing
// every problem found.
func Validate(ent Entity) error {
	var errs []string

	if ent.Name == "" {
		errs = append(errs, "entity name is required")
	} else if !isValidIdentifier(ent.Name) {
		errs = append(errs, fmt.Sprintf("entity name %q is not a valid identifier", ent.Name))
	}

	if ent.Table != "" && !isValidIdentifier(ent.Table) {
		errs = append(errs, fmt.Sprintf("table name %q is not a valid identifier", ent.Table))
	}

	seen := make(map[string]bool, len(ent.Fields))
	identities := 0
	for _, f := range ent.Fields {
		if !isValidIdentifier(f.Name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Sprintf("field %q declared twice", f.Name))
		}
		seen[f.Name] = true

		if f.Identity {
			identities++
		}

		if err := validateField(f); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if identities > 1 {
		errs = append(errs, fmt.Sprintf("%d identity fields declared, want at most one", identities))
	}

	if len(errs) > 0 {
		return &Error{Entity: ent.Name, Problems: errs}
	}

	return nil
}

// validateField validates a single field declaration.
func validateField(f Field) error {
	if !f.Type.Valid() {
		return fmt.Errorf("field %q: unknown type %q", f.Name, f.Type)
	}

	if f.Type == FieldTypeReference && f.To == "" {
		return fmt.Errorf("field %q: reference type requires 'to' target", f.Name)
	}
	if f.Type != FieldTypeReference && f.To != "" {
		return fmt.Errorf("field %q: 'to' is only valid on reference fields", f.Name)
	}

	if f.Identity {
		if f.Type != FieldTypeInteger {
			return fmt.Errorf("field %q: identity must be an integer, got %q", f.Name, f.Type)
		}
		if f.Nullable {
			return fmt.Errorf("field %q: identity cannot be nullable", f.Name)
		}
	}

	return nil
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
