package convention

import "strings"

// Pluralize returns the plural form of a snake_case name.
// Only the last word is inflected: "order_item" becomes "order_items".
func Pluralize(name string) string {
	if name == "" {
		return ""
	}

	if i := strings.LastIndexByte(name, '_'); i >= 0 && i < len(name)-1 {
		return name[:i+1] + pluralizeWord(name[i+1:])
	}
	return pluralizeWord(name)
}

// pluralizeWord applies simple English pluralization rules to one word.
func pluralizeWord(word string) string {
	lower := strings.ToLower(word)

	if plural, ok := irregularPlurals[lower]; ok {
		return plural
	}

	// Words ending in 's', 'x', 'z', 'ch', 'sh' → add 'es'
	if strings.HasSuffix(lower, "s") ||
		strings.HasSuffix(lower, "x") ||
		strings.HasSuffix(lower, "z") ||
		strings.HasSuffix(lower, "ch") ||
		strings.HasSuffix(lower, "sh") {
		return word + "es"
	}

	// Words ending in consonant + 'y' → change 'y' to 'ies'
	if strings.HasSuffix(lower, "y") && len(word) > 1 {
		if !isVowel(rune(lower[len(lower)-2])) {
			return word[:len(word)-1] + "ies"
		}
	}

	if strings.HasSuffix(lower, "fe") {
		return word[:len(word)-2] + "ves"
	}
	if strings.HasSuffix(lower, "f") && !strings.HasSuffix(lower, "ff") {
		return word[:len(word)-1] + "ves"
	}

	return word + "s"
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

// Irregular plurals and words whose plural form is the singular.
var irregularPlurals = map[string]string{
	"person":   "people",
	"child":    "children",
	"man":      "men",
	"woman":    "women",
	"mouse":    "mice",
	"index":    "indices",
	"matrix":   "matrices",
	"vertex":   "vertices",
	"analysis": "analyses",
	"datum":    "data",
	"medium":   "media",
	"schema":   "schemas",
	"status":   "statuses",
	"data":     "data",
	"info":     "info",
	"metadata": "metadata",
	"series":   "series",
}
