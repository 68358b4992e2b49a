package graph

import (
	"regexp"
	"strings"
)

// contextTokens is the fixed set of `{{ nclav_* }}` references every
// template expression may use regardless of declared imports.
var contextTokens = map[string]bool{
	"nclav_enclave_id":   true,
	"nclav_partition_id": true,
	"nclav_project_id":   true,
	"nclav_region":       true,
}

// refPattern matches one `{{ ... }}` template reference, capturing its
// inner dotted path. Deliberately minimal: no loops, conditionals, or
// arithmetic — any expression not of this shape is not a template
// reference at all and is left untouched (callers treat stray `{{` as a
// hard error separately).
var refPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.]+)\s*\}\}`)

// TemplateRef is one parsed `{{ ... }}` reference found in a template
// string.
type TemplateRef struct {
	Raw   string // the full "{{ ... }}" text
	Path  string // the trimmed inner path, e.g. "database.hostname"
	Alias string // path segment before the first dot; empty for context tokens
	Key   string // path segment after the first dot; empty for context tokens
}

// ExtractRefs scans s for every `{{ ... }}` reference.
func ExtractRefs(s string) []TemplateRef {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	refs := make([]TemplateRef, 0, len(matches))
	for _, m := range matches {
		path := m[1]
		ref := TemplateRef{Raw: m[0], Path: path}
		if dot := strings.IndexByte(path, '.'); dot >= 0 {
			ref.Alias = path[:dot]
			ref.Key = path[dot+1:]
		}
		refs = append(refs, ref)
	}
	return refs
}

// IsContextToken reports whether path (the full dotted reference) is one
// of the fixed nclav_* context tokens.
func IsContextToken(path string) bool {
	return contextTokens[path]
}

// Resolve substitutes every `{{ ... }}` reference in s using lookup,
// which is handed the ref's full path and must return the substitution
// value plus whether it resolved. Resolve returns the unresolved
// reference names on failure so the caller can build one error listing
// everything unresolved, rather than failing on the first.
func Resolve(s string, lookup func(path string) (string, bool)) (string, []string) {
	var unresolved []string
	out := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := refPattern.FindStringSubmatch(match)
		path := sub[1]
		val, ok := lookup(path)
		if !ok {
			unresolved = append(unresolved, path)
			return match
		}
		return val
	})
	return out, unresolved
}
