package errmap

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-formwizard/pkg/schema"
)

// envelopeKeys are containers servers wrap request fields in.
var envelopeKeys = map[string]struct{}{
	"body":       {},
	"request":    {},
	"payload":    {},
	"data":       {},
	"attributes": {},
	"fields":     {},
	"form":       {},
}

// formKeys address the submission as a whole.
var formKeys = map[string]struct{}{
	"":                 {},
	"base":             {},
	"form":             {},
	"__all__":          {},
	"non_field_errors": {},
	"non-field-errors": {},
}

// fieldIndex resolves server error keys against one wizard definition.
// Names are compared without case or separators, so "fullName",
// "full-name" and "full_name" all address the same field.
type fieldIndex struct {
	names  map[string]string
	scopes map[string]struct{}
}

func newFieldIndex(def schema.WizardDefinition) fieldIndex {
	idx := fieldIndex{
		names:  make(map[string]string, len(def.Rules)),
		scopes: make(map[string]struct{}, len(def.Steps)+len(envelopeKeys)+1),
	}
	for name := range def.Rules {
		idx.names[foldKey(name)] = name
	}
	for key := range envelopeKeys {
		idx.scopes[key] = struct{}{}
	}
	for _, step := range def.Steps {
		if step.ID != "" {
			idx.scopes[foldKey(step.ID)] = struct{}{}
		}
	}
	if def.Kind != "" {
		idx.scopes[foldKey(def.Kind)] = struct{}{}
	}
	return idx
}

// resolve maps raw to a declared field. Leading envelope, step and kind
// segments are skipped and the next segment must name a field; anything
// after it ("photos[1].size") stays with that field. formLevel is true for
// keys addressing the whole form.
func (idx fieldIndex) resolve(raw string) (field string, formLevel bool) {
	segments := keySegments(raw)
	if len(segments) == 0 {
		return "", true
	}
	if len(segments) == 1 {
		if _, ok := formKeys[strings.ToLower(segments[0])]; ok {
			return "", true
		}
	}
	for _, segment := range segments {
		folded := foldKey(segment)
		if name, ok := idx.names[folded]; ok {
			return name, false
		}
		if _, ok := idx.scopes[folded]; !ok {
			return "", false
		}
	}
	return "", false
}

// keySegments splits dotted, slashed, bracketed and JSON pointer keys,
// dropping array indexes.
func keySegments(raw string) []string {
	parts := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		switch r {
		case '.', '/', '[', ']', '#', '$':
			return true
		}
		return false
	})
	out := parts[:0]
	for _, part := range parts {
		part = strings.NewReplacer("~1", "/", "~0", "~").Replace(strings.TrimSpace(part))
		if part == "" || isIndex(part) {
			continue
		}
		out = append(out, part)
	}
	return out
}

func isIndex(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

func foldKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
