package submission

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/schema"
)

// ArrayEncoding selects how array values are keyed in the form body.
type ArrayEncoding string

const (
	// EncodingBracket repeats the key with a "[]" suffix: images[]=a&images[]=b.
	EncodingBracket ArrayEncoding = "bracket"
	// EncodingIndexed suffixes each key with its position: images[0]=a&images[1]=b.
	EncodingIndexed ArrayEncoding = "indexed"
)

// ParseArrayEncoding validates a configured encoding name.
func ParseArrayEncoding(raw string) (ArrayEncoding, error) {
	switch enc := ArrayEncoding(strings.ToLower(strings.TrimSpace(raw))); enc {
	case "", EncodingBracket:
		return EncodingBracket, nil
	case EncodingIndexed:
		return EncodingIndexed, nil
	default:
		return "", fmt.Errorf("submission: unknown array encoding %q", raw)
	}
}

func (e ArrayEncoding) key(name string, index int) string {
	if e == EncodingIndexed {
		return name + "[" + strconv.Itoa(index) + "]"
	}
	return name + "[]"
}

// FormValue is one text part of the body.
type FormValue struct {
	Field string
	Key   string
	Value string
}

// FilePart is one file part of the body.
type FilePart struct {
	Field       string
	Key         string
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Payload is the flattened multipart body.
type Payload struct {
	Values []FormValue
	Files  []FilePart
}

// Fields lists the distinct field names present in the payload, sorted.
func (p Payload) Fields() []string {
	seen := make(map[string]struct{})
	for _, v := range p.Values {
		seen[v.Field] = struct{}{}
	}
	for _, f := range p.Files {
		seen[f.Field] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any part carries field.
func (p Payload) Has(field string) bool {
	for _, v := range p.Values {
		if v.Field == field {
			return true
		}
	}
	for _, f := range p.Files {
		if f.Field == field {
			return true
		}
	}
	return false
}

// Form returns the text parts as url.Values, preserving repeated keys.
func (p Payload) Form() url.Values {
	out := make(url.Values, len(p.Values))
	for _, v := range p.Values {
		out.Add(v.Key, v.Value)
	}
	return out
}

// BuildPayload flattens values for def. Only declared fields are sent, in
// step order; fields whose condition does not hold and nil values are
// omitted. File-set fields allowing a single file use the plain key, others
// follow enc.
func BuildPayload(def schema.WizardDefinition, values map[string]any, eval condition.Evaluator, enc ArrayEncoding) (Payload, error) {
	if eval == nil {
		eval = condition.New()
	}
	if enc == "" {
		enc = EncodingBracket
	}
	var payload Payload
	for _, name := range def.Fields() {
		rule, _ := def.Rule(name)
		if rule.When != "" {
			ok, err := eval.Eval(rule.When, values)
			if err != nil {
				return Payload{}, fmt.Errorf("submission: condition for %s: %w", name, err)
			}
			if !ok {
				continue
			}
		}
		value, ok := values[name]
		if !ok || value == nil {
			continue
		}

		if rule.Type == schema.FieldTypeFileSet {
			files := attachment.List(value)
			single := rule.Files != nil && rule.Files.MaxCount == 1
			for i, a := range files {
				key := name
				if !single {
					key = enc.key(name, i)
				}
				payload.Files = append(payload.Files, FilePart{
					Field:       name,
					Key:         key,
					FileName:    a.Name,
					ContentType: a.MIME,
					Size:        a.Size,
					Open:        a.Open,
				})
			}
			continue
		}

		items, isList := listItems(value)
		if !isList {
			payload.Values = append(payload.Values, FormValue{Field: name, Key: name, Value: formatScalar(value)})
			continue
		}
		for i, item := range items {
			payload.Values = append(payload.Values, FormValue{Field: name, Key: enc.key(name, i), Value: formatScalar(item)})
		}
	}
	return payload, nil
}

func listItems(value any) ([]any, bool) {
	switch typed := value.(type) {
	case []any:
		return typed, true
	case []string:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = v
		}
		return out, true
	}
	return nil, false
}

func formatScalar(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
