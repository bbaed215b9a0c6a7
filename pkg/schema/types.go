package schema

import (
	"slices"
	"sort"

	"github.com/goliatone/go-formwizard/pkg/condition"
)

// FieldType is the semantic kind of a wizard field.
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeEnum    FieldType = "enum"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeFileSet FieldType = "file-set"
)

// Valid reports whether t is one of the declared field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeEnum, FieldTypeBoolean, FieldTypeFileSet:
		return true
	}
	return false
}

// Discriminator is the value that selects a definition inside a Registry.
type Discriminator string

// Bound overrides the static limits of a rule while When holds. The first
// matching bound wins.
type Bound struct {
	When      string   `json:"when" yaml:"when"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MinLength *int     `json:"minLength,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"max_length,omitempty"`
}

// Formats lists the named text formats a rule may declare.
var Formats = []string{"alpha", "alphanum", "date", "e164", "email", "numeric", "url", "uuid"}

// KnownFormat reports whether name is one of Formats.
func KnownFormat(name string) bool {
	return slices.Contains(Formats, name)
}

// FileConstraints limit a file-set field. Accept entries are MIME types
// ("application/pdf"), MIME wildcards ("image/*") or extensions (".dwg").
// Zero values mean unlimited.
type FileConstraints struct {
	Accept       []string `json:"accept,omitempty" yaml:"accept,omitempty"`
	MaxFileSize  ByteSize `json:"maxFileSize,omitempty" yaml:"max_file_size,omitempty"`
	MaxTotalSize ByteSize `json:"maxTotalSize,omitempty" yaml:"max_total_size,omitempty"`
	MinCount     int      `json:"minCount,omitempty" yaml:"min_count,omitempty"`
	MaxCount     int      `json:"maxCount,omitempty" yaml:"max_count,omitempty"`
}

// FieldRule describes one field. When gates applicability: a field whose
// When is false is neither validated nor submitted. RequiredWhen makes an
// applicable field required only while the expression holds. Terms marks an
// acceptance checkbox whose only valid value is true.
type FieldRule struct {
	Name         string           `json:"name" yaml:"name,omitempty"`
	Type         FieldType        `json:"type" yaml:"type"`
	Label        string           `json:"label,omitempty" yaml:"label,omitempty"`
	Required     bool             `json:"required,omitempty" yaml:"required,omitempty"`
	RequiredWhen string           `json:"requiredWhen,omitempty" yaml:"required_when,omitempty"`
	When         string           `json:"when,omitempty" yaml:"when,omitempty"`
	MinLength    *int             `json:"minLength,omitempty" yaml:"min_length,omitempty"`
	MaxLength    *int             `json:"maxLength,omitempty" yaml:"max_length,omitempty"`
	Min          *float64         `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64         `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern      string           `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Format       string           `json:"format,omitempty" yaml:"format,omitempty"`
	Options      []string         `json:"options,omitempty" yaml:"options,omitempty"`
	Default      any              `json:"default,omitempty" yaml:"default,omitempty"`
	Terms        bool             `json:"terms,omitempty" yaml:"terms,omitempty"`
	Files        *FileConstraints `json:"files,omitempty" yaml:"files,omitempty"`
	Bounds       []Bound          `json:"bounds,omitempty" yaml:"bounds,omitempty"`
}

// Conditional reports whether the field only applies under a condition.
func (r FieldRule) Conditional() bool { return r.When != "" }

// DisplayName returns the label, falling back to the field name.
func (r FieldRule) DisplayName() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// Limits are the effective numeric and length limits of a rule once the
// conditional bounds have been applied.
type Limits struct {
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
}

// EffectiveLimits applies the first bound whose condition holds for values.
func (r FieldRule) EffectiveLimits(eval condition.Evaluator, values map[string]any) (Limits, error) {
	limits := Limits{Min: r.Min, Max: r.Max, MinLength: r.MinLength, MaxLength: r.MaxLength}
	for _, bound := range r.Bounds {
		ok, err := eval.Eval(bound.When, values)
		if err != nil {
			return limits, err
		}
		if !ok {
			continue
		}
		if bound.Min != nil {
			limits.Min = bound.Min
		}
		if bound.Max != nil {
			limits.Max = bound.Max
		}
		if bound.MinLength != nil {
			limits.MinLength = bound.MinLength
		}
		if bound.MaxLength != nil {
			limits.MaxLength = bound.MaxLength
		}
		break
	}
	return limits, nil
}

// StepDefinition is one screen of the wizard.
type StepDefinition struct {
	ID     string   `json:"id" yaml:"id"`
	Title  string   `json:"title,omitempty" yaml:"title,omitempty"`
	Fields []string `json:"fields" yaml:"fields"`
}

// Has reports whether the step declares field.
func (s StepDefinition) Has(field string) bool {
	for _, name := range s.Fields {
		if name == field {
			return true
		}
	}
	return false
}

// WizardDefinition is the resolved shape of a wizard for one discriminator
// value. Treat values returned by a Registry as read-only; Clone before
// mutating.
type WizardDefinition struct {
	Kind               string               `json:"kind"`
	Title              string               `json:"title,omitempty"`
	Discriminator      Discriminator        `json:"discriminator"`
	DiscriminatorField string               `json:"discriminatorField"`
	Endpoint           string               `json:"endpoint"`
	Steps              []StepDefinition     `json:"steps"`
	Rules              map[string]FieldRule `json:"rules"`
}

// StepCount returns the number of steps.
func (d WizardDefinition) StepCount() int { return len(d.Steps) }

// Step returns the step at index (zero-based).
func (d WizardDefinition) Step(index int) (StepDefinition, bool) {
	if index < 0 || index >= len(d.Steps) {
		return StepDefinition{}, false
	}
	return d.Steps[index], true
}

// Rule returns the rule for field.
func (d WizardDefinition) Rule(field string) (FieldRule, bool) {
	rule, ok := d.Rules[field]
	return rule, ok
}

// Declares reports whether field belongs to the definition.
func (d WizardDefinition) Declares(field string) bool {
	_, ok := d.Rules[field]
	return ok
}

// StepIndexOf returns the index of the step holding field, or -1.
func (d WizardDefinition) StepIndexOf(field string) int {
	for i, step := range d.Steps {
		if step.Has(field) {
			return i
		}
	}
	return -1
}

// Fields lists declared field names in step order.
func (d WizardDefinition) Fields() []string {
	out := make([]string, 0, len(d.Rules))
	seen := make(map[string]struct{}, len(d.Rules))
	for _, step := range d.Steps {
		for _, name := range step.Fields {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	var orphans []string
	for name := range d.Rules {
		if _, ok := seen[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	return append(out, orphans...)
}

// FileFields lists the file-set fields in step order.
func (d WizardDefinition) FileFields() []string {
	var out []string
	for _, name := range d.Fields() {
		if d.Rules[name].Type == FieldTypeFileSet {
			out = append(out, name)
		}
	}
	return out
}

// Defaults returns the declared default values keyed by field name. The
// discriminator field defaults to the definition's own discriminator.
func (d WizardDefinition) Defaults() map[string]any {
	out := make(map[string]any)
	for name, rule := range d.Rules {
		if rule.Default != nil {
			out[name] = rule.Default
		}
	}
	if d.DiscriminatorField != "" && d.Declares(d.DiscriminatorField) {
		out[d.DiscriminatorField] = string(d.Discriminator)
	}
	return out
}

// Clone returns a deep copy safe to mutate.
func (d WizardDefinition) Clone() WizardDefinition {
	out := d
	out.Steps = make([]StepDefinition, len(d.Steps))
	for i, step := range d.Steps {
		step.Fields = append([]string(nil), step.Fields...)
		out.Steps[i] = step
	}
	out.Rules = make(map[string]FieldRule, len(d.Rules))
	for name, rule := range d.Rules {
		out.Rules[name] = cloneRule(rule)
	}
	return out
}

func cloneRule(rule FieldRule) FieldRule {
	rule.Options = append([]string(nil), rule.Options...)
	rule.Bounds = append([]Bound(nil), rule.Bounds...)
	if rule.Files != nil {
		files := *rule.Files
		files.Accept = append([]string(nil), files.Accept...)
		rule.Files = &files
	}
	return rule
}
