package schema

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/condition"
)

// ErrIncomplete reports a definition whose steps and declared fields differ.
var ErrIncomplete = errors.New("schema: step fields do not match declared fields")

// Issue describes one problem found by Check.
type Issue struct {
	Field   string
	Step    string
	Message string
}

func (i Issue) String() string {
	var loc []string
	if i.Step != "" {
		loc = append(loc, "step "+i.Step)
	}
	if i.Field != "" {
		loc = append(loc, "field "+i.Field)
	}
	if len(loc) == 0 {
		return i.Message
	}
	return strings.Join(loc, ", ") + ": " + i.Message
}

// CheckError aggregates the issues of one definition.
type CheckError struct {
	Kind          string
	Discriminator Discriminator
	Issues        []Issue
}

func (e *CheckError) Error() string {
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, issue.String())
	}
	return fmt.Sprintf("schema: %s/%s: %s", e.Kind, e.Discriminator, strings.Join(lines, "; "))
}

// Is lets errors.Is(err, ErrIncomplete) match completeness failures.
func (e *CheckError) Is(target error) bool {
	if target != ErrIncomplete {
		return false
	}
	for _, issue := range e.Issues {
		if issue.Message == msgOrphan || issue.Message == msgMissing {
			return true
		}
	}
	return false
}

const (
	msgOrphan  = "declared but not placed in any step"
	msgMissing = "placed in a step but not declared"
)

// Check validates the structural invariants of def and returns a
// *CheckError listing every issue, or nil.
func Check(def WizardDefinition) error {
	var issues []Issue
	add := func(step, field, format string, args ...any) {
		issues = append(issues, Issue{Step: step, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if len(def.Steps) == 0 {
		add("", "", "definition has no steps")
	}

	placed := make(map[string]string)
	stepIDs := make(map[string]struct{})
	for i, step := range def.Steps {
		id := step.ID
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("#%d", i+1)
			add(id, "", "step id is empty")
		}
		if _, dup := stepIDs[id]; dup {
			add(id, "", "duplicate step id")
		}
		stepIDs[id] = struct{}{}
		if len(step.Fields) == 0 {
			add(id, "", "step declares no fields")
		}
		for _, name := range step.Fields {
			if prev, dup := placed[name]; dup {
				add(id, name, "already placed in step %s", prev)
				continue
			}
			placed[name] = id
			if _, ok := def.Rules[name]; !ok {
				add(id, name, msgMissing)
			}
		}
	}

	names := make([]string, 0, len(def.Rules))
	for name := range def.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule := def.Rules[name]
		if _, ok := placed[name]; !ok {
			add("", name, msgOrphan)
		}
		for _, msg := range checkRule(name, rule) {
			add(placed[name], name, "%s", msg)
		}
	}

	if def.DiscriminatorField != "" && !def.Declares(def.DiscriminatorField) {
		add("", def.DiscriminatorField, "discriminator field is not declared")
	}

	if len(issues) == 0 {
		return nil
	}
	return &CheckError{Kind: def.Kind, Discriminator: def.Discriminator, Issues: issues}
}

func checkRule(name string, rule FieldRule) []string {
	var out []string
	if rule.Name != "" && rule.Name != name {
		out = append(out, fmt.Sprintf("rule name %q does not match key", rule.Name))
	}
	if !rule.Type.Valid() {
		out = append(out, fmt.Sprintf("unknown type %q", rule.Type))
	}
	if rule.Type == FieldTypeEnum && len(rule.Options) == 0 {
		out = append(out, "enum field has no options")
	}
	if rule.Terms && rule.Type != FieldTypeBoolean {
		out = append(out, "terms field must be boolean")
	}
	if rule.Type == FieldTypeFileSet && rule.Files == nil {
		out = append(out, "file-set field has no file constraints")
	}
	if rule.Files != nil {
		if rule.Files.MaxCount > 0 && rule.Files.MinCount > rule.Files.MaxCount {
			out = append(out, "min_count exceeds max_count")
		}
	}
	if rule.Min != nil && rule.Max != nil && *rule.Min > *rule.Max {
		out = append(out, "min exceeds max")
	}
	if rule.MinLength != nil && rule.MaxLength != nil && *rule.MinLength > *rule.MaxLength {
		out = append(out, "min_length exceeds max_length")
	}
	if rule.Pattern != "" {
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			out = append(out, fmt.Sprintf("pattern: %v", err))
		}
	}

	if rule.Format != "" {
		if rule.Type != FieldTypeText {
			out = append(out, "format applies to text fields only")
		} else if !KnownFormat(rule.Format) {
			out = append(out, fmt.Sprintf("unknown format %q", rule.Format))
		}
	}

	exprs := []string{rule.When, rule.RequiredWhen}
	for _, bound := range rule.Bounds {
		if strings.TrimSpace(bound.When) == "" {
			out = append(out, "bound without condition")
		}
		exprs = append(exprs, bound.When)
	}
	for _, raw := range exprs {
		expr, err := condition.Compile(raw)
		if err != nil {
			out = append(out, err.Error())
			continue
		}
		for _, ident := range expr.Identifiers() {
			if ident == name {
				out = append(out, fmt.Sprintf("condition %q refers to the field itself", raw))
			}
		}
	}
	return out
}
