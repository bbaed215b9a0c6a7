package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-formwizard/internal/i18n"
	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/schema"
)

var formatTags = map[string]string{
	"alpha":    "alpha",
	"alphanum": "alphanum",
	"date":     "datetime=2006-01-02",
	"e164":     "e164",
	"email":    "email",
	"numeric":  "numeric",
	"url":      "url",
	"uuid":     "uuid",
}

// Option configures a Validator.
type Option func(*Validator)

// WithLocale selects the message locale.
func WithLocale(locale string) Option {
	return func(v *Validator) { v.printer = i18n.New(locale) }
}

// WithPrinter sets the message printer directly.
func WithPrinter(p *i18n.Printer) Option {
	return func(v *Validator) {
		if p != nil {
			v.printer = p
		}
	}
}

// WithEvaluator replaces the condition evaluator.
func WithEvaluator(eval condition.Evaluator) Option {
	return func(v *Validator) {
		if eval != nil {
			v.eval = eval
		}
	}
}

// WithLogger sets the logger used for condition failures.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Validator evaluates field rules. It is safe for concurrent use.
type Validator struct {
	eval    condition.Evaluator
	printer *i18n.Printer
	formats *validator.Validate
	logger  *slog.Logger

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		eval:     condition.New(),
		printer:  i18n.New(""),
		formats:  validator.New(),
		logger:   slog.New(slog.DiscardHandler),
		patterns: make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Evaluator exposes the condition evaluator in use.
func (v *Validator) Evaluator() condition.Evaluator { return v.eval }

// ValidateStep validates the fields placed in step index of def.
func (v *Validator) ValidateStep(def schema.WizardDefinition, index int, values map[string]any) Errors {
	errs := make(Errors)
	step, ok := def.Step(index)
	if !ok {
		return errs
	}
	for _, name := range step.Fields {
		if msg := v.ValidateField(def, name, values); msg != "" {
			errs[name] = msg
		}
	}
	return errs
}

// ValidateAll validates every step and reports the lowest failing step index,
// or -1 when the whole form is valid.
func (v *Validator) ValidateAll(def schema.WizardDefinition, values map[string]any) (Errors, int) {
	errs := make(Errors)
	first := -1
	for i := range def.Steps {
		stepErrs := v.ValidateStep(def, i, values)
		if stepErrs.Empty() {
			continue
		}
		if first < 0 {
			first = i
		}
		for name, msg := range stepErrs {
			errs[name] = msg
		}
	}
	return errs, first
}

// Applicable reports whether the field named name currently applies.
func (v *Validator) Applicable(def schema.WizardDefinition, name string, values map[string]any) bool {
	rule, ok := def.Rule(name)
	if !ok {
		return false
	}
	return v.holds(name, rule.When, values, true)
}

// Required reports whether an applicable field must carry a value.
func (v *Validator) Required(rule schema.FieldRule, values map[string]any) bool {
	if rule.Required || rule.Terms {
		return true
	}
	if rule.RequiredWhen == "" {
		return false
	}
	return v.holds(rule.Name, rule.RequiredWhen, values, false)
}

// ValidateField returns the message for the first rule name violates, or ""
// when the value is acceptable. Fields whose condition does not hold are
// always valid.
func (v *Validator) ValidateField(def schema.WizardDefinition, name string, values map[string]any) string {
	rule, ok := def.Rule(name)
	if !ok {
		return ""
	}
	if rule.Name == "" {
		rule.Name = name
	}
	if !v.holds(name, rule.When, values, true) {
		return ""
	}

	value := values[name]
	if rule.Terms {
		if accepted, _ := asBool(value); !accepted {
			return v.printer.Sprintf(i18n.MsgTerms)
		}
		return ""
	}
	if isEmpty(value) {
		if v.Required(rule, values) {
			return v.printer.Sprintf(i18n.MsgRequired)
		}
		return ""
	}

	limits, err := rule.EffectiveLimits(v.eval, values)
	if err != nil {
		v.logger.Warn("bound condition failed", "field", name, "error", err)
	}

	switch rule.Type {
	case schema.FieldTypeText:
		return v.checkText(rule, limits, value)
	case schema.FieldTypeNumber:
		return v.checkNumber(limits, value)
	case schema.FieldTypeEnum:
		return v.checkEnum(rule, value)
	case schema.FieldTypeBoolean:
		if _, ok := asBool(value); !ok {
			return v.printer.Sprintf(i18n.MsgBoolean)
		}
	case schema.FieldTypeFileSet:
		return v.checkFiles(rule, value)
	}
	return ""
}

func (v *Validator) holds(name, rule string, values map[string]any, fallback bool) bool {
	if strings.TrimSpace(rule) == "" {
		return true
	}
	ok, err := v.eval.Eval(rule, values)
	if err != nil {
		v.logger.Warn("condition failed", "field", name, "condition", rule, "error", err)
		return fallback
	}
	return ok
}

func (v *Validator) checkText(rule schema.FieldRule, limits schema.Limits, value any) string {
	text, ok := asString(value)
	if !ok {
		return v.printer.Sprintf(i18n.MsgText)
	}
	text = strings.TrimSpace(text)
	length := utf8.RuneCountInString(text)
	if limits.MinLength != nil && length < *limits.MinLength {
		return v.printer.Sprintf(i18n.MsgMinLength, *limits.MinLength)
	}
	if limits.MaxLength != nil && length > *limits.MaxLength {
		return v.printer.Sprintf(i18n.MsgMaxLength, *limits.MaxLength)
	}
	if rule.Pattern != "" {
		re, err := v.pattern(rule.Pattern)
		if err != nil {
			v.logger.Warn("invalid pattern", "field", rule.Name, "error", err)
		} else if !re.MatchString(text) {
			return v.printer.Sprintf(i18n.MsgPattern)
		}
	}
	if rule.Format != "" {
		tag, known := formatTags[rule.Format]
		if known && v.formats.Var(text, tag) != nil {
			return v.printer.Sprintf(i18n.MsgFormat, rule.Format)
		}
	}
	return ""
}

func (v *Validator) checkNumber(limits schema.Limits, value any) string {
	n, ok := asNumber(value)
	if !ok {
		return v.printer.Sprintf(i18n.MsgNumber)
	}
	if limits.Min != nil && n < *limits.Min {
		return v.printer.Sprintf(i18n.MsgMin, formatNumber(*limits.Min))
	}
	if limits.Max != nil && n > *limits.Max {
		return v.printer.Sprintf(i18n.MsgMax, formatNumber(*limits.Max))
	}
	return ""
}

func (v *Validator) checkEnum(rule schema.FieldRule, value any) string {
	var picked []string
	switch typed := value.(type) {
	case []string:
		picked = typed
	case []any:
		for _, item := range typed {
			picked = append(picked, fmt.Sprint(item))
		}
	default:
		picked = []string{fmt.Sprint(value)}
	}
	for _, choice := range picked {
		if !slices.Contains(rule.Options, choice) {
			return v.printer.Sprintf(i18n.MsgOption)
		}
	}
	return ""
}

func (v *Validator) checkFiles(rule schema.FieldRule, value any) string {
	files := attachment.List(value)
	if rule.Files == nil {
		return ""
	}
	if rule.Files.MinCount > 0 && len(files) < rule.Files.MinCount {
		return v.printer.Sprintf(i18n.MsgMinFiles, rule.Files.MinCount)
	}
	if rule.Files.MaxCount > 0 && len(files) > rule.Files.MaxCount {
		return v.printer.Sprintf(i18n.MsgMaxFiles, rule.Files.MaxCount)
	}
	if rule.Files.MaxTotalSize > 0 && attachment.TotalSize(files) > int64(rule.Files.MaxTotalSize) {
		return v.printer.Sprintf(i18n.MsgMaxTotal, rule.Files.MaxTotalSize.String())
	}
	return ""
}

func (v *Validator) pattern(expr string) (*regexp.Regexp, error) {
	v.mu.RLock()
	re, ok := v.patterns[expr]
	v.mu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	v.patterns[expr] = re
	v.mu.Unlock()
	return re, nil
}

func isEmpty(value any) bool {
	switch typed := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(typed) == ""
	case []*attachment.Attachment:
		return len(typed) == 0
	case []any:
		return len(typed) == 0
	case []string:
		return len(typed) == 0
	}
	return false
}

func asString(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case fmt.Stringer:
		return typed.String(), true
	}
	return "", false
}

func asBool(value any) (bool, bool) {
	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(typed))
		return b, err == nil
	}
	return false, false
}

// asNumber reports only finite values as numbers.
func asNumber(value any) (float64, bool) {
	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case json.Number:
		n, err := typed.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return n, err == nil
	}
	return 0, false
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
