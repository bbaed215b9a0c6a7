package errmap

import (
	"errors"
	"html"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formwizard/internal/i18n"
	"github.com/goliatone/go-formwizard/pkg/failure"
	"github.com/goliatone/go-formwizard/pkg/schema"
)

// Option configures a Mapper.
type Option func(*Mapper)

// WithPrinter localizes the generic messages.
func WithPrinter(p *i18n.Printer) Option {
	return func(m *Mapper) {
		if p != nil {
			m.printer = p
		}
	}
}

// WithFreeText toggles matching field names inside free-text 422 messages.
// Enabled by default.
func WithFreeText(enabled bool) Option {
	return func(m *Mapper) { m.freeText = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Mapper maps responses for one resolved wizard definition.
type Mapper struct {
	def      schema.WizardDefinition
	index    fieldIndex
	policy   *bluemonday.Policy
	printer  *i18n.Printer
	freeText bool
	logger   *slog.Logger
}

// New creates a Mapper for def.
func New(def schema.WizardDefinition, opts ...Option) *Mapper {
	m := &Mapper{
		def:      def,
		index:    newFieldIndex(def),
		policy:   bluemonday.StrictPolicy(),
		printer:  i18n.New(""),
		freeText: true,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// MapResponse classifies a completed HTTP exchange. It returns nil for 2xx.
func (m *Mapper) MapResponse(status int, header http.Header, body []byte) *failure.Error {
	if status >= 200 && status < 300 {
		return nil
	}
	parsed, _ := ParseBody(body)
	message := m.sanitize(parsed.Message)

	var out *failure.Error
	switch {
	case status == http.StatusUnauthorized:
		out = failure.New(failure.KindAuthExpired, m.printer.Sprintf(i18n.MsgAuthExpired))
	case status == http.StatusForbidden:
		out = failure.New(failure.KindForbidden, m.printer.Sprintf(i18n.MsgForbidden))
		if message != "" {
			out.Form = []string{message}
		}
	case status == http.StatusUnprocessableEntity:
		out = m.mapValidation(parsed, message)
	case status == http.StatusTooManyRequests:
		out = failure.New(failure.KindRateLimited, m.printer.Sprintf(i18n.MsgRateLimited))
		out.RetryAfter = parseRetryAfter(header.Get("Retry-After"), time.Now())
	default:
		out = failure.New(failure.KindServerError, firstNonEmpty(message, m.printer.Sprintf(i18n.MsgServerError)))
	}
	out.Status = status
	m.logger.Debug("response mapped", "status", status, "kind", out.Kind,
		"fields", len(out.Fields), "form", len(out.Form), "step", out.Step)
	return out
}

// MapTransportError classifies a request that produced no response.
func (m *Mapper) MapTransportError(err error) *failure.Error {
	if err == nil {
		return nil
	}
	var existing *failure.Error
	if errors.As(err, &existing) {
		return existing
	}
	return failure.Wrap(failure.KindNetworkFailure, m.printer.Sprintf(i18n.MsgNetwork), err)
}

func (m *Mapper) mapValidation(body Body, message string) *failure.Error {
	out := failure.New(failure.KindValidationRejected, firstNonEmpty(message, m.printer.Sprintf(i18n.MsgValidationRejected)))
	fields := make(map[string][]string)
	var form, unmatched []string

	keys := make([]string, 0, len(body.Errors))
	for key := range body.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		msgs := m.sanitizeAll(body.Errors[key])
		if len(msgs) == 0 {
			continue
		}
		name, formLevel := m.index.resolve(key)
		switch {
		case formLevel:
			form = append(form, msgs...)
		case name == "":
			m.logger.Debug("unmatched error key", "key", key)
			unmatched = append(unmatched, msgs...)
		default:
			fields[name] = append(fields[name], msgs...)
		}
	}

	if len(body.Errors) == 0 && message != "" {
		if name, ok := m.matchFreeText(message); ok {
			fields[name] = []string{message}
		} else {
			form = append(form, message)
		}
	}
	if len(unmatched) > 0 {
		form = append(form, m.printer.Sprintf(i18n.MsgUnmatchedFields, strings.Join(dedupe(unmatched), "; ")))
	}
	if len(fields) == 0 && len(form) == 0 {
		form = []string{out.Message}
	}

	if len(fields) > 0 {
		out.Fields = make(map[string]string, len(fields))
		for name, msgs := range fields {
			out.Fields[name] = strings.Join(dedupe(msgs), "; ")
		}
		out.Step = m.lowestStep(out.Fields)
	}
	out.Form = dedupe(form)
	return out
}

// matchFreeText assigns a message to a field when exactly one field name or
// label occurs in it.
func (m *Mapper) matchFreeText(message string) (string, bool) {
	if !m.freeText {
		return "", false
	}
	lower := strings.ToLower(message)
	var matched []string
	for _, name := range m.def.Fields() {
		rule, _ := m.def.Rule(name)
		candidates := []string{name, strings.ReplaceAll(name, "_", " ")}
		if rule.Label != "" {
			candidates = append(candidates, rule.Label)
		}
		for _, candidate := range candidates {
			if candidate != "" && strings.Contains(lower, strings.ToLower(candidate)) {
				matched = append(matched, name)
				break
			}
		}
	}
	if len(matched) != 1 {
		return "", false
	}
	return matched[0], true
}

func (m *Mapper) lowestStep(fields map[string]string) int {
	lowest := failure.NoStep
	for name := range fields {
		idx := m.def.StepIndexOf(name)
		if idx >= 0 && (lowest == failure.NoStep || idx < lowest) {
			lowest = idx
		}
	}
	return lowest
}

func (m *Mapper) sanitize(text string) string {
	clean := html.UnescapeString(m.policy.Sanitize(text))
	return strings.Join(strings.Fields(clean), " ")
}

func (m *Mapper) sanitizeAll(msgs []string) []string {
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if clean := m.sanitize(msg); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

func dedupe(msgs []string) []string {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]string, 0, len(msgs))
	seen := make(map[string]struct{}, len(msgs))
	for _, msg := range msgs {
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	return out
}

// parseRetryAfter accepts delta seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
