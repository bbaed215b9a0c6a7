package failure

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind enumerates the failure classes the engine distinguishes.
type Kind string

const (
	KindNone                 Kind = ""
	KindClientValidation     Kind = "client_validation"
	KindAuthRequired         Kind = "auth_required"
	KindAuthExpired          Kind = "auth_expired"
	KindForbidden            Kind = "forbidden"
	KindValidationRejected   Kind = "validation_rejected"
	KindRateLimited          Kind = "rate_limited"
	KindNetworkFailure       Kind = "network_failure"
	KindServerError          Kind = "server_error"
	KindUnknownDiscriminator Kind = "unknown_discriminator"
)

// NoStep marks a failure that cannot be attributed to a wizard step.
const NoStep = -1

var (
	ErrClientValidation     = &Error{Kind: KindClientValidation}
	ErrAuthRequired         = &Error{Kind: KindAuthRequired}
	ErrAuthExpired          = &Error{Kind: KindAuthExpired}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrValidationRejected   = &Error{Kind: KindValidationRejected}
	ErrRateLimited          = &Error{Kind: KindRateLimited}
	ErrNetworkFailure       = &Error{Kind: KindNetworkFailure}
	ErrServerError          = &Error{Kind: KindServerError}
	ErrUnknownDiscriminator = &Error{Kind: KindUnknownDiscriminator}
)

// Error is the engine-wide failure value. Fields maps field names to
// user-facing messages, Form holds messages that could not be attached to a
// field, and Step is the lowest step index containing a failing field (or
// NoStep).
type Error struct {
	Kind       Kind
	Message    string
	Fields     map[string]string
	Form       []string
	Step       int
	Status     int
	RetryAfter time.Duration
	Err        error
}

// New builds an Error of the given kind without step attribution.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Step: NoStep}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Step: NoStep, Err: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, " [fields: %s]", strings.Join(names, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports kind equality so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

// FieldAddressable reports whether at least one message is attached to a
// field.
func (e *Error) FieldAddressable() bool {
	return e != nil && len(e.Fields) > 0
}

// KindOf extracts the Kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) && target != nil {
		return target.Kind
	}
	return KindNone
}

// Retryable reports whether resubmitting unchanged data may succeed.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindNetworkFailure, KindServerError:
		return true
	default:
		return false
	}
}
