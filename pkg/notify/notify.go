// Package notify is the engine's outbound notification capability. The host
// application renders notifications (toasts, terminal lines); the engine only
// fires them and never waits for a result.
package notify

import (
	"context"
	"log/slog"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Notifier receives fire-and-forget user notifications.
type Notifier interface {
	Notify(kind Kind, message string)
}

// Func adapts a function into a Notifier.
type Func func(kind Kind, message string)

// Notify calls fn.
func (fn Func) Notify(kind Kind, message string) {
	if fn != nil {
		fn(kind, message)
	}
}

// Discard drops every notification.
var Discard Notifier = Func(func(Kind, string) {})

// Logger forwards notifications to a slog.Logger. Errors log at warn level.
type Logger struct {
	Logger *slog.Logger
}

// Notify writes one log record per notification.
func (l Logger) Notify(kind Kind, message string) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if kind == KindError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, message, slog.String("notification", string(kind)))
}

// Multi fans a notification out to every notifier.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(kind Kind, message string) {
		for _, n := range notifiers {
			if n != nil {
				n.Notify(kind, message)
			}
		}
	})
}

// OrDiscard returns n, or Discard when n is nil.
func OrDiscard(n Notifier) Notifier {
	if n == nil {
		return Discard
	}
	return n
}
