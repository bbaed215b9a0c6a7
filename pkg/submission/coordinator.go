package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formwizard/internal/i18n"
	"github.com/goliatone/go-formwizard/pkg/credentials"
	"github.com/goliatone/go-formwizard/pkg/errmap"
	"github.com/goliatone/go-formwizard/pkg/failure"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Result is the outcome of a submission. Err is nil on success.
type Result struct {
	Status int
	ID     string
	Data   map[string]any
	Err    *failure.Error
	// Shared is set when the call joined a submission already in flight.
	Shared bool
}

// Succeeded reports a 2xx outcome.
func (r Result) Succeeded() bool { return r.Err == nil }

// Submission is the input of Coordinator.Submit.
type Submission struct {
	Definition schema.WizardDefinition
	Values     map[string]any
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier routes outcome notifications to n.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Coordinator) { c.notifier = notify.OrDiscard(n) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPrinter localizes notifications and mapped errors.
func WithPrinter(p *i18n.Printer) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.printer = p
		}
	}
}

// WithValidator sets the validator checked before any request is made.
func WithValidator(v *validation.Validator) Option {
	return func(c *Coordinator) {
		if v != nil {
			c.validator = v
		}
	}
}

// WithArrayEncoding selects the array key encoding.
func WithArrayEncoding(enc ArrayEncoding) Option {
	return func(c *Coordinator) {
		if enc != "" {
			c.encoding = enc
		}
	}
}

// WithBaseURL resolves relative endpoints against base.
func WithBaseURL(base string) Option {
	return func(c *Coordinator) { c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/") }
}

// Coordinator submits one wizard instance. At most one request is in flight
// at a time.
type Coordinator struct {
	creds     credentials.Provider
	transport Transport
	notifier  notify.Notifier
	logger    *slog.Logger
	printer   *i18n.Printer
	validator *validation.Validator
	encoding  ArrayEncoding
	baseURL   string

	group      singleflight.Group
	submitting atomic.Bool
}

// NewCoordinator creates a coordinator reading tokens from creds and sending
// through transport.
func NewCoordinator(creds credentials.Provider, transport Transport, opts ...Option) *Coordinator {
	c := &Coordinator{
		creds:     creds,
		transport: transport,
		notifier:  notify.Discard,
		logger:    slog.New(slog.DiscardHandler),
		printer:   i18n.New(""),
		encoding:  EncodingBracket,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.validator == nil {
		c.validator = validation.New(validation.WithPrinter(c.printer))
	}
	return c
}

// InFlight reports whether a submission is pending.
func (c *Coordinator) InFlight() bool { return c.submitting.Load() }

// Submit validates and sends sub. A call made while another submission is
// pending does not issue a request; it waits for and returns the pending
// result with Shared set. A caller whose ctx ends first stops waiting and
// gets a NetworkFailure wrapping ctx.Err(); the pending request is not
// affected unless it was started with that ctx.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) Result {
	ch := c.group.DoChan("submit", func() (any, error) {
		c.submitting.Store(true)
		defer c.submitting.Store(false)
		return c.submit(ctx, sub), nil
	})
	select {
	case res := <-ch:
		result := res.Val.(Result)
		result.Shared = res.Shared
		return result
	case <-ctx.Done():
		fail := failure.Wrap(failure.KindNetworkFailure, c.printer.Sprintf(i18n.MsgNetwork), ctx.Err())
		return Result{Err: fail}
	}
}

func (c *Coordinator) submit(ctx context.Context, sub Submission) Result {
	def := sub.Definition
	logger := c.logger.With("kind", def.Kind, "discriminator", string(def.Discriminator))

	if errs, step := c.validator.ValidateAll(def, sub.Values); !errs.Empty() {
		fail := failure.New(failure.KindClientValidation, c.printer.Sprintf(i18n.MsgValidationRejected))
		fail.Fields = errs
		fail.Step = step
		logger.Debug("submission blocked by validation", "step", step, "fields", errs.Fields())
		return c.fail(fail)
	}

	token, err := c.token(ctx)
	if err != nil {
		fail := failure.Wrap(failure.KindAuthRequired, c.printer.Sprintf(i18n.MsgAuthRequired), err)
		logger.Info("submission needs authentication")
		return c.fail(fail)
	}

	payload, err := BuildPayload(def, sub.Values, c.validator.Evaluator(), c.encoding)
	if err != nil {
		return c.fail(failure.Wrap(failure.KindClientValidation, c.printer.Sprintf(i18n.MsgValidationRejected), err))
	}

	mapper := errmap.New(def, errmap.WithPrinter(c.printer), errmap.WithLogger(c.logger))
	url := c.endpoint(def.Endpoint)
	started := time.Now()
	logger.Info("submission started", "url", url, "fields", len(payload.Values), "files", len(payload.Files))

	resp, err := c.transport.Send(ctx, Request{URL: url, Token: token, Payload: payload})
	if err != nil {
		var openErr *OpenError
		if errors.As(err, &openErr) {
			fail := failure.Wrap(failure.KindClientValidation, c.printer.Sprintf(i18n.MsgFileUnreadable, openErr.FileName), err)
			fail.Fields = map[string]string{openErr.Field: fail.Message}
			fail.Step = def.StepIndexOf(openErr.Field)
			return c.fail(fail)
		}
		logger.Warn("submission transport failed", "error", err, "elapsed", time.Since(started))
		return c.fail(mapper.MapTransportError(err))
	}

	logger.Info("submission finished", "status", resp.Status, "elapsed", time.Since(started))
	if fail := mapper.MapResponse(resp.Status, resp.Header, resp.Body); fail != nil {
		if fail.Kind == failure.KindAuthExpired {
			if err := c.creds.Purge(ctx); err != nil {
				logger.Warn("credential purge failed", "error", err)
			} else {
				logger.Warn("credential purged after rejection")
			}
		}
		return c.fail(fail)
	}

	result := Result{Status: resp.Status}
	result.Data, result.ID = decodeEcho(resp.Body)
	c.notifier.Notify(notify.KindSuccess, c.printer.Sprintf(i18n.MsgSubmitted))
	return result
}

func (c *Coordinator) token(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", credentials.ErrNoCredential
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(token) == "" {
		return "", credentials.ErrNoCredential
	}
	return token, nil
}

func (c *Coordinator) fail(err *failure.Error) Result {
	c.notifier.Notify(notify.KindError, err.Message)
	return Result{Status: err.Status, Err: err}
}

func (c *Coordinator) endpoint(path string) string {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || c.baseURL == "" {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// decodeEcho extracts the server-assigned identifier from a success body.
func decodeEcho(body []byte) (map[string]any, string) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ""
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, ""
	}
	if id := idString(data["id"]); id != "" {
		return data, id
	}
	if nested, ok := data["data"].(map[string]any); ok {
		if id := idString(nested["id"]); id != "" {
			return data, id
		}
	}
	return data, idString(data["uuid"])
}

func idString(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	}
	return ""
}
