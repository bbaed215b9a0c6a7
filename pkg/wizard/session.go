package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-formwizard/internal/i18n"
	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/failure"
	"github.com/goliatone/go-formwizard/pkg/fieldstore"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Option configures a Session.
type Option func(*Session)

// WithNotifier routes user notifications to n.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Session) { s.notifier = notify.OrDiscard(n) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocale localizes validation and notification messages.
func WithLocale(locale string) Option {
	return func(s *Session) { s.printer = i18n.New(locale) }
}

// WithDiscriminator selects the initial schema. Unknown values fall back to
// the registry default.
func WithDiscriminator(value schema.Discriminator) Option {
	return func(s *Session) { s.initial = value }
}

// WithAttachmentOptions forwards options to the attachment manager.
func WithAttachmentOptions(opts ...attachment.Option) Option {
	return func(s *Session) { s.fileOpts = append(s.fileOpts, opts...) }
}

// flight is a submission in progress that later callers wait on.
type flight struct {
	done   chan struct{}
	result submission.Result
}

// Session is one wizard instance. It is safe for concurrent use.
type Session struct {
	registry    *schema.Registry
	coordinator *submission.Coordinator
	validator   *validation.Validator
	store       *fieldstore.Store
	files       *attachment.Manager
	notifier    notify.Notifier
	printer     *i18n.Printer
	logger      *slog.Logger
	initial     schema.Discriminator
	fileOpts    []attachment.Option

	mu       sync.Mutex
	def      schema.WizardDefinition
	state    State
	step     int
	live     validation.Errors
	reported validation.Errors
	form     []string
	revealed bool
	last     *submission.Result
	inflight *flight
	closed   bool
}

// New starts a session over registry that submits through coordinator.
func New(registry *schema.Registry, coordinator *submission.Coordinator, opts ...Option) (*Session, error) {
	if registry == nil {
		return nil, fmt.Errorf("wizard: registry is required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("wizard: coordinator is required")
	}
	s := &Session{
		registry:    registry,
		coordinator: coordinator,
		notifier:    notify.Discard,
		printer:     i18n.New(""),
		logger:      slog.New(slog.DiscardHandler),
		initial:     registry.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	def, fellBack, err := registry.ResolveOrDefault(s.initial)
	if err != nil {
		return nil, err
	}
	if fellBack {
		s.notifier.Notify(notify.KindInfo, s.printer.Sprintf(i18n.MsgUnknownSelection, string(s.initial)))
	}
	s.def = def
	s.validator = validation.New(validation.WithPrinter(s.printer), validation.WithLogger(s.logger))
	s.store = fieldstore.New(def.Fields(), def.Defaults())

	fileOpts := append([]attachment.Option{
		attachment.WithNotifier(s.notifier),
		attachment.WithPrinter(s.printer),
		attachment.WithLogger(s.logger),
	}, s.fileOpts...)
	s.files = attachment.New(s.store, definitionRef(def), fileOpts...)
	s.live = make(validation.Errors)
	s.reported = make(validation.Errors)
	return s, nil
}

func definitionRef(def schema.WizardDefinition) *schema.WizardDefinition {
	return &def
}

// Definition returns a copy of the active schema.
func (s *Session) Definition() schema.WizardDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.Clone()
}

// State returns the navigation state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Step returns the active step index.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// CurrentStep returns the definition of the active step.
func (s *Session) CurrentStep() schema.StepDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, _ := s.def.Step(s.step)
	return step
}

// Values returns a snapshot of the field values.
func (s *Session) Values() fieldstore.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// Applicable reports whether a field currently applies given the values.
func (s *Session) Applicable(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validator.Applicable(s.def, name, s.store.Snapshot().Map())
}

// Errors returns the field errors to display. Live validation of the active
// step wins over messages reported by the last submission.
func (s *Session) Errors() validation.Errors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reported.Merge(s.live)
}

// FormErrors returns the messages not attached to a field.
func (s *Session) FormErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.form...)
}

// LastResult returns the outcome of the last completed submission.
func (s *Session) LastResult() (submission.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return submission.Result{}, false
	}
	return *s.last, true
}

// Files returns the attachments of a file-set field.
func (s *Session) Files(field string) []*attachment.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files.Files(field)
}

// Preview returns the ready preview of an attachment.
func (s *Session) Preview(id uuid.UUID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files.PreviewFor(id)
}

// WaitPreviews blocks until pending previews are done.
func (s *Session) WaitPreviews(ctx context.Context) error { return s.files.Wait(ctx) }

// Set writes a field value and re-validates the active step. Writing the
// discriminator field switches the schema.
func (s *Session) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if name == s.def.DiscriminatorField && s.def.DiscriminatorField != "" {
		return s.switchLocked(schema.Discriminator(fmt.Sprint(value)))
	}
	if err := s.store.Set(name, value); err != nil {
		return err
	}
	delete(s.reported, name)
	s.resumeEditingLocked()
	s.refreshLocked()
	return nil
}

// SetDiscriminator switches to the schema registered for value, falling
// back to the registry default for unknown values.
func (s *Session) SetDiscriminator(value schema.Discriminator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	return s.switchLocked(value)
}

func (s *Session) switchLocked(value schema.Discriminator) error {
	def, fellBack, err := s.registry.ResolveOrDefault(value)
	if err != nil {
		return err
	}
	if fellBack {
		s.notifier.Notify(notify.KindInfo, s.printer.Sprintf(i18n.MsgUnknownSelection, string(value)))
	}
	field := def.DiscriminatorField

	if def.Discriminator == s.def.Discriminator {
		if err := s.store.Set(field, string(def.Discriminator)); err != nil {
			return err
		}
		s.resumeEditingLocked()
		s.refreshLocked()
		return nil
	}

	previous := s.def
	s.store.Redeclare(def.Fields(), def.Defaults())
	if err := s.store.Set(field, string(def.Discriminator)); err != nil {
		return err
	}
	orphans := s.store.Orphans()
	var staleFiles []string
	for _, name := range orphans {
		if rule, ok := previous.Rule(name); ok && rule.Type == schema.FieldTypeFileSet {
			staleFiles = append(staleFiles, name)
		}
	}
	s.files.Clear(staleFiles...)
	pruned := s.store.Prune(orphans...)
	s.files.SetDefinition(definitionRef(def))
	s.def = def

	limit := def.StepIndexOf(field)
	if limit < 0 {
		limit = 0
	}
	s.step = min(s.step, limit, max(def.StepCount()-1, 0))
	s.state = StateEditing
	s.revealed = false
	s.live = make(validation.Errors)
	s.reported = make(validation.Errors)
	s.form = nil
	s.last = nil
	s.refreshLocked()

	s.logger.Debug("schema re-resolved",
		"kind", def.Kind, "from", string(previous.Discriminator), "to", string(def.Discriminator),
		"pruned", pruned, "step", s.step)
	return nil
}

// Next advances to the following step, or to review from the last step.
// It fails with a client validation error when the active step is invalid.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigableLocked(); err != nil {
		return err
	}
	if s.state == StateReviewing {
		return nil
	}
	s.resumeEditingLocked()
	if err := s.gateLocked(s.step); err != nil {
		return err
	}
	s.clearLiveLocked()
	if s.step >= s.def.StepCount()-1 {
		s.state = StateReviewing
		return nil
	}
	s.step++
	s.refreshLocked()
	return nil
}

// Back returns to the previous step regardless of validity. From review it
// returns to the last step.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigableLocked(); err != nil {
		return err
	}
	switch s.state {
	case StateReviewing, StateAwaitingAuth:
		s.state = StateEditing
		s.refreshLocked()
		return nil
	}
	s.resumeEditingLocked()
	if s.step == 0 {
		return ErrFirstStep
	}
	s.step--
	s.clearLiveLocked()
	s.refreshLocked()
	return nil
}

// GoTo jumps to step index. Moving backward is always allowed; moving
// forward validates every step passed over and stops at the first invalid
// one.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigableLocked(); err != nil {
		return err
	}
	if index < 0 || index >= s.def.StepCount() {
		return fmt.Errorf("%w: %d", ErrStepRange, index)
	}
	s.resumeEditingLocked()
	s.state = StateEditing
	for s.step < index {
		if err := s.gateLocked(s.step); err != nil {
			return err
		}
		s.step++
	}
	s.step = index
	s.clearLiveLocked()
	s.refreshLocked()
	return nil
}

// Review validates the whole form and enters the review state. On failure
// the session moves to the lowest invalid step.
func (s *Session) Review() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.navigableLocked(); err != nil {
		return err
	}
	s.resumeEditingLocked()
	errs, step := s.validator.ValidateAll(s.def, s.store.Snapshot().Map())
	if !errs.Empty() {
		s.state = StateEditing
		s.step = step
		s.revealed = true
		s.refreshLocked()
		return s.clientErrorLocked(errs.Only(s.stepFieldsLocked(step)...), step)
	}
	s.state = StateReviewing
	return nil
}

// Submit sends the form. It is available from review, after a failure and
// after re-authentication. A call made while a submission is pending does
// not send again; it waits for and returns the pending result.
func (s *Session) Submit(ctx context.Context) (submission.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return submission.Result{}, ErrClosed
	}
	if f := s.inflight; f != nil {
		s.mu.Unlock()
		select {
		case <-f.done:
			result := f.result
			result.Shared = true
			return result, resultErr(result)
		case <-ctx.Done():
			return submission.Result{}, ctx.Err()
		}
	}
	switch s.state {
	case StateSucceeded:
		s.mu.Unlock()
		return submission.Result{}, ErrFinished
	case StateEditing:
		s.mu.Unlock()
		return submission.Result{}, ErrNotReviewing
	case StateAwaitingAuth:
		s.mu.Unlock()
		return submission.Result{}, ErrAwaitingAuth
	}

	f := &flight{done: make(chan struct{})}
	s.inflight = f
	s.state = StateSubmitting
	sub := submission.Submission{Definition: s.def, Values: s.store.Snapshot().Map()}
	s.mu.Unlock()

	result := s.coordinator.Submit(ctx, sub)

	s.mu.Lock()
	f.result = result
	s.inflight = nil
	if s.closed {
		s.logger.Debug("submission result discarded after close", "status", result.Status)
	} else {
		s.applyLocked(result)
	}
	s.mu.Unlock()
	close(f.done)
	return result, resultErr(result)
}

func resultErr(result submission.Result) error {
	if result.Err == nil {
		return nil
	}
	return result.Err
}

func (s *Session) applyLocked(result submission.Result) {
	s.last = &result
	s.live = make(validation.Errors)
	s.reported = make(validation.Errors)
	s.form = nil
	s.revealed = false

	fail := result.Err
	if fail == nil {
		s.state = StateSucceeded
		return
	}
	switch {
	case fail.Kind == failure.KindAuthRequired || fail.Kind == failure.KindAuthExpired:
		s.state = StateAwaitingAuth
	case fail.FieldAddressable():
		s.state = StateFailed
		for name, msg := range fail.Fields {
			s.reported[name] = msg
		}
		if fail.Step >= 0 {
			s.step = fail.Step
		}
		s.revealed = true
		s.form = append(s.form, fail.Form...)
	default:
		s.state = StateFailed
		s.step = max(s.def.StepCount()-1, 0)
		s.form = append(s.form, fail.Form...)
		if len(s.form) == 0 && fail.Message != "" {
			s.form = []string{fail.Message}
		}
	}
}

// Resume leaves AwaitingAuth once the host's authentication flow reports
// success. The submission is not retried; call Submit again.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.state != StateAwaitingAuth {
		return ErrNotAwaitingAuth
	}
	s.state = StateReviewing
	return nil
}

// Reset clears all values and attachments back to the schema defaults and
// returns to the first step.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.inflight != nil {
		return ErrBusy
	}
	s.files.Clear(s.def.FileFields()...)
	s.store.Reset()
	s.state = StateEditing
	s.step = 0
	s.live = make(validation.Errors)
	s.reported = make(validation.Errors)
	s.form = nil
	s.revealed = false
	s.last = nil
	return nil
}

// Close ends the session. Pending previews are cancelled and a submission
// result arriving later is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.files.Close()
}

// AddFiles attaches sources to a file-set field.
func (s *Session) AddFiles(field string, sources ...attachment.Source) (attachment.AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return attachment.AddResult{}, err
	}
	result, err := s.files.AddFiles(field, sources...)
	if err != nil {
		return result, err
	}
	if len(result.Accepted) > 0 {
		delete(s.reported, field)
	}
	s.resumeEditingLocked()
	s.refreshLocked()
	return result, nil
}

// RemoveFile detaches the file at index from field.
func (s *Session) RemoveFile(field string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if err := s.files.RemoveFile(field, index); err != nil {
		return err
	}
	s.resumeEditingLocked()
	s.refreshLocked()
	return nil
}

func (s *Session) editableLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case s.inflight != nil || s.state == StateSubmitting:
		return ErrBusy
	case s.state == StateSucceeded:
		return ErrFinished
	}
	return nil
}

func (s *Session) navigableLocked() error { return s.editableLocked() }

// resumeEditingLocked leaves the failed state once the user acts on it.
func (s *Session) resumeEditingLocked() {
	if s.state == StateFailed {
		s.state = StateEditing
	}
}

// gateLocked validates step and, on failure, reveals its errors.
func (s *Session) gateLocked(step int) error {
	errs := s.validator.ValidateStep(s.def, step, s.store.Snapshot().Map())
	if errs.Empty() {
		return nil
	}
	s.step = step
	s.revealed = true
	s.live = errs
	s.logger.Debug("step rejected", "step", step, "fields", errs.Fields())
	return s.clientErrorLocked(errs, step)
}

func (s *Session) clientErrorLocked(errs validation.Errors, step int) error {
	fail := failure.New(failure.KindClientValidation, s.printer.Sprintf(i18n.MsgValidationRejected))
	fail.Fields = errs
	fail.Step = step
	return fail
}

func (s *Session) clearLiveLocked() {
	s.revealed = false
	s.live = make(validation.Errors)
}

// refreshLocked re-validates the active step. Until a Next attempt reveals
// the step, only touched fields show their errors.
func (s *Session) refreshLocked() {
	errs := s.validator.ValidateStep(s.def, s.step, s.store.Snapshot().Map())
	live := make(validation.Errors, len(errs))
	for name, msg := range errs {
		if s.revealed || s.store.Touched(name) {
			live[name] = msg
		}
	}
	s.live = live
}

func (s *Session) stepFieldsLocked(index int) []string {
	step, _ := s.def.Step(index)
	return step.Fields
}
