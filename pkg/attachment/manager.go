package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/goliatone/go-formwizard/internal/i18n"
	"github.com/goliatone/go-formwizard/pkg/fieldstore"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/schema"
)

var (
	// ErrNotFileField is returned for fields that are not declared as file-set.
	ErrNotFileField = errors.New("attachment: field is not a file-set field")
	// ErrNotFound is returned when removing a file that is not attached.
	ErrNotFound = errors.New("attachment: file not found")
	// ErrClosed is returned once the manager has been closed.
	ErrClosed = errors.New("attachment: manager closed")
)

// Reason classifies a rejected file.
type Reason string

const (
	ReasonType       Reason = "type"
	ReasonSize       Reason = "size"
	ReasonCount      Reason = "count"
	ReasonTotalSize  Reason = "total_size"
	ReasonUnreadable Reason = "unreadable"
	ReasonEmpty      Reason = "empty"
)

// Rejection describes a file that was not attached.
type Rejection struct {
	Name    string
	Reason  Reason
	Message string
}

// AddResult reports the outcome of AddFiles.
type AddResult struct {
	Accepted []*Attachment
	Rejected []Rejection
}

// DefaultPreviewConcurrency bounds concurrent preview renders.
const DefaultPreviewConcurrency = 4

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier routes rejection notices to n.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = notify.OrDiscard(n) }
}

// WithPreviewer replaces the default ImagePreviewer. A nil previewer
// disables previews.
func WithPreviewer(p Previewer) Option {
	return func(m *Manager) { m.previewer = p }
}

// WithPreviewConcurrency bounds concurrent preview renders.
func WithPreviewConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPrinter localizes rejection messages.
func WithPrinter(p *i18n.Printer) Option {
	return func(m *Manager) {
		if p != nil {
			m.printer = p
		}
	}
}

// Manager owns the file lists of one wizard. File lists are stored in the
// wizard's fieldstore as []*Attachment values and are always replaced, never
// mutated in place.
type Manager struct {
	store       *fieldstore.Store
	notifier    notify.Notifier
	previewer   Previewer
	printer     *i18n.Printer
	logger      *slog.Logger
	concurrency int

	mu      sync.Mutex
	def     *schema.WizardDefinition
	sem     *semaphore.Weighted
	cancels map[uuid.UUID]context.CancelFunc
	ctx     context.Context
	stop    context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

// New creates a manager writing to store and enforcing the file constraints
// of def.
func New(store *fieldstore.Store, def *schema.WizardDefinition, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		notifier:    notify.Discard,
		previewer:   ImagePreviewer{},
		printer:     i18n.New(""),
		logger:      slog.New(slog.DiscardHandler),
		concurrency: DefaultPreviewConcurrency,
		def:         def,
		cancels:     make(map[uuid.UUID]context.CancelFunc),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.sem = semaphore.NewWeighted(int64(m.concurrency))
	m.ctx, m.stop = context.WithCancel(context.Background())
	return m
}

// SetDefinition swaps the schema whose constraints apply to new files.
func (m *Manager) SetDefinition(def *schema.WizardDefinition) {
	m.mu.Lock()
	m.def = def
	m.mu.Unlock()
}

// AddFiles validates sources against the constraints of field and attaches
// the ones that pass. Files are checked individually first (type, size,
// readability) and then cumulatively in the given order against the count and
// total size limits, so a selection can be partially accepted. Each rejected
// file produces one error notification.
func (m *Manager) AddFiles(field string, sources ...Source) (AddResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return AddResult{}, ErrClosed
	}
	rule, err := m.fileRule(field)
	if err != nil {
		return AddResult{}, err
	}
	limits := schema.FileConstraints{}
	if rule.Files != nil {
		limits = *rule.Files
	}

	var result AddResult
	reject := func(name string, reason Reason, msg string) {
		result.Rejected = append(result.Rejected, Rejection{Name: name, Reason: reason, Message: msg})
	}

	current, _ := m.store.Get(field)
	existing := List(current)
	count, total := len(existing), TotalSize(existing)

	for _, src := range sources {
		if src.Size <= 0 {
			reject(src.Name, ReasonEmpty, m.printer.Sprintf(i18n.MsgFileEmpty, src.Name))
			continue
		}
		a, err := inspect(field, src)
		if err != nil {
			m.logger.Debug("attachment unreadable", "field", field, "file", src.Name, "error", err)
			reject(src.Name, ReasonUnreadable, m.printer.Sprintf(i18n.MsgFileUnreadable, src.Name))
			continue
		}
		if !Accepts(limits.Accept, a.Name, a.mime) {
			reject(src.Name, ReasonType, m.printer.Sprintf(i18n.MsgFileType, src.Name))
			continue
		}
		if limits.MaxFileSize > 0 && a.Size > int64(limits.MaxFileSize) {
			reject(src.Name, ReasonSize, m.printer.Sprintf(i18n.MsgFileSize, src.Name, limits.MaxFileSize.String()))
			continue
		}
		if limits.MaxCount > 0 && count+1 > limits.MaxCount {
			reject(src.Name, ReasonCount, m.printer.Sprintf(i18n.MsgFileCount, src.Name, limits.MaxCount))
			continue
		}
		if limits.MaxTotalSize > 0 && total+a.Size > int64(limits.MaxTotalSize) {
			reject(src.Name, ReasonTotalSize, m.printer.Sprintf(i18n.MsgFileTotal, src.Name, limits.MaxTotalSize.String()))
			continue
		}
		count++
		total += a.Size
		result.Accepted = append(result.Accepted, a)
	}

	if len(result.Accepted) > 0 {
		err := m.store.Update(field, func(current any, _ bool) any {
			prev := List(current)
			next := make([]*Attachment, 0, len(prev)+len(result.Accepted))
			next = append(next, prev...)
			return append(next, result.Accepted...)
		})
		if err != nil {
			return AddResult{}, err
		}
		for _, a := range result.Accepted {
			m.startPreview(a)
		}
	}

	for _, r := range result.Rejected {
		m.notifier.Notify(notify.KindError, r.Message)
	}
	m.logger.Debug("attachments added", "field", field,
		"accepted", len(result.Accepted), "rejected", len(result.Rejected))
	return result, nil
}

// RemoveFile detaches the file at index in field's list.
func (m *Manager) RemoveFile(field string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, _ := m.store.Get(field)
	files := List(current)
	if index < 0 || index >= len(files) {
		return fmt.Errorf("%w: %s[%d]", ErrNotFound, field, index)
	}
	return m.removeLocked(field, files[index].ID)
}

// Remove detaches the file identified by id from field.
func (m *Manager) Remove(field string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(field, id)
}

func (m *Manager) removeLocked(field string, id uuid.UUID) error {
	current, _ := m.store.Get(field)
	files := List(current)
	idx := slices.IndexFunc(files, func(a *Attachment) bool { return a.ID == id })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := make([]*Attachment, 0, len(files)-1)
	next = append(next, files[:idx]...)
	next = append(next, files[idx+1:]...)
	if err := m.store.Update(field, func(any, bool) any { return next }); err != nil {
		return err
	}
	m.cancelLocked(id)
	return nil
}

// Clear detaches every file of the given fields, which may no longer be
// declared. Without arguments all file-set fields of the current schema are
// cleared.
func (m *Manager) Clear(fields ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(fields) == 0 && m.def != nil {
		fields = m.def.FileFields()
	}
	for _, field := range fields {
		current, ok := m.store.Get(field)
		if !ok {
			continue
		}
		files := List(current)
		for _, a := range files {
			m.cancelLocked(a.ID)
		}
		if files != nil {
			m.store.Unset(field)
		}
	}
}

// Files returns a copy of the list attached to field.
func (m *Manager) Files(field string) []*Attachment {
	current, _ := m.store.Get(field)
	return slices.Clone(List(current))
}

// Lookup finds an attached file by id.
func (m *Manager) Lookup(id uuid.UUID) (*Attachment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupLocked(id)
}

// PreviewFor returns the ready preview of the attached file id.
func (m *Manager) PreviewFor(id uuid.UUID) (string, bool) {
	a, ok := m.Lookup(id)
	if !ok {
		return "", false
	}
	return a.Preview()
}

// Wait blocks until all scheduled previews finished or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels pending previews and waits for their goroutines to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.stop()
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) fileRule(field string) (schema.FieldRule, error) {
	if m.def == nil {
		return schema.FieldRule{}, fmt.Errorf("%w: %q", ErrNotFileField, field)
	}
	rule, ok := m.def.Rule(field)
	if !ok || rule.Type != schema.FieldTypeFileSet {
		return schema.FieldRule{}, fmt.Errorf("%w: %q", ErrNotFileField, field)
	}
	return rule, nil
}

func (m *Manager) startPreview(a *Attachment) {
	if m.previewer == nil {
		a.setPreview("", ErrNoPreview)
		return
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[a.ID] = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.sem.Acquire(ctx, 1); err != nil {
			m.finishPreview(ctx, a, "", err)
			return
		}
		preview, err := m.previewer.Preview(ctx, a)
		m.sem.Release(1)
		m.finishPreview(ctx, a, preview, err)
	}()
}

// finishPreview applies a preview only while its file is still attached.
func (m *Manager) finishPreview(ctx context.Context, a *Attachment, preview string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancelled := ctx.Err() != nil
	m.cancelLocked(a.ID)
	if _, attached := m.lookupLocked(a.ID); !attached || cancelled {
		m.logger.Debug("preview discarded", "field", a.Field, "file", a.Name, "id", a.ID)
		return
	}
	if err != nil && !errors.Is(err, ErrNoPreview) {
		m.logger.Warn("preview failed", "field", a.Field, "file", a.Name, "error", err)
	}
	a.setPreview(preview, err)
}

func (m *Manager) cancelLocked(id uuid.UUID) {
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
}

func (m *Manager) lookupLocked(id uuid.UUID) (*Attachment, bool) {
	snapshot := m.store.Snapshot()
	for _, name := range snapshot.Names() {
		value, _ := snapshot.Get(name)
		for _, a := range List(value) {
			if a.ID == id {
				return a, true
			}
		}
	}
	return nil, false
}
