package attachment

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/fieldstore"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/schema"
)

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) Notify(kind notify.Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, string(kind)+": "+message)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func photoDefinition(limits schema.FileConstraints) *schema.WizardDefinition {
	return &schema.WizardDefinition{
		Kind:          "listing",
		Discriminator: "sale",
		Steps: []schema.StepDefinition{
			{ID: "media", Fields: []string{"photos", "caption"}},
		},
		Rules: map[string]schema.FieldRule{
			"photos":  {Name: "photos", Type: schema.FieldTypeFileSet, Files: &limits},
			"caption": {Name: "caption", Type: schema.FieldTypeText},
		},
	}
}

func newManager(t *testing.T, def *schema.WizardDefinition, opts ...Option) (*Manager, *fieldstore.Store) {
	t.Helper()
	store := fieldstore.New(def.Fields(), def.Defaults())
	m := New(store, def, opts...)
	t.Cleanup(m.Close)
	return m, store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pdfBytes(size int) []byte {
	data := []byte("%PDF-1.4\n%test document\n")
	if size > len(data) {
		data = append(data, bytes.Repeat([]byte("0"), size-len(data))...)
	}
	return data
}

func names(files []*Attachment) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func reasons(rejected []Rejection) []Reason {
	out := make([]Reason, 0, len(rejected))
	for _, r := range rejected {
		out = append(out, r.Reason)
	}
	return out
}

func TestAddFilesPartialAcceptance(t *testing.T) {
	rec := &recorder{}
	def := photoDefinition(schema.FileConstraints{Accept: []string{"application/pdf"}, MaxCount: 3})
	m, _ := newManager(t, def, WithNotifier(rec), WithPreviewer(nil))

	if _, err := m.AddFiles("photos", FromBytes("a.pdf", pdfBytes(64))); err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	result, err := m.AddFiles("photos",
		FromBytes("b.pdf", pdfBytes(64)),
		FromBytes("c.pdf", pdfBytes(64)),
		FromBytes("d.pdf", pdfBytes(64)),
		FromBytes("e.pdf", pdfBytes(64)),
	)
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}

	if diff := cmp.Diff([]string{"b.pdf", "c.pdf"}, names(result.Accepted)); diff != "" {
		t.Fatalf("accepted mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Reason{ReasonCount, ReasonCount}, reasons(result.Rejected)); diff != "" {
		t.Fatalf("rejection reasons mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.pdf", "b.pdf", "c.pdf"}, names(m.Files("photos"))); diff != "" {
		t.Fatalf("stored files mismatch (-want +got):\n%s", diff)
	}
	if got := rec.count(); got != 2 {
		t.Fatalf("expected one notification per rejection, got %d", got)
	}
}

func TestAddFilesChecksEachFile(t *testing.T) {
	rec := &recorder{}
	def := photoDefinition(schema.FileConstraints{
		Accept:      []string{"image/*", ".pdf"},
		MaxFileSize: 100,
	})
	m, _ := newManager(t, def, WithNotifier(rec), WithPreviewer(nil))

	result, err := m.AddFiles("photos",
		FromBytes("notes.txt", []byte("plain text notes")),
		FromBytes("big.pdf", pdfBytes(500)),
		FromBytes("empty.pdf", nil),
		FromBytes("small.pdf", pdfBytes(50)),
	)
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if diff := cmp.Diff([]string{"small.pdf"}, names(result.Accepted)); diff != "" {
		t.Fatalf("accepted mismatch (-want +got):\n%s", diff)
	}
	want := []Reason{ReasonType, ReasonSize, ReasonEmpty}
	if diff := cmp.Diff(want, reasons(result.Rejected)); diff != "" {
		t.Fatalf("rejection reasons mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(result.Rejected[1].Message, "big.pdf") {
		t.Fatalf("expected message to name the file, got %q", result.Rejected[1].Message)
	}
	if got := rec.count(); got != 3 {
		t.Fatalf("expected 3 notifications, got %d", got)
	}
}

func TestAddFilesEnforcesTotalSize(t *testing.T) {
	def := photoDefinition(schema.FileConstraints{MaxTotalSize: 150})
	m, _ := newManager(t, def, WithPreviewer(nil))

	result, err := m.AddFiles("photos",
		FromBytes("one.pdf", pdfBytes(100)),
		FromBytes("two.pdf", pdfBytes(100)),
		FromBytes("three.pdf", pdfBytes(40)),
	)
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if diff := cmp.Diff([]string{"one.pdf", "three.pdf"}, names(result.Accepted)); diff != "" {
		t.Fatalf("accepted mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Reason{ReasonTotalSize}, reasons(result.Rejected)); diff != "" {
		t.Fatalf("rejection reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestAddFilesRejectsNonFileField(t *testing.T) {
	m, _ := newManager(t, photoDefinition(schema.FileConstraints{}))
	if _, err := m.AddFiles("caption", FromBytes("a.pdf", pdfBytes(10))); err == nil {
		t.Fatalf("expected error for text field")
	}
	if _, err := m.AddFiles("missing", FromBytes("a.pdf", pdfBytes(10))); err == nil {
		t.Fatalf("expected error for undeclared field")
	}
}

func TestRemoveFileKeepsOthers(t *testing.T) {
	m, store := newManager(t, photoDefinition(schema.FileConstraints{}), WithPreviewer(nil))
	result, err := m.AddFiles("photos",
		FromBytes("a.pdf", pdfBytes(10)),
		FromBytes("b.pdf", pdfBytes(10)),
		FromBytes("c.pdf", pdfBytes(10)),
	)
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	before := m.Files("photos")

	if err := m.RemoveFile("photos", 1); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if diff := cmp.Diff([]string{"a.pdf", "c.pdf"}, names(m.Files("photos"))); diff != "" {
		t.Fatalf("files mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.pdf", "b.pdf", "c.pdf"}, names(before)); diff != "" {
		t.Fatalf("earlier list was mutated (-want +got):\n%s", diff)
	}
	if err := m.Remove("photos", result.Accepted[1].ID); err == nil {
		t.Fatalf("expected ErrNotFound for removed file")
	}
	if !store.Touched("photos") {
		t.Fatalf("expected photos to be touched")
	}
}

func TestClear(t *testing.T) {
	m, store := newManager(t, photoDefinition(schema.FileConstraints{}), WithPreviewer(nil))
	if _, err := m.AddFiles("photos", FromBytes("a.pdf", pdfBytes(10))); err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	m.Clear()
	if _, ok := store.Get("photos"); ok {
		t.Fatalf("expected photos to be cleared")
	}
}

func TestImagePreview(t *testing.T) {
	m, _ := newManager(t, photoDefinition(schema.FileConstraints{Accept: []string{"image/*"}}))
	result, err := m.AddFiles("photos", FromBytes("wide.png", pngBytes(t, 400, 200)))
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if len(result.Accepted) != 1 {
		t.Fatalf("expected png to be accepted, got %+v", result.Rejected)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	preview, ok := m.PreviewFor(result.Accepted[0].ID)
	if !ok {
		t.Fatalf("expected preview, state %s err %v", result.Accepted[0].PreviewState(), result.Accepted[0].PreviewErr())
	}
	if !strings.HasPrefix(preview, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected preview prefix: %.40s", preview)
	}
}

func TestPreviewUnavailableForDocuments(t *testing.T) {
	m, _ := newManager(t, photoDefinition(schema.FileConstraints{}))
	result, err := m.AddFiles("photos", FromBytes("doc.pdf", pdfBytes(32)))
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got := result.Accepted[0].PreviewState(); got != PreviewUnavailable {
		t.Fatalf("expected unavailable preview, got %s", got)
	}
}

func TestLatePreviewIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := PreviewerFunc(func(ctx context.Context, a *Attachment) (string, error) {
		close(started)
		<-release
		return "late-preview", nil
	})
	m, _ := newManager(t, photoDefinition(schema.FileConstraints{}), WithPreviewer(slow))

	result, err := m.AddFiles("photos", FromBytes("a.pdf", pdfBytes(10)))
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	<-started
	if err := m.RemoveFile("photos", 0); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	removed := result.Accepted[0]
	if got := removed.PreviewState(); got != PreviewPending {
		t.Fatalf("expected late preview to be discarded, state %s", got)
	}
	if _, ok := m.PreviewFor(removed.ID); ok {
		t.Fatalf("expected no preview for removed file")
	}
}

func TestPreviewConcurrencyIsBounded(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		highest int
	)
	previewer := PreviewerFunc(func(ctx context.Context, a *Attachment) (string, error) {
		mu.Lock()
		active++
		highest = max(highest, active)
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return "ok", nil
	})
	m, _ := newManager(t, photoDefinition(schema.FileConstraints{}),
		WithPreviewer(previewer), WithPreviewConcurrency(2))

	var sources []Source
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf", "f.pdf"} {
		sources = append(sources, FromBytes(name, pdfBytes(10)))
	}
	if _, err := m.AddFiles("photos", sources...); err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if highest > 2 {
		t.Fatalf("expected at most 2 concurrent previews, saw %d", highest)
	}
	for _, f := range m.Files("photos") {
		if _, ok := f.Preview(); !ok {
			t.Fatalf("expected preview for %s", f.Name)
		}
	}
}

func TestAccepts(t *testing.T) {
	pdf := inspectBytes(t, "plan.pdf", pdfBytes(20))
	cases := []struct {
		name   string
		accept []string
		file   string
		want   bool
	}{
		{name: "empty list", accept: nil, file: "plan.pdf", want: true},
		{name: "exact mime", accept: []string{"application/pdf"}, file: "plan.pdf", want: true},
		{name: "wildcard mismatch", accept: []string{"image/*"}, file: "plan.pdf", want: false},
		{name: "extension", accept: []string{".PDF"}, file: "plan.pdf", want: true},
		{name: "extension mismatch", accept: []string{".dwg"}, file: "plan.pdf", want: false},
		{name: "any", accept: []string{"*/*"}, file: "plan.pdf", want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Accepts(tc.accept, tc.file, pdf.mime); got != tc.want {
				t.Fatalf("Accepts(%v) = %v, want %v", tc.accept, got, tc.want)
			}
		})
	}
}

func inspectBytes(t *testing.T, name string, data []byte) *Attachment {
	t.Helper()
	a, err := inspect("photos", FromBytes(name, data))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	return a
}
