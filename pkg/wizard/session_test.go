package wizard_test

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/credentials"
	"github.com/goliatone/go-formwizard/pkg/failure"
	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/submission"
	"github.com/goliatone/go-formwizard/pkg/testsupport"
	"github.com/goliatone/go-formwizard/pkg/wizard"
)

type fixture struct {
	session   *wizard.Session
	transport *testsupport.Transport
	tokens    *credentials.MemoryStore
	notes     *testsupport.Recorder
}

func newFixture(t *testing.T, kind, token string, transport *testsupport.Transport, opts ...wizard.Option) fixture {
	t.Helper()

	if transport == nil {
		transport = &testsupport.Transport{}
	}
	provider, store := testsupport.Tokens(token)
	notes := &testsupport.Recorder{}
	coordinator := submission.NewCoordinator(provider, transport, submission.WithNotifier(notes))
	opts = append([]wizard.Option{
		wizard.WithNotifier(notes),
		wizard.WithAttachmentOptions(attachment.WithPreviewer(nil)),
	}, opts...)
	session, err := wizard.New(testsupport.Registry(t, kind), coordinator, opts...)
	if err != nil {
		t.Fatalf("wizard.New: %v", err)
	}
	t.Cleanup(session.Close)
	return fixture{session: session, transport: transport, tokens: store, notes: notes}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func fillAccount(t *testing.T, s *wizard.Session) {
	t.Helper()
	must(t, s.Set("full_name", "Sara Ali"))
	must(t, s.Set("email", "sara@example.com"))
	must(t, s.Set("phone", "+966500000000"))
	must(t, s.Set("password", "secret123"))
}

func attach(t *testing.T, s *wizard.Session, field string, sources ...attachment.Source) {
	t.Helper()
	result, err := s.AddFiles(field, sources...)
	must(t, err)
	if len(result.Rejected) > 0 {
		t.Fatalf("files rejected: %+v", result.Rejected)
	}
}

// reviewIndividual walks an individual registration to the review state.
func reviewIndividual(t *testing.T, s *wizard.Session) {
	t.Helper()
	fillAccount(t, s)
	must(t, s.Next())
	must(t, s.Set("national_id", "1234567890"))
	attach(t, s, "id_documents", testsupport.PDF("id.pdf"))
	must(t, s.Next())
	must(t, s.Set("accept_terms", true))
	must(t, s.Next())
	if got := s.State(); got != wizard.StateReviewing {
		t.Fatalf("expected reviewing, got %s", got)
	}
}

func reviewSaleListing(t *testing.T, s *wizard.Session) {
	t.Helper()
	must(t, s.Set("representation_role", "owner"))
	must(t, s.Set("deed_number", "D-100"))
	must(t, s.Next())
	must(t, s.Set("title", "Farm land near the coast"))
	must(t, s.Set("city", "Jeddah"))
	must(t, s.Set("area", 500))
	must(t, s.Set("price", 250000))
	must(t, s.Next())
	attach(t, s, "photos", testsupport.PNG(t, "front.png", 8, 8))
	attach(t, s, "deed_document", testsupport.PDF("deed.pdf"))
	must(t, s.Next())
	must(t, s.Set("accept_terms", true))
	must(t, s.Review())
}

func TestNextGatesForwardNavigation(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session

	err := s.Next()
	var fail *failure.Error
	if !errors.As(err, &fail) || fail.Kind != failure.KindClientValidation {
		t.Fatalf("expected client validation error, got %v", err)
	}
	want := []string{"email", "full_name", "password", "phone"}
	if diff := cmp.Diff(want, keys(fail.Fields)); diff != "" {
		t.Fatalf("rejected fields mismatch (-want +got):\n%s", diff)
	}
	if fail.Step != 0 || s.Step() != 0 {
		t.Fatalf("expected to stay on step 0, got %d/%d", fail.Step, s.Step())
	}
	if diff := cmp.Diff(want, keys(s.Errors())); diff != "" {
		t.Fatalf("displayed errors mismatch (-want +got):\n%s", diff)
	}

	fillAccount(t, s)
	must(t, s.Next())
	if s.Step() != 1 {
		t.Fatalf("expected step 1, got %d", s.Step())
	}
	if got := s.CurrentStep().ID; got != "identity" {
		t.Fatalf("expected identity step, got %q", got)
	}

	must(t, s.Back())
	if s.Step() != 0 {
		t.Fatalf("expected step 0 after back, got %d", s.Step())
	}
	if err := s.Back(); !errors.Is(err, wizard.ErrFirstStep) {
		t.Fatalf("expected ErrFirstStep, got %v", err)
	}
}

func TestBackIgnoresInvalidStep(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session
	fillAccount(t, s)
	must(t, s.Next())
	must(t, s.Set("national_id", "abc"))
	must(t, s.Back())
	if s.Step() != 0 {
		t.Fatalf("expected step 0, got %d", s.Step())
	}
}

func TestGoToStopsAtFirstInvalidStep(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session
	fillAccount(t, s)

	err := s.GoTo(2)
	if !errors.Is(err, failure.ErrClientValidation) {
		t.Fatalf("expected client validation error, got %v", err)
	}
	if s.Step() != 1 {
		t.Fatalf("expected to stop on step 1, got %d", s.Step())
	}
	must(t, s.GoTo(0))
	if err := s.GoTo(7); !errors.Is(err, wizard.ErrStepRange) {
		t.Fatalf("expected ErrStepRange, got %v", err)
	}
}

func TestLiveErrorsOnlyForTouchedFields(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session

	must(t, s.Set("email", "not-an-email"))
	if diff := cmp.Diff([]string{"email"}, keys(s.Errors())); diff != "" {
		t.Fatalf("live errors mismatch (-want +got):\n%s", diff)
	}
	must(t, s.Set("email", "sara@example.com"))
	if got := s.Errors(); len(got) != 0 {
		t.Fatalf("expected no errors, got %v", got)
	}

	if err := s.Next(); err == nil {
		t.Fatalf("expected next to fail")
	}
	if diff := cmp.Diff([]string{"full_name", "password", "phone"}, keys(s.Errors())); diff != "" {
		t.Fatalf("revealed errors mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscriminatorSwitchPrunesAndClampsStep(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session
	fillAccount(t, s)
	must(t, s.Next())
	must(t, s.Set("national_id", "1234567890"))
	attach(t, s, "id_documents", testsupport.PDF("id.pdf"))

	must(t, s.Set("account_type", "legal-agent"))

	def := s.Definition()
	if def.Discriminator != "legal-agent" {
		t.Fatalf("expected legal-agent schema, got %q", def.Discriminator)
	}
	if !def.Declares("agency_number") || def.Declares("id_documents") {
		t.Fatalf("unexpected field set %v", def.Fields())
	}
	if s.Step() != 0 {
		t.Fatalf("expected step clamped to the discriminator step, got %d", s.Step())
	}
	values := s.Values()
	if _, ok := values.Get("id_documents"); ok {
		t.Fatalf("expected id_documents to be pruned")
	}
	if len(s.Files("id_documents")) != 0 {
		t.Fatalf("expected orphaned attachments to be cleared")
	}
	if got, _ := values.Get("national_id"); got != "1234567890" {
		t.Fatalf("expected shared field to survive, got %v", got)
	}
	if got, _ := values.Get("account_type"); got != "legal-agent" {
		t.Fatalf("expected discriminator value to be stored, got %v", got)
	}
}

func TestDiscriminatorSwitchIsAtomicForReaders(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session

	stop := make(chan struct{})
	torn := make(chan string, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			values := s.Values()
			kind, _ := values.Get("account_type")
			if _, ok := values.Get("agency_number"); ok && kind == "individual" {
				torn <- "agency_number visible after switching to individual"
				return
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		must(t, s.Set("account_type", "legal-agent"))
		must(t, s.Set("agency_number", "1234567"))
		must(t, s.Set("account_type", "individual"))
	}
	close(stop)
	wg.Wait()

	select {
	case msg := <-torn:
		t.Fatalf("reader observed a half-applied switch: %s", msg)
	default:
	}
}

func TestUnknownDiscriminatorFallsBack(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil, wizard.WithDiscriminator("broker"))

	if got := f.session.Definition().Discriminator; got != "individual" {
		t.Fatalf("expected default schema, got %q", got)
	}
	want := []string{`Unknown selection "broker", showing the default form`}
	if diff := cmp.Diff(want, f.notes.Messages(notify.KindInfo)); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}

	must(t, f.session.SetDiscriminator("company"))
	if got := f.session.Definition().Discriminator; got != schema.Discriminator("company") {
		t.Fatalf("expected company schema, got %q", got)
	}
}

func TestLegalAgentWithoutAgencyNumberNeverHitsNetwork(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil, wizard.WithDiscriminator("legal-agent"))
	s := f.session
	fillAccount(t, s)
	must(t, s.Next())
	must(t, s.Set("national_id", "1234567890"))
	must(t, s.Set("agency_number", "12345678"))
	attach(t, s, "agency_license", testsupport.PDF("license.pdf"))
	must(t, s.Next())
	must(t, s.Set("accept_terms", true))
	must(t, s.Review())

	must(t, s.Set("agency_number", ""))
	result, err := s.Submit(context.Background())
	if !errors.Is(err, failure.ErrClientValidation) {
		t.Fatalf("expected client validation error, got %v", err)
	}
	if _, ok := result.Err.Fields["agency_number"]; !ok {
		t.Fatalf("expected agency_number error, got %v", result.Err.Fields)
	}
	if f.transport.Calls() != 0 {
		t.Fatalf("expected no network call, got %d", f.transport.Calls())
	}
	if s.State() != wizard.StateFailed || s.Step() != 1 {
		t.Fatalf("expected failed on step 1, got %s on %d", s.State(), s.Step())
	}
	if _, ok := s.Errors()["agency_number"]; !ok {
		t.Fatalf("expected agency_number to be displayed, got %v", s.Errors())
	}
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session
	reviewIndividual(t, s)

	result, err := s.Submit(context.Background())
	must(t, err)
	if result.ID != "sub-1" || result.Status != http.StatusCreated {
		t.Fatalf("unexpected result %+v", result)
	}
	if s.State() != wizard.StateSucceeded {
		t.Fatalf("expected succeeded, got %s", s.State())
	}
	req, _ := f.transport.Last()
	if req.Payload.Has("agency_number") || !req.Payload.Has("id_documents") {
		t.Fatalf("unexpected payload fields %v", req.Payload.Fields())
	}
	if err := s.Set("full_name", "Other"); !errors.Is(err, wizard.ErrFinished) {
		t.Fatalf("expected ErrFinished, got %v", err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, wizard.ErrFinished) {
		t.Fatalf("expected ErrFinished on resubmit, got %v", err)
	}
	last, ok := s.LastResult()
	if !ok || last.ID != "sub-1" {
		t.Fatalf("unexpected last result %+v", last)
	}
}

func TestSubmitRequiresReview(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	if _, err := f.session.Submit(context.Background()); !errors.Is(err, wizard.ErrNotReviewing) {
		t.Fatalf("expected ErrNotReviewing, got %v", err)
	}
}

func TestServerValidationJumpsToLowestStep(t *testing.T) {
	transport := &testsupport.Transport{
		Respond: testsupport.Reply(http.StatusUnprocessableEntity,
			`{"errors":{"title":["Title already used"],"accept_terms":["Terms must be accepted"]}}`),
	}
	f := newFixture(t, "listing", "tok", transport)
	s := f.session
	reviewSaleListing(t, s)

	_, err := s.Submit(context.Background())
	if !errors.Is(err, failure.ErrValidationRejected) {
		t.Fatalf("expected validation rejected, got %v", err)
	}
	if s.State() != wizard.StateFailed || s.Step() != 1 {
		t.Fatalf("expected failed on step 1, got %s on %d", s.State(), s.Step())
	}
	want := map[string]string{
		"accept_terms": "Terms must be accepted",
		"title":        "Title already used",
	}
	if diff := cmp.Diff(want, map[string]string(s.Errors())); diff != "" {
		t.Fatalf("server errors mismatch (-want +got):\n%s", diff)
	}

	must(t, s.Set("title", "Farm land by the sea"))
	if s.State() != wizard.StateEditing {
		t.Fatalf("expected editing after a change, got %s", s.State())
	}
	want = map[string]string{"accept_terms": "Terms must be accepted"}
	if diff := cmp.Diff(want, map[string]string(s.Errors())); diff != "" {
		t.Fatalf("errors after edit mismatch (-want +got):\n%s", diff)
	}
}

func TestServerErrorStaysOnLastStep(t *testing.T) {
	transport := &testsupport.Transport{Respond: testsupport.Reply(http.StatusInternalServerError, `{}`)}
	f := newFixture(t, "registration", "tok", transport)
	s := f.session
	reviewIndividual(t, s)

	if _, err := s.Submit(context.Background()); !errors.Is(err, failure.ErrServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	if s.State() != wizard.StateFailed || s.Step() != 2 {
		t.Fatalf("expected failed on the last step, got %s on %d", s.State(), s.Step())
	}
	if diff := cmp.Diff([]string{"Something went wrong, please try again"}, s.FormErrors()); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}

	// A failed submission may be retried in place.
	f.transport.Respond = nil
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.State() != wizard.StateSucceeded {
		t.Fatalf("expected succeeded, got %s", s.State())
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	transport := testsupport.NewBlockingTransport()
	f := newFixture(t, "registration", "tok", transport)
	s := f.session
	reviewIndividual(t, s)

	type outcome struct {
		result submission.Result
		err    error
	}
	first := make(chan outcome, 1)
	second := make(chan outcome, 1)
	go func() {
		result, err := s.Submit(context.Background())
		first <- outcome{result, err}
	}()
	<-transport.Started()

	if s.State() != wizard.StateSubmitting {
		t.Fatalf("expected submitting, got %s", s.State())
	}
	if err := s.Set("full_name", "Changed"); !errors.Is(err, wizard.ErrBusy) {
		t.Fatalf("expected ErrBusy while submitting, got %v", err)
	}

	go func() {
		result, err := s.Submit(context.Background())
		second <- outcome{result, err}
	}()
	time.Sleep(50 * time.Millisecond)
	transport.Release()

	a, b := <-first, <-second
	if a.err != nil || b.err != nil {
		t.Fatalf("unexpected errors %v / %v", a.err, b.err)
	}
	if a.result.Shared || !b.result.Shared {
		t.Fatalf("expected only the second caller to share, got %v / %v", a.result.Shared, b.result.Shared)
	}
	if transport.Calls() != 1 {
		t.Fatalf("expected one network call, got %d", transport.Calls())
	}
}

func TestAwaitingAuthAndResume(t *testing.T) {
	f := newFixture(t, "registration", "", nil)
	s := f.session
	reviewIndividual(t, s)

	if _, err := s.Submit(context.Background()); !errors.Is(err, failure.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if s.State() != wizard.StateAwaitingAuth {
		t.Fatalf("expected awaiting auth, got %s", s.State())
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, wizard.ErrAwaitingAuth) {
		t.Fatalf("expected ErrAwaitingAuth, got %v", err)
	}
	if f.transport.Calls() != 0 {
		t.Fatalf("expected no network call, got %d", f.transport.Calls())
	}

	must(t, f.tokens.Set(credentials.DefaultKey, "fresh"))
	must(t, s.Resume())
	if s.State() != wizard.StateReviewing {
		t.Fatalf("expected reviewing after resume, got %s", s.State())
	}
	if err := s.Resume(); !errors.Is(err, wizard.ErrNotAwaitingAuth) {
		t.Fatalf("expected ErrNotAwaitingAuth, got %v", err)
	}
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatalf("submit after resume: %v", err)
	}
	req, _ := f.transport.Last()
	if req.Token != "fresh" {
		t.Fatalf("expected fresh token, got %q", req.Token)
	}
}

func TestExpiredCredentialIsPurged(t *testing.T) {
	transport := &testsupport.Transport{Respond: testsupport.Reply(http.StatusUnauthorized, `{"message":"token expired"}`)}
	f := newFixture(t, "registration", "stale", transport)
	s := f.session
	reviewIndividual(t, s)

	if _, err := s.Submit(context.Background()); !errors.Is(err, failure.ErrAuthExpired) {
		t.Fatalf("expected auth expired, got %v", err)
	}
	if s.State() != wizard.StateAwaitingAuth {
		t.Fatalf("expected awaiting auth, got %s", s.State())
	}
	if _, ok, _ := f.tokens.Get(credentials.DefaultKey); ok {
		t.Fatalf("expected credential to be purged")
	}
	want := []string{"Your session has expired, please sign in again"}
	if diff := cmp.Diff(want, f.notes.Messages(notify.KindError)); diff != "" {
		t.Fatalf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session
	reviewIndividual(t, s)
	_, err := s.Submit(context.Background())
	must(t, err)

	must(t, s.Reset())
	if s.State() != wizard.StateEditing || s.Step() != 0 {
		t.Fatalf("expected editing on step 0, got %s on %d", s.State(), s.Step())
	}
	values := s.Values()
	if diff := cmp.Diff([]string{"account_type"}, values.Names()); diff != "" {
		t.Fatalf("values after reset mismatch (-want +got):\n%s", diff)
	}
	if len(s.Files("id_documents")) != 0 {
		t.Fatalf("expected attachments to be cleared")
	}
	if _, ok := s.LastResult(); ok {
		t.Fatalf("expected last result to be cleared")
	}
	must(t, s.Set("full_name", "Again"))
}

func TestCloseDiscardsLateResult(t *testing.T) {
	transport := testsupport.NewBlockingTransport()
	f := newFixture(t, "registration", "tok", transport)
	s := f.session
	reviewIndividual(t, s)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Submit(context.Background())
	}()
	<-transport.Started()
	s.Close()
	transport.Release()
	<-done

	if _, ok := s.LastResult(); ok {
		t.Fatalf("expected result to be discarded after close")
	}
	if s.State() == wizard.StateSucceeded {
		t.Fatalf("expected closed session not to apply the result")
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, wizard.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Set("full_name", "x"); !errors.Is(err, wizard.ErrClosed) {
		t.Fatalf("expected ErrClosed on set, got %v", err)
	}
}

func TestAttachmentRejectionsAreReported(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil)
	s := f.session
	fillAccount(t, s)
	must(t, s.Next())

	result, err := s.AddFiles("id_documents",
		testsupport.PDF("a.pdf"),
		attachment.FromBytes("notes.txt", []byte("plain text notes")),
		testsupport.PDF("b.pdf"),
		testsupport.PDF("c.pdf"),
	)
	must(t, err)
	if len(result.Accepted) != 2 || len(result.Rejected) != 2 {
		t.Fatalf("expected 2 accepted and 2 rejected, got %d/%d", len(result.Accepted), len(result.Rejected))
	}
	errs := f.notes.Messages(notify.KindError)
	if len(errs) != 2 || !strings.HasPrefix(errs[0], "notes.txt") {
		t.Fatalf("unexpected rejection notices %v", errs)
	}
	must(t, s.RemoveFile("id_documents", 0))
	if got := len(s.Files("id_documents")); got != 1 {
		t.Fatalf("expected 1 file left, got %d", got)
	}
}

func TestArabicLocale(t *testing.T) {
	f := newFixture(t, "registration", "tok", nil, wizard.WithLocale("ar"))
	err := f.session.Next()
	var fail *failure.Error
	if !errors.As(err, &fail) {
		t.Fatalf("expected failure, got %v", err)
	}
	if got := fail.Fields["full_name"]; got != "هذا الحقل مطلوب" {
		t.Fatalf("expected arabic message, got %q", got)
	}
}
