package testsupport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-formwizard/pkg/notify"
	"github.com/goliatone/go-formwizard/pkg/submission"
)

// Note is one recorded notification.
type Note struct {
	Kind    notify.Kind
	Message string
}

// Recorder is a notify.Notifier that keeps every notification.
type Recorder struct {
	mu    sync.Mutex
	notes []Note
}

// Notify records the notification.
func (r *Recorder) Notify(kind notify.Kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, Note{Kind: kind, Message: message})
}

// Notes returns the recorded notifications in order.
func (r *Recorder) Notes() []Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Note(nil), r.notes...)
}

// Messages returns the recorded messages of kind.
func (r *Recorder) Messages(kind notify.Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

// Transport is a scripted submission.Transport. Respond decides the answer;
// when nil every request succeeds with 201 and id "sub-1".
type Transport struct {
	Respond func(submission.Request) (submission.Response, error)

	gate    chan struct{}
	started chan struct{}
	once    sync.Once

	calls    atomic.Int32
	mu       sync.Mutex
	requests []submission.Request
}

// NewBlockingTransport returns a Transport whose requests wait for Release.
func NewBlockingTransport() *Transport {
	return &Transport{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

// Send records req and answers it.
func (t *Transport) Send(ctx context.Context, req submission.Request) (submission.Response, error) {
	t.calls.Add(1)
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()

	if t.gate != nil {
		select {
		case t.started <- struct{}{}:
		default:
		}
		select {
		case <-t.gate:
		case <-ctx.Done():
			return submission.Response{}, ctx.Err()
		}
	}
	if t.Respond == nil {
		return JSONResponse(http.StatusCreated, `{"data":{"id":"sub-1"}}`), nil
	}
	return t.Respond(req)
}

// Started is signalled each time a blocking request reaches the transport.
func (t *Transport) Started() <-chan struct{} { return t.started }

// Release unblocks pending and future requests.
func (t *Transport) Release() {
	t.once.Do(func() {
		if t.gate != nil {
			close(t.gate)
		}
	})
}

// Calls returns the number of requests sent.
func (t *Transport) Calls() int { return int(t.calls.Load()) }

// Last returns the most recent request.
func (t *Transport) Last() (submission.Request, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return submission.Request{}, false
	}
	return t.requests[len(t.requests)-1], true
}

// JSONResponse builds a response with a JSON content type.
func JSONResponse(status int, body string) submission.Response {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return submission.Response{Status: status, Header: header, Body: []byte(body)}
}

// Reply returns a Respond function that always answers with status and body.
func Reply(status int, body string) func(submission.Request) (submission.Response, error) {
	return func(submission.Request) (submission.Response, error) {
		return JSONResponse(status, body), nil
	}
}
