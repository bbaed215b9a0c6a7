package submission

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Request is one submission attempt.
type Request struct {
	URL     string
	Token   string
	Payload Payload
}

// Response is the raw server answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Transport delivers a Request. A non-nil error means no response was
// received; HTTP error statuses are reported through Response.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (Response, error)

// Send implements Transport.
func (fn TransportFunc) Send(ctx context.Context, req Request) (Response, error) {
	return fn(ctx, req)
}

// OpenError reports an attachment whose content could not be read before
// the request was sent.
type OpenError struct {
	Field    string
	FileName string
	Err      error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("submission: open %s (%s): %v", e.FileName, e.Field, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// RestyTransport posts multipart bodies with resty. Requests are never
// retried by the transport.
type RestyTransport struct {
	client *resty.Client
}

// NewRestyTransport wraps client. A nil client gets a default one with
// timeout applied.
func NewRestyTransport(client *resty.Client, timeout time.Duration) *RestyTransport {
	if client == nil {
		client = resty.New()
	}
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	client.SetRetryCount(0)
	return &RestyTransport{client: client}
}

// Send implements Transport.
func (t *RestyTransport) Send(ctx context.Context, req Request) (Response, error) {
	r := t.client.R().
		SetContext(ctx).
		SetMultipartFormData(map[string]string{}).
		SetFormDataFromValues(req.Payload.Form())
	if req.Token != "" {
		r.SetAuthToken(req.Token)
	}

	var readers []io.Closer
	defer func() {
		for _, rc := range readers {
			_ = rc.Close()
		}
	}()
	for _, part := range req.Payload.Files {
		if part.Open == nil {
			return Response{}, &OpenError{Field: part.Field, FileName: part.FileName, Err: fmt.Errorf("no content")}
		}
		rc, err := part.Open()
		if err != nil {
			return Response{}, &OpenError{Field: part.Field, FileName: part.FileName, Err: err}
		}
		readers = append(readers, rc)
		contentType := part.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		r.SetMultipartField(part.Key, part.FileName, contentType, rc)
	}

	resp, err := r.Post(req.URL)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: resp.StatusCode(), Header: resp.Header(), Body: resp.Body()}, nil
}
