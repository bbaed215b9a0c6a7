package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Source is a raw file selected by the user.
type Source struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromBytes wraps an in-memory file.
func FromBytes(name string, data []byte) Source {
	return Source{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath wraps a file on disk.
func FromPath(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("attachment: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("attachment: %s is a directory", path)
	}
	return Source{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// PreviewState tracks the background preview of an attachment.
type PreviewState int

const (
	PreviewPending PreviewState = iota
	PreviewReady
	PreviewUnavailable
	PreviewFailed
)

func (s PreviewState) String() string {
	switch s {
	case PreviewPending:
		return "pending"
	case PreviewReady:
		return "ready"
	case PreviewUnavailable:
		return "unavailable"
	case PreviewFailed:
		return "failed"
	}
	return "unknown"
}

// Attachment is an accepted file plus its derived metadata.
type Attachment struct {
	ID    uuid.UUID
	Field string
	Name  string
	Size  int64
	MIME  string

	source Source
	mime   *mimetype.MIME

	mu         sync.RWMutex
	state      PreviewState
	preview    string
	previewErr error
}

// Open returns a reader over the file contents.
func (a *Attachment) Open() (io.ReadCloser, error) {
	if a.source.Open == nil {
		return nil, fmt.Errorf("attachment: %s has no content", a.Name)
	}
	return a.source.Open()
}

// Preview returns the encoded preview once it is ready.
func (a *Attachment) Preview() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.preview, a.state == PreviewReady
}

// PreviewState reports the background preview progress.
func (a *Attachment) PreviewState() PreviewState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// PreviewErr returns the failure of the preview, if any.
func (a *Attachment) PreviewErr() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.previewErr
}

func (a *Attachment) setPreview(preview string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case err == nil:
		a.state, a.preview = PreviewReady, preview
	case errors.Is(err, ErrNoPreview):
		a.state = PreviewUnavailable
	default:
		a.state, a.previewErr = PreviewFailed, err
	}
}

func inspect(field string, src Source) (*Attachment, error) {
	if src.Open == nil {
		return nil, errors.New("no content")
	}
	r, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, err
	}
	return &Attachment{
		ID:     uuid.New(),
		Field:  field,
		Name:   src.Name,
		Size:   src.Size,
		MIME:   detected.String(),
		source: src,
		mime:   detected,
		state:  PreviewPending,
	}, nil
}

// List extracts the attachments stored as a field value.
func List(value any) []*Attachment {
	files, _ := value.([]*Attachment)
	return files
}

// TotalSize sums the sizes of files.
func TotalSize(files []*Attachment) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
