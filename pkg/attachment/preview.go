package attachment

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrNoPreview is returned by a Previewer for files it cannot render.
var ErrNoPreview = errors.New("attachment: no preview available")

// Previewer renders a preview for an attachment. Implementations must be safe
// for concurrent use and should honour ctx cancellation.
type Previewer interface {
	Preview(ctx context.Context, a *Attachment) (string, error)
}

// PreviewerFunc adapts a function to Previewer.
type PreviewerFunc func(ctx context.Context, a *Attachment) (string, error)

// Preview implements Previewer.
func (fn PreviewerFunc) Preview(ctx context.Context, a *Attachment) (string, error) {
	return fn(ctx, a)
}

// DefaultThumbnailSize bounds the longest edge of image previews.
const DefaultThumbnailSize = 160

// ImagePreviewer renders PNG, JPEG and GIF files as JPEG thumbnail data URIs.
type ImagePreviewer struct {
	MaxDimension int
	Quality      int
}

var previewable = []string{"image/png", "image/jpeg", "image/gif"}

// Preview implements Previewer.
func (p ImagePreviewer) Preview(ctx context.Context, a *Attachment) (string, error) {
	if !p.supports(a) {
		return "", ErrNoPreview
	}
	r, err := a.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	src, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("attachment: decode %s: %w", a.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	thumb := scale(src, p.maxDimension())
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: p.quality()}); err != nil {
		return "", fmt.Errorf("attachment: encode preview %s: %w", a.Name, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (p ImagePreviewer) supports(a *Attachment) bool {
	if a.mime == nil {
		return false
	}
	for _, m := range previewable {
		if a.mime.Is(m) {
			return true
		}
	}
	return false
}

func (p ImagePreviewer) maxDimension() int {
	if p.MaxDimension > 0 {
		return p.MaxDimension
	}
	return DefaultThumbnailSize
}

func (p ImagePreviewer) quality() int {
	if p.Quality > 0 && p.Quality <= 100 {
		return p.Quality
	}
	return 75
}

func scale(src image.Image, limit int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		return src
	}
	if w >= h {
		h = max(1, h*limit/w)
		w = limit
	} else {
		w = max(1, w*limit/h)
		h = limit
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
