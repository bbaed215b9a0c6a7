package testsupport

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formwizard/pkg/attachment"
	"github.com/goliatone/go-formwizard/pkg/credentials"
	"github.com/goliatone/go-formwizard/pkg/schema"
	"github.com/goliatone/go-formwizard/pkg/templates"
)

// Registry returns the bundled registry for kind and fails the test when it
// is missing.
func Registry(t *testing.T, kind string) *schema.Registry {
	t.Helper()

	catalog, err := templates.Catalog()
	if err != nil {
		t.Fatalf("load templates: %v", err)
	}
	reg, ok := catalog.Registry(kind)
	if !ok {
		t.Fatalf("template kind %q not bundled", kind)
	}
	return reg
}

// Tokens returns a credential provider over an in-memory store holding token
// under the default key. An empty token leaves the store empty.
func Tokens(token string) (credentials.KeyProvider, *credentials.MemoryStore) {
	values := map[string]string{}
	if token != "" {
		values[credentials.DefaultKey] = token
	}
	store := credentials.NewMemoryStore(values)
	return credentials.NewKeyProvider(store, ""), store
}

// PDF returns an attachment source whose content sniffs as application/pdf.
func PDF(name string) attachment.Source {
	return attachment.FromBytes(name, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"))
}

// PNG returns an attachment source holding a small encoded image.
func PNG(t *testing.T, name string, w, h int) attachment.Source {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return attachment.FromBytes(name, buf.Bytes())
}

// Golden compares got with the golden file at path. With UPDATE_GOLDENS set
// the file is rewritten from got instead.
func Golden(t *testing.T, path, got string) {
	t.Helper()
	if os.Getenv("UPDATE_GOLDENS") != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("golden dir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(got), 0o644); err != nil {
			t.Fatalf("update golden %s: %v", path, err)
		}
		return
	}
	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("golden %s: %v (run with UPDATE_GOLDENS=1 to create it)", path, err)
	}
	if diff := cmp.Diff(string(want), got); diff != "" {
		t.Fatalf("%s mismatch (-want +got):\n%s", filepath.Base(path), diff)
	}
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
