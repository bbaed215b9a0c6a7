// Package templates bundles the wizard definitions of the marketplace:
// account registration, land listing, marketing requests and offers.
package templates

import (
	"embed"
	"io/fs"
	"os"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/schema"
)

//go:embed wizards/*.yaml
var embedded embed.FS

// FS returns the bundled template documents.
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "wizards")
	if err != nil {
		panic(err)
	}
	return sub
}

// Catalog loads the bundled templates.
func Catalog() (*schema.Catalog, error) {
	return schema.LoadFS(FS())
}

// Load reads templates from dir, or the bundled ones when dir is empty.
func Load(dir string) (*schema.Catalog, error) {
	if strings.TrimSpace(dir) == "" {
		return Catalog()
	}
	return schema.LoadFS(os.DirFS(dir))
}
