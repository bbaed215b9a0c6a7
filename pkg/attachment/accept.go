package attachment

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Accepts reports whether a file named name with the detected MIME type
// satisfies the accept list. An empty list accepts everything.
func Accepts(accept []string, name string, detected *mimetype.MIME) bool {
	if len(accept) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, raw := range accept {
		entry := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case entry == "":
			continue
		case entry == "*" || entry == "*/*":
			return true
		case strings.HasPrefix(entry, "."):
			if ext == entry {
				return true
			}
		case strings.HasSuffix(entry, "/*"):
			prefix := strings.TrimSuffix(entry, "*")
			for m := detected; m != nil; m = m.Parent() {
				if strings.HasPrefix(baseType(m.String()), prefix) {
					return true
				}
			}
		default:
			for m := detected; m != nil; m = m.Parent() {
				if m.Is(entry) {
					return true
				}
			}
		}
	}
	return false
}

func baseType(value string) string {
	if mediaType, _, err := mime.ParseMediaType(value); err == nil {
		return mediaType
	}
	return value
}
