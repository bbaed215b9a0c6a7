package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of one wizard kind. Fields holds the shared
// rule library; each variant lists its steps and may override or add rules.
// A variant declares exactly the fields its steps reference.
type Document struct {
	Kind          string                 `json:"kind" yaml:"kind"`
	Title         string                 `json:"title" yaml:"title"`
	Discriminator string                 `json:"discriminator" yaml:"discriminator"`
	Default       string                 `json:"default" yaml:"default"`
	Endpoint      string                 `json:"endpoint" yaml:"endpoint"`
	Fields        map[string]FieldRule   `json:"fields" yaml:"fields"`
	Variants      map[string]VariantFile `json:"variants" yaml:"variants"`
}

// VariantFile is one discriminator value inside a Document.
type VariantFile struct {
	Title    string               `json:"title" yaml:"title"`
	Endpoint string               `json:"endpoint" yaml:"endpoint"`
	Steps    []StepDefinition     `json:"steps" yaml:"steps"`
	Fields   map[string]FieldRule `json:"fields" yaml:"fields"`
}

// ParseDocument decodes a JSON or YAML template document.
func ParseDocument(data []byte, source string) (Document, error) {
	var doc Document
	if len(strings.TrimSpace(string(data))) == 0 {
		return Document{}, fmt.Errorf("schema: file %s is empty", source)
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("schema: parse %s: %w", source, err)
	}
	return doc, nil
}

// Registry builds and validates the registry described by the document.
func (doc Document) Registry() (*Registry, error) {
	kind := strings.TrimSpace(doc.Kind)
	if kind == "" {
		return nil, errors.New("schema: document has no kind")
	}
	if strings.TrimSpace(doc.Discriminator) == "" {
		return nil, fmt.Errorf("schema: %s: document has no discriminator field", kind)
	}
	if len(doc.Variants) == 0 {
		return nil, fmt.Errorf("schema: %s: document has no variants", kind)
	}

	reg := NewRegistry(kind, doc.Discriminator, Discriminator(doc.Default))

	values := make([]string, 0, len(doc.Variants))
	for value := range doc.Variants {
		values = append(values, value)
	}
	sort.Strings(values)

	var errs []error
	for _, value := range values {
		def := doc.variantDefinition(value, doc.Variants[value])
		if err := reg.Register(def); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if _, ok := doc.Variants[doc.Default]; !ok {
		return nil, fmt.Errorf("schema: %s: default variant %q is not defined", kind, doc.Default)
	}
	return reg, nil
}

func (doc Document) variantDefinition(value string, variant VariantFile) WizardDefinition {
	def := WizardDefinition{
		Kind:               doc.Kind,
		Title:              firstNonEmpty(variant.Title, doc.Title),
		Discriminator:      Discriminator(value),
		DiscriminatorField: doc.Discriminator,
		Endpoint:           firstNonEmpty(variant.Endpoint, doc.Endpoint),
		Steps:              variant.Steps,
		Rules:              make(map[string]FieldRule),
	}
	for _, step := range variant.Steps {
		for _, name := range step.Fields {
			if rule, ok := variant.Fields[name]; ok {
				def.Rules[name] = rule
				continue
			}
			if rule, ok := doc.Fields[name]; ok {
				def.Rules[name] = rule
			}
		}
	}
	// Overrides nobody references stay declared so Check reports them.
	for name, rule := range variant.Fields {
		if _, ok := def.Rules[name]; !ok {
			def.Rules[name] = rule
		}
	}
	return def
}

// LoadFS walks fsys and builds a Catalog from every JSON/YAML document.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	catalog := &Catalog{registries: make(map[string]*Registry)}
	if fsys == nil {
		return catalog, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isTemplateFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		doc, err := ParseDocument(data, path)
		if err != nil {
			return err
		}
		reg, err := doc.Registry()
		if err != nil {
			return fmt.Errorf("schema: %s: %w", path, err)
		}
		if err := catalog.Add(reg); err != nil {
			return fmt.Errorf("schema: %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func isTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
