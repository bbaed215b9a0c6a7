package schema

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formwizard/pkg/failure"
)

// Registry maps discriminator values to wizard definitions for one wizard
// kind. A Registry is safe for concurrent use.
type Registry struct {
	kind     string
	field    string
	fallback Discriminator

	mu        sync.RWMutex
	templates map[Discriminator]WizardDefinition
}

// NewRegistry creates an empty registry for kind. field names the
// discriminator field and fallback the definition used when a lookup misses.
func NewRegistry(kind, field string, fallback Discriminator) *Registry {
	return &Registry{
		kind:      strings.TrimSpace(kind),
		field:     strings.TrimSpace(field),
		fallback:  fallback,
		templates: make(map[Discriminator]WizardDefinition),
	}
}

// Kind returns the wizard kind, e.g. "registration".
func (r *Registry) Kind() string { return r.kind }

// DiscriminatorField names the field whose value selects a definition.
func (r *Registry) DiscriminatorField() string { return r.field }

// Default returns the fallback discriminator.
func (r *Registry) Default() Discriminator { return r.fallback }

// Register validates def and stores it under def.Discriminator. Kind and
// DiscriminatorField are filled from the registry when empty.
func (r *Registry) Register(def WizardDefinition) error {
	def = def.Clone()
	if def.Kind == "" {
		def.Kind = r.kind
	}
	if def.DiscriminatorField == "" {
		def.DiscriminatorField = r.field
	}
	if def.Kind != r.kind {
		return fmt.Errorf("schema: definition kind %q does not match registry %q", def.Kind, r.kind)
	}
	if def.DiscriminatorField != r.field {
		return fmt.Errorf("schema: discriminator field %q does not match registry %q", def.DiscriminatorField, r.field)
	}
	if strings.TrimSpace(string(def.Discriminator)) == "" {
		return fmt.Errorf("schema: %s: discriminator value is empty", r.kind)
	}
	for name, rule := range def.Rules {
		rule.Name = name
		def.Rules[name] = rule
	}
	if err := Check(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.templates[def.Discriminator]; exists {
		return fmt.Errorf("schema: %s: duplicate discriminator %q", r.kind, def.Discriminator)
	}
	r.templates[def.Discriminator] = def
	return nil
}

// Resolve returns a copy of the definition registered for value. A miss
// yields a *failure.Error of kind KindUnknownDiscriminator.
func (r *Registry) Resolve(value Discriminator) (WizardDefinition, error) {
	r.mu.RLock()
	def, ok := r.templates[value]
	r.mu.RUnlock()
	if !ok {
		err := failure.New(failure.KindUnknownDiscriminator,
			fmt.Sprintf("no %s definition for %s=%q", r.kind, r.field, value))
		return WizardDefinition{}, err
	}
	return def.Clone(), nil
}

// ResolveOrDefault resolves value and falls back to the registry default on
// a miss. fellBack reports whether the fallback was used.
func (r *Registry) ResolveOrDefault(value Discriminator) (def WizardDefinition, fellBack bool, err error) {
	def, err = r.Resolve(value)
	if err == nil {
		return def, false, nil
	}
	def, fbErr := r.Resolve(r.fallback)
	if fbErr != nil {
		return WizardDefinition{}, false, fmt.Errorf("schema: %s: default %q is not registered: %w", r.kind, r.fallback, err)
	}
	return def, true, nil
}

// Discriminators lists the registered values in sorted order.
func (r *Registry) Discriminators() []Discriminator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Discriminator, 0, len(r.templates))
	for value := range r.templates {
		out = append(out, value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Catalog groups registries by wizard kind.
type Catalog struct {
	registries map[string]*Registry
}

// NewCatalog builds a catalog from registries. Duplicate kinds are rejected.
func NewCatalog(registries ...*Registry) (*Catalog, error) {
	c := &Catalog{registries: make(map[string]*Registry, len(registries))}
	for _, reg := range registries {
		if err := c.Add(reg); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add inserts reg into the catalog.
func (c *Catalog) Add(reg *Registry) error {
	if reg == nil {
		return fmt.Errorf("schema: nil registry")
	}
	if _, exists := c.registries[reg.kind]; exists {
		return fmt.Errorf("schema: duplicate wizard kind %q", reg.kind)
	}
	c.registries[reg.kind] = reg
	return nil
}

// Registry returns the registry for kind.
func (c *Catalog) Registry(kind string) (*Registry, bool) {
	if c == nil {
		return nil, false
	}
	reg, ok := c.registries[kind]
	return reg, ok
}

// Kinds lists the wizard kinds in sorted order.
func (c *Catalog) Kinds() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.registries))
	for kind := range c.registries {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
