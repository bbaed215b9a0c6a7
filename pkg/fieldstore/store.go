// Package fieldstore holds the current values of a wizard and which fields
// the user has touched. It carries no validation logic.
package fieldstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUndeclaredField is returned when writing a name the current schema does
// not declare.
var ErrUndeclaredField = errors.New("fieldstore: undeclared field")

// Store is the single owner of a wizard's field values. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	declared map[string]struct{}
	defaults map[string]any
	values   map[string]any
	touched  map[string]struct{}
}

// New creates a store declaring fields and seeded with defaults.
func New(fields []string, defaults map[string]any) *Store {
	s := &Store{}
	s.declare(fields, defaults)
	s.values = cloneValues(s.defaults)
	s.touched = make(map[string]struct{})
	return s
}

func (s *Store) declare(fields []string, defaults map[string]any) {
	s.declared = make(map[string]struct{}, len(fields))
	for _, name := range fields {
		s.declared[name] = struct{}{}
	}
	s.defaults = make(map[string]any, len(defaults))
	for name, value := range defaults {
		if _, ok := s.declared[name]; ok {
			s.defaults[name] = deepCopy(value)
		}
	}
}

// Set stores value under name and marks it touched.
func (s *Store) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declared[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUndeclaredField, name)
	}
	s.values[name] = deepCopy(value)
	s.touched[name] = struct{}{}
	return nil
}

// Update applies fn to the current value of name atomically and stores the
// result. The field is marked touched.
func (s *Store) Update(name string, fn func(current any, ok bool) any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.declared[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUndeclaredField, name)
	}
	current, ok := s.values[name]
	s.values[name] = fn(current, ok)
	s.touched[name] = struct{}{}
	return nil
}

// Unset removes the value of name without touching it.
func (s *Store) Unset(name string) {
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
}

// Get returns the value stored under name, including values orphaned by a
// schema change.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[name]
	return deepCopy(value), ok
}

// Declared reports whether name belongs to the current schema.
func (s *Store) Declared(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.declared[name]
	return ok
}

// Touched reports whether the user has written name since the last reset.
func (s *Store) Touched(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.touched[name]
	return ok
}

// TouchedFields lists the touched names in sorted order.
func (s *Store) TouchedFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.touched)
}

// Reset restores the declared defaults and clears touched state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = cloneValues(s.defaults)
	s.touched = make(map[string]struct{})
}

// Redeclare switches the store to a new field set. Values of names the new
// set no longer declares are kept; list them with Orphans and drop them with
// Prune. Defaults of newly declared names are applied when unset.
func (s *Store) Redeclare(fields []string, defaults map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declare(fields, defaults)
	for name, value := range s.defaults {
		if _, ok := s.values[name]; !ok {
			s.values[name] = deepCopy(value)
		}
	}
}

// Orphans lists stored names the current schema does not declare.
func (s *Store) Orphans() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name := range s.values {
		if _, ok := s.declared[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Prune deletes the values and touched state of names and returns the names
// that held a value.
func (s *Store) Prune(names ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for _, name := range names {
		if _, ok := s.values[name]; ok {
			removed = append(removed, name)
		}
		delete(s.values, name)
		delete(s.touched, name)
	}
	sort.Strings(removed)
	return removed
}

// Snapshot returns an immutable copy of the current values.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{values: cloneValues(s.values)}
}

// Snapshot is a point-in-time copy of the store values.
type Snapshot struct {
	values map[string]any
}

// Get returns the value captured for name.
func (s Snapshot) Get(name string) (any, bool) {
	value, ok := s.values[name]
	return deepCopy(value), ok
}

// Len returns the number of captured values.
func (s Snapshot) Len() int { return len(s.values) }

// Names lists the captured names in sorted order.
func (s Snapshot) Names() []string { return sortedKeys(s.values) }

// Map returns a deep copy of the captured values.
func (s Snapshot) Map() map[string]any { return cloneValues(s.values) }

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func cloneValues(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	default:
		return typed
	}
}
