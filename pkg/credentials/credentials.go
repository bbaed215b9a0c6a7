package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoCredential is returned when no token is stored.
var ErrNoCredential = errors.New("credentials: no credential")

// Provider yields the bearer token for a request and discards it once the
// server rejects it.
type Provider interface {
	Token(ctx context.Context) (string, error)
	Purge(ctx context.Context) error
}

// Store is a persisted key-value store.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// DefaultKey is the store key holding the access token.
const DefaultKey = "access_token"

// KeyProvider reads the token stored under Key.
type KeyProvider struct {
	Store Store
	Key   string
}

// NewKeyProvider binds key of store. An empty key uses DefaultKey.
func NewKeyProvider(store Store, key string) KeyProvider {
	if strings.TrimSpace(key) == "" {
		key = DefaultKey
	}
	return KeyProvider{Store: store, Key: key}
}

// Token implements Provider. Blank tokens count as missing.
func (p KeyProvider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Store == nil {
		return "", ErrNoCredential
	}
	token, ok, err := p.Store.Get(p.key())
	if err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Purge implements Provider.
func (p KeyProvider) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Store == nil {
		return nil
	}
	return p.Store.Delete(p.key())
}

func (p KeyProvider) key() string {
	if p.Key == "" {
		return DefaultKey
	}
	return p.Key
}

// Static is a fixed token, handy for tests and one-off CLI runs.
type Static string

// Token implements Provider.
func (s Static) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// Purge implements Provider. A static token cannot be forgotten.
func (Static) Purge(context.Context) error { return nil }

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns a store seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

var (
	_ Provider = KeyProvider{}
	_ Provider = Static("")
	_ Store    = (*MemoryStore)(nil)
	_ Store    = (*FileStore)(nil)
)
