package memory

import (
	"sync"

	"github.com/custodia-labs/strata-cli/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore holds settings keys such as "loop.max_iterations" in a map.
// The CLI tests and the settings service tests run against it in place of
// the TOML file store; nothing is ever written to disk.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{values: make(map[string]any)}
}

// Get returns the raw value stored under key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

// lookup returns the value under key when it holds a T.
func lookup[T any](s *ConfigStore, key string) T {
	val, _ := s.Get(key)
	typed, _ := val.(T)
	return typed
}

// GetString returns the provider name, model or key stored under key, or
// "" when it is absent or not text.
func (s *ConfigStore) GetString(key string) string {
	return lookup[string](s, key)
}

// GetBool reports a flag such as "loop.deep_research".
func (s *ConfigStore) GetBool(key string) bool {
	return lookup[bool](s, key)
}

// GetInt truncates any stored number. Settings saved from flags arrive as
// int, and values decoded from TOML or JSON as int64 or float64.
func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// GetFloat widens any stored number, so thresholds and per-1K rates can be
// written as whole numbers.
func (s *ConfigStore) GetFloat(key string) float64 {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Set replaces the value under key.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save is a no-op; values live as long as the store.
func (s *ConfigStore) Save() error { return nil }

// Load is a no-op; there is no backing file to reread.
func (s *ConfigStore) Load() error { return nil }

// Path reports ":memory:" in place of a file location.
func (s *ConfigStore) Path() string { return ":memory:" }
