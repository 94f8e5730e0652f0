package services

import (
	"sort"
	"strings"
	"time"

	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
)

var _ driven.ConfigStore = (*mapConfigStore)(nil)

// mapConfigStore is a driven.ConfigStore over a flat map of dot keys.
type mapConfigStore struct {
	values map[string]any
}

func newMapConfigStore() *mapConfigStore {
	return &mapConfigStore{values: make(map[string]any)}
}

func (s *mapConfigStore) Set(key string, value any) { s.values[key] = value }

func (s *mapConfigStore) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *mapConfigStore) GetString(key string) string {
	str, _ := s.values[key].(string)
	return str
}

func (s *mapConfigStore) GetInt(key string) int {
	switch v := s.values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (s *mapConfigStore) GetDuration(key string) time.Duration {
	switch v := s.values[key].(type) {
	case string:
		d, _ := time.ParseDuration(v)
		return d
	case int:
		return time.Duration(v) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	default:
		return 0
	}
}

func (s *mapConfigStore) Tables(prefix string) []string {
	seen := make(map[string]bool)
	for key := range s.values {
		rest, ok := strings.CutPrefix(key, prefix+".")
		if !ok {
			continue
		}
		if name, _, nested := strings.Cut(rest, "."); nested {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *mapConfigStore) Load() error { return nil }

func (s *mapConfigStore) Path() string { return ":memory:" }
