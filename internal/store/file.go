package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
)

// namespacePattern keeps namespace names filesystem-safe.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// FileProvider persists each namespace as a JSON file under a data directory.
type FileProvider struct {
	dir string

	mu     sync.Mutex
	stores map[string]*fileStore
}

// NewFileProvider creates a provider rooted at dir.
func NewFileProvider(dir string) (*FileProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &FileProvider{
		dir:    dir,
		stores: make(map[string]*fileStore),
	}, nil
}

// Namespace returns the store for ns, creating it on first use. Invalid
// namespace names fall back to an in-memory store so a misbehaving plugin
// cannot escape the data directory.
func (p *FileProvider) Namespace(ns string) Store {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.stores[ns]; ok {
		return s
	}

	s := &fileStore{values: make(map[string]any)}
	if namespacePattern.MatchString(ns) {
		s.path = filepath.Join(p.dir, ns+".json")
		s.load()
	}
	p.stores[ns] = s
	return s
}

type fileStore struct {
	path string // empty means memory-only

	mu     sync.RWMutex
	values map[string]any
}

func (s *fileStore) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

func (s *fileStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flush()
}

func (s *fileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flush()
}

func (s *fileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// load reads the namespace file; a missing or corrupt file yields an empty
// store rather than an error.
func (s *fileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var values map[string]any
	if err := sonic.Unmarshal(data, &values); err != nil {
		return
	}
	s.values = values
}

// flush writes the namespace file. Callers hold the write lock.
func (s *fileStore) flush() error {
	if s.path == "" {
		return nil
	}
	data, err := sonic.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return nil
}

// Memory returns a store that never touches disk. Useful in tests.
func Memory() Store {
	return &fileStore{values: make(map[string]any)}
}
