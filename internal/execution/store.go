package execution

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrArtifactNotFound is returned when an artifact does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore is where handlers read and write task artifacts.
// Implementations must be safe for concurrent use.
type ArtifactStore interface {
	Read(path string) (string, error)
	Write(path, content string) error
	Delete(path string) error
	Exists(path string) bool
}

// MemoryStore keeps artifacts in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]string
}

// NewMemoryStore creates a store seeded with the given files.
func NewMemoryStore(seed map[string]string) *MemoryStore {
	files := make(map[string]string, len(seed))
	for k, v := range seed {
		files[k] = v
	}
	return &MemoryStore{files: files}
}

func (s *MemoryStore) Read(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	return content, nil
}

func (s *MemoryStore) Write(path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return nil
}

func (s *MemoryStore) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[path]; !ok {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	delete(s.files, path)
	return nil
}

func (s *MemoryStore) Exists(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[path]
	return ok
}

// Paths returns the stored paths in sorted order.
func (s *MemoryStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// DirStore keeps artifacts as files below a root directory.
// Paths are relative to the root and may not escape it.
type DirStore struct {
	root string
	mu   sync.Mutex
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) (*DirStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	return &DirStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *DirStore) Root() string {
	return s.root
}

func (s *DirStore) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact path %q escapes %s", path, s.root)
	}
	return full, nil
}

func (s *DirStore) Read(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func (s *DirStore) Write(path, content string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *DirStore) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *DirStore) Exists(path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}
