// Package blob loads document images by reference.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"

	"ekyc/pkg/platform/sentinel"
)

// ErrInvalidReference is returned for references that are empty or escape
// the store root.
var ErrInvalidReference = errors.New("invalid image reference")

// cleanRef rejects empty, absolute and parent-relative references.
func cleanRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidReference
	}
	cleaned := path.Clean(strings.ReplaceAll(ref, "\\", "/"))
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidReference
	}
	return cleaned, nil
}

// FileStore reads images from a directory.
type FileStore struct {
	root    *os.Root
	maxSize int64
}

// NewFileStore opens dir. Images larger than maxSize bytes are refused; zero
// means no limit.
func NewFileStore(dir string, maxSize int64) (*FileStore, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open blob root %s: %w", dir, err)
	}
	return &FileStore{root: root, maxSize: maxSize}, nil
}

// Get reads the image at ref, relative to the store root.
func (s *FileStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := cleanRef(ref)
	if err != nil {
		return nil, err
	}

	f, err := s.root.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("image %s: %w", name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat image %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("image %s: %w", name, sentinel.ErrNotFound)
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return nil, fmt.Errorf("image %s is %d bytes, limit %d: %w", name, info.Size(), s.maxSize, sentinel.ErrTooLarge)
	}
	return io.ReadAll(f)
}

// Close releases the root directory handle.
func (s *FileStore) Close() error {
	return s.root.Close()
}

// MemoryStore holds images in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[string][]byte)}
}

// Put stores a copy of image under ref.
func (s *MemoryStore) Put(ref string, image []byte) error {
	name, err := cleanRef(ref)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[name] = append([]byte(nil), image...)
	return nil
}

// Get returns a copy of the image stored under ref.
func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	name, err := cleanRef(ref)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	image, ok := s.images[name]
	if !ok {
		return nil, fmt.Errorf("image %s: %w", name, sentinel.ErrNotFound)
	}
	return append([]byte(nil), image...), nil
}
