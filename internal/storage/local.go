// Package storage keeps attachment payloads for inventory objects.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/atvirokodosprendimai/inventory/internal/domain"
	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mandelsoft/vfs/pkg/projectionfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
)

// FileStore stores blobs as files below the root of a virtual filesystem.
type FileStore struct {
	lock sync.Mutex
	fs   vfs.FileSystem
}

var _ domain.BlobStore = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir on the host filesystem.
func NewFileStore(dir string) (*FileStore, error) {
	if err := osfs.OsFs.MkdirAll(dir, 0o700); err != nil && !errors.Is(err, vfs.ErrExist) {
		return nil, err
	}
	fs, err := projectionfs.New(osfs.OsFs, dir)
	if err != nil {
		return nil, fmt.Errorf("project attachment directory %s: %w", dir, err)
	}
	return NewFileStoreOn(fs), nil
}

// NewFileStoreOn uses fs as is; tests pass an in-memory filesystem.
func NewFileStoreOn(fs vfs.FileSystem) *FileStore {
	return &FileStore{fs: fs}
}

func (s *FileStore) Put(_ context.Context, key string, data []byte, _ string) error {
	p, err := cleanKey(key)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.fs.MkdirAll(path.Dir(p), 0o700); err != nil && !errors.Is(err, vfs.ErrExist) {
		return err
	}
	return vfs.WriteFile(s.fs, p, data, 0o600)
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	data, err := vfs.ReadFile(s.fs, p)
	if errors.Is(err, vfs.ErrNotExist) {
		return nil, domain.NotFoundf("blob %s not found", key)
	}
	return data, err
}

// Delete is idempotent.
func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := cleanKey(key)
	if err != nil {
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, vfs.ErrNotExist) {
		return err
	}
	return nil
}

func cleanKey(key string) (string, error) {
	p := path.Clean("/" + strings.TrimSpace(key))
	if p == "/" || strings.Contains(key, "..") {
		return "", domain.InvalidArgumentf("invalid storage key %q", key)
	}
	return p, nil
}
