// Package fs provides a filesystem-backed object store implementation.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// Store is a filesystem-backed implementation of objectstore.Store.
// Objects are stored as files with the object key as the relative path;
// directories are listed as directory markers.
type Store struct {
	mu       sync.RWMutex
	basePath string
	closed   bool
}

// Config holds configuration for the filesystem object store.
type Config struct {
	// BasePath is the root directory holding the objects.
	BasePath string `mapstructure:"path" validate:"required" yaml:"path"`

	// CreateDir creates the base directory if it doesn't exist.
	CreateDir bool `mapstructure:"create_dir" yaml:"create_dir"`
}

// New creates a new filesystem object store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	abs, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, err
	}

	return &Store{basePath: abs}, nil
}

// objectPath returns the full filesystem path for an object key.
func (s *Store) objectPath(key string) (string, error) {
	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	if path != s.basePath && !strings.HasPrefix(path, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes base path", key)
	}
	return path, nil
}

// Put writes an object (used by tests and seeding tools).
func (s *Store) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// ListPage walks the tree below prefix and returns the entries sorting after token.
func (s *Store) ListPage(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.Page{}, objectstore.ErrStoreClosed
	}
	if limit <= 0 {
		limit = objectstore.DefaultPageSize
	}

	// Walk from the deepest directory fully named by the prefix.
	root := s.basePath
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		var err error
		if root, err = s.objectPath(prefix[:i]); err != nil {
			return objectstore.Page{}, err
		}
	}

	var found []objectstore.Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == s.basePath {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if d.IsDir() {
			key += "/"
		}
		if !strings.HasPrefix(key, prefix) || key <= token {
			return nil
		}
		if strings.HasSuffix(key, ".tmp") {
			return nil
		}

		if d.IsDir() {
			found = append(found, objectstore.Entry{Key: key, IsDirectoryMarker: true})
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		found = append(found, objectstore.Entry{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return objectstore.Page{}, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Key < found[j].Key })

	var page objectstore.Page
	if len(found) > limit {
		found = found[:limit]
		page.NextToken = found[len(found)-1].Key
	}
	page.Entries = found
	return page, nil
}

// Delete removes an object from the filesystem and prunes empty parents.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	path, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return objectstore.ErrObjectNotFound
		}
		return err
	}

	s.cleanEmptyDirs(filepath.Dir(path))
	return nil
}

// cleanEmptyDirs removes empty directories up to the base path.
func (s *Store) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// HealthCheck verifies the base directory is still reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("stat base path: %w", err)
	}
	if !info.IsDir() {
		return errors.New("base path is not a directory")
	}
	return nil
}

// Ensure Store implements objectstore.Store.
var _ objectstore.Store = (*Store)(nil)
