// Package gcs provides a Google Cloud Storage backed object store,
// the layout used by Firebase Storage buckets.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// Config holds configuration for the GCS object store.
type Config struct {
	// Bucket is the bucket name, e.g. "my-app.appspot.com".
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`

	// CredentialsFile points at a service account key (optional, uses ADC if not set).
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`

	// Endpoint overrides the API endpoint, e.g. a storage emulator.
	// Authentication is disabled when set.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Store is a GCS-backed implementation of objectstore.Store.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle

	mu     sync.RWMutex
	closed bool
}

// New creates a new GCS object store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read GCS credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(data))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Store{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
	}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}
	return nil
}

// ListPage fetches one page of objects under prefix using the bucket's page token.
func (s *Store) ListPage(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error) {
	if err := s.checkOpen(); err != nil {
		return objectstore.Page{}, err
	}
	if limit <= 0 {
		limit = objectstore.DefaultPageSize
	}

	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name", "Size", "Updated"}); err != nil {
		return objectstore.Page{}, fmt.Errorf("gcs list: %w", err)
	}

	var attrs []*storage.ObjectAttrs
	pager := iterator.NewPager(s.bucket.Objects(ctx, query), limit, token)
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return objectstore.Page{}, fmt.Errorf("gcs list: %w", err)
	}

	page := objectstore.Page{
		Entries:   make([]objectstore.Entry, 0, len(attrs)),
		NextToken: next,
	}
	for _, a := range attrs {
		page.Entries = append(page.Entries, objectstore.Entry{
			Key:     a.Name,
			Size:    a.Size,
			ModTime: a.Updated,
		})
	}
	return page, nil
}

// Delete removes an object from the bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return objectstore.ErrObjectNotFound
		}
		return fmt.Errorf("gcs delete: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("gcs health check failed: %w", err)
	}
	return nil
}

// Ensure Store implements objectstore.Store.
var _ objectstore.Store = (*Store)(nil)
