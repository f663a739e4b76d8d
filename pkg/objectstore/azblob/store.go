// Package azblob provides an Azure Blob Storage backed object store.
package azblob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/marmos91/blobsweep/pkg/objectstore"
)

// folderMetadataKey marks hierarchical-namespace folders in ADLS Gen2 accounts.
const folderMetadataKey = "hdi_isfolder"

// Config holds configuration for the Azure Blob object store.
type Config struct {
	// Container is the blob container name.
	Container string `mapstructure:"container" validate:"required" yaml:"container"`

	// AccountName is the storage account name.
	AccountName string `mapstructure:"account_name" validate:"required" yaml:"account_name"`

	// AccountKey is the storage account key (optional, uses DefaultAzureCredential if not set).
	AccountKey string `mapstructure:"account_key" yaml:"account_key"`

	// ServiceURL overrides https://<account>.blob.core.windows.net, e.g. for Azurite.
	ServiceURL string `mapstructure:"service_url" yaml:"service_url"`
}

// Store is an Azure Blob Storage implementation of objectstore.Store.
type Store struct {
	client    *azblob.Client
	container string

	mu     sync.RWMutex
	closed bool
}

// New creates a new Azure Blob object store.
func New(cfg Config) (*Store, error) {
	if cfg.Container == "" {
		return nil, errors.New("container is required")
	}
	if cfg.AccountName == "" {
		return nil, errors.New("account name is required")
	}

	serviceURL := cfg.ServiceURL
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}

	var client *azblob.Client
	var err error

	if cfg.AccountKey != "" {
		cred, credErr := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &Store{client: client, container: cfg.Container}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}
	return nil
}

// ListPage fetches one flat listing segment. The token is the Azure marker.
func (s *Store) ListPage(ctx context.Context, prefix, token string, limit int) (objectstore.Page, error) {
	if err := s.checkOpen(); err != nil {
		return objectstore.Page{}, err
	}
	if limit <= 0 || limit > objectstore.DefaultPageSize {
		limit = objectstore.DefaultPageSize
	}

	opts := &azblob.ListBlobsFlatOptions{
		Prefix:     &prefix,
		MaxResults: int32Ptr(int32(limit)),
		Include:    container.ListBlobsInclude{Metadata: true},
	}
	if token != "" {
		opts.Marker = &token
	}

	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return objectstore.Page{}, fmt.Errorf("azure list: %w", err)
	}

	var page objectstore.Page
	if resp.Segment != nil {
		page.Entries = make([]objectstore.Entry, 0, len(resp.Segment.BlobItems))
		for _, item := range resp.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			e := objectstore.Entry{Key: *item.Name}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					e.Size = *p.ContentLength
				}
				if p.LastModified != nil {
					e.ModTime = *p.LastModified
				}
			}
			if v, ok := item.Metadata[folderMetadataKey]; ok && v != nil && strings.EqualFold(*v, "true") {
				e.IsDirectoryMarker = true
			}
			page.Entries = append(page.Entries, e)
		}
	}
	if resp.NextMarker != nil {
		page.NextToken = *resp.NextMarker
	}
	return page, nil
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil {
		if isBlobNotFound(err) {
			return objectstore.ErrObjectNotFound
		}
		return fmt.Errorf("azure delete: %w", err)
	}
	return nil
}

// isBlobNotFound reports whether err means the blob is already gone. A
// missing container is not treated as a missing blob.
func isBlobNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return true
	}
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) &&
		respErr.StatusCode == http.StatusNotFound &&
		respErr.ErrorCode != string(bloberror.ContainerNotFound)
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// HealthCheck verifies the container is accessible by listing a single blob.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		MaxResults: int32Ptr(1),
	})
	if pager.More() {
		if _, err := pager.NextPage(ctx); err != nil {
			return fmt.Errorf("azure health check failed: %w", err)
		}
	}
	return nil
}

func int32Ptr(v int32) *int32 { return &v }

// Ensure Store implements objectstore.Store.
var _ objectstore.Store = (*Store)(nil)
