package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rohits-web03/lockbox/internal/filename"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is binary storage addressed by path.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
	List(ctx context.Context) ([]string, error)
}

// BlobGateway stores file content at the path derived from its name and
// hands out long-lived download links. It never touches the record store.
type BlobGateway struct {
	store BlobStore
	ttl   time.Duration
}

func NewBlobGateway(store BlobStore, signedURLTTL time.Duration) *BlobGateway {
	return &BlobGateway{store: store, ttl: signedURLTTL}
}

// Put uploads content, replacing any object at the same path, and returns
// a signed download URL.
func (g *BlobGateway) Put(ctx context.Context, name filename.Name, content io.Reader, size int64, contentType string) (string, error) {
	key := name.Path()
	if err := g.store.Put(ctx, key, content, size, contentType); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}

	url, err := g.store.SignedURL(ctx, key, g.ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return url, nil
}

// Exists reports whether content is stored at the path for name.
func (g *BlobGateway) Exists(ctx context.Context, name filename.Name) (bool, error) {
	key := name.Path()
	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", key, err)
	}
	return exists, nil
}

// Delete removes the object, or returns ErrBlobNotFound if there is none.
func (g *BlobGateway) Delete(ctx context.Context, name filename.Name) error {
	key := name.Path()
	exists, err := g.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("head %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("delete %s: %w", key, ErrBlobNotFound)
	}
	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns every stored path.
func (g *BlobGateway) List(ctx context.Context) ([]string, error) {
	keys, err := g.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	return keys, nil
}
