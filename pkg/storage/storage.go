// Package storage keeps the image binaries.
//
// Two drivers implement Store: LocalStore writes under UPLOAD_DIR and is
// served by the server at /api/uploads/<key>; MinioStore puts objects in an
// S3-compatible bucket. The database only holds the key and the public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/khakishop/server/config"
)

// ErrObjectNotFound is returned by Open when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Store is a flat key/value store for image binaries.
// Keys are single path segments (see ValidKey).
type Store interface {
	// Put writes r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// List returns every key in the store.
	List(ctx context.Context) ([]string, error)
	// URL returns the public URL the storefront loads key from.
	URL(key string) string
	// Check verifies the store is reachable and writable.
	Check(ctx context.Context) error
	// Driver names the backend ("local" or "minio").
	Driver() string
}

// ValidKey rejects keys that could escape the store root.
func ValidKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("storage key is empty")
	case strings.ContainsAny(key, `/\`):
		return fmt.Errorf("storage key %q must not contain path separators", key)
	case strings.HasPrefix(key, "."):
		return fmt.Errorf("storage key %q must not start with a dot", key)
	}
	return nil
}

// New builds the Store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, uploadDir string) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(uploadDir, "/api/uploads")
	case "minio":
		return NewMinioStore(ctx, MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
