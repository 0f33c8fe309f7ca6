// Package repository is the database access layer.
//
// Each concern has an interface file (xxx_repository.go) and a SQLite
// implementation (sqlite_xxx.go). Services depend on the interfaces only;
// constructors take a database.TxQuerier so the same repository works on
// the pool and inside database.WithTx.
package repository

import (
	"context"

	"github.com/khakishop/server/models"
)

// ImageRepository stores image records.
//
// A bucket is a (category, subcategory) pair; display_order is the position
// inside a bucket.
type ImageRepository interface {
	// Create inserts img with the id already set by the caller.
	// A duplicate id or storage key returns pkg.ErrAlreadyExists.
	Create(ctx context.Context, img *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	// List returns every image of a category ("" = all categories), ordered
	// by bucket then display_order.
	List(ctx context.Context, category string) ([]models.Image, error)
	// ListBucket returns the images of one bucket in display order.
	ListBucket(ctx context.Context, category, subcategory string) ([]models.Image, error)
	// Update writes the editable fields and bumps updated_at.
	Update(ctx context.Context, img *models.Image) error
	SetProtected(ctx context.Context, id string, protected bool) error
	Delete(ctx context.Context, id string) error
	// MaxOrder returns the highest display_order of a bucket, -1 if empty.
	MaxOrder(ctx context.Context, category, subcategory string) (int, error)
	// UpdateOrders writes every position. Run it inside WithTx so a
	// failure leaves the previous order intact.
	UpdateOrders(ctx context.Context, positions []models.ImagePosition) error
	CountByBucket(ctx context.Context) ([]models.BucketCount, error)
	// ListStorageKeys returns storage_key → image id for every row.
	ListStorageKeys(ctx context.Context) (map[string]string, error)
	// DuplicateOrderSlots returns the buckets holding two or more images with
	// the same display_order.
	DuplicateOrderSlots(ctx context.Context) ([]models.OrderSlot, error)
}
