package repository

import (
	"context"

	"github.com/khakishop/server/models"
)

// ProductRepository stores storefront products.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id string) (*models.Product, error)
	// GetBySlug returns a product of a category by slug, published or not.
	GetBySlug(ctx context.Context, category, slug string) (*models.Product, error)
	// ListByCategory returns the products of a category with their cover image
	// URL filled in; publishedOnly hides drafts.
	ListByCategory(ctx context.Context, category string, publishedOnly bool) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
}
