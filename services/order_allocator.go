package services

import (
	"context"
	"sync"

	"github.com/khakishop/server/repository"
)

// OrderAllocator hands out the next display_order of a bucket.
//
// Upload and move-to-bucket both append to the end of a bucket; the lock
// keeps two of them in this process from reading the same max. Reorder
// holds the same lock so no append lands inside its transaction.
type OrderAllocator struct {
	mu   sync.Mutex
	repo repository.ImageRepository
}

// NewOrderAllocator is the constructor. One allocator is shared by every
// service that appends images.
func NewOrderAllocator(repo repository.ImageRepository) *OrderAllocator {
	return &OrderAllocator{repo: repo}
}

// Append calls write with max(display_order)+1 of the bucket while holding
// the allocator lock. write must persist the row before returning.
func (a *OrderAllocator) Append(ctx context.Context, category, subcategory string, write func(order int) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	maxOrder, err := a.repo.MaxOrder(ctx, category, subcategory)
	if err != nil {
		return err
	}
	return write(maxOrder + 1)
}

// Hold runs fn with the allocator lock held.
func (a *OrderAllocator) Hold(fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return fn()
}
