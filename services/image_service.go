package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/khakishop/server/database"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/browse"
	"github.com/khakishop/server/pkg/ordering"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/ws"
)

// ImageService manages the image catalog after upload: browsing, editing,
// protection, deletion and drag-and-drop reorder.
type ImageService interface {
	List(ctx context.Context, q browse.Query) (*browse.Page, error)
	Get(ctx context.Context, id string) (*models.Image, error)
	Update(ctx context.Context, id string, req *models.UpdateImageRequest) (*models.Image, error)
	SetProtection(ctx context.Context, id string, req *models.SetProtectionRequest) (*models.Image, error)
	Delete(ctx context.Context, id string) error
	// Reorder writes a new order for a whole bucket in one transaction and
	// returns the bucket in that order.
	Reorder(ctx context.Context, req *models.ReorderImagesRequest) ([]models.Image, error)
}

type imageService struct {
	db        *sql.DB
	imageRepo repository.ImageRepository
	store     storage.Store
	orders    *OrderAllocator
	hub       ws.EventPublisher
	listings  *ProductCache
}

// NewImageService is the constructor.
//
// db is needed for the reorder transaction: Reorder builds a tx-bound
// repository inside database.WithTx. listings is the product listing cache,
// dropped whenever an image a product may use as its cover changes; nil when
// there is none.
func NewImageService(
	db *sql.DB,
	imageRepo repository.ImageRepository,
	store storage.Store,
	orders *OrderAllocator,
	hub ws.EventPublisher,
	listings *ProductCache,
) ImageService {
	return &imageService{
		db:        db,
		imageRepo: imageRepo,
		store:     store,
		orders:    orders,
		hub:       hub,
		listings:  listings,
	}
}

// dropListings clears every cached product listing. A cover image can back
// a product of any category, so the whole cache goes.
func (s *imageService) dropListings() {
	if s.listings != nil {
		s.listings.Clear()
	}
}

// List loads one category (or all) and applies the browser query in memory.
func (s *imageService) List(ctx context.Context, q browse.Query) (*browse.Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	if q.Category != "" {
		if err := models.ValidateCategory(q.Category, q.Subcategory); err != nil {
			return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
		}
	}

	images, err := s.imageRepo.List(ctx, q.Category)
	if err != nil {
		return nil, err
	}

	page := browse.Apply(images, q)
	return &page, nil
}

func (s *imageService) Get(ctx context.Context, id string) (*models.Image, error) {
	return s.imageRepo.GetByID(ctx, id)
}

func (s *imageService) Update(ctx context.Context, id string, req *models.UpdateImageRequest) (*models.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if img.IsProtected {
		return nil, fmt.Errorf("%w: image is protected", pkg.ErrForbidden)
	}

	category, subcategory := img.Category, img.Subcategory
	if req.Category != nil {
		category = *req.Category
		subcategory = ""
	}
	if req.Subcategory != nil {
		subcategory = *req.Subcategory
	}
	if err := models.ValidateCategory(category, subcategory); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	if req.Tags != nil {
		img.Tags = *req.Tags
	}
	if req.Keywords != nil {
		img.Keywords = *req.Keywords
	}
	if req.Metadata != nil {
		img.Metadata = req.Metadata
		if *img.Metadata == (models.ImageMetadata{}) {
			img.Metadata = nil
		}
	}

	moved := category != img.Category || subcategory != img.Subcategory
	if moved {
		from := img.Category + "/" + img.Subcategory
		err = s.orders.Append(ctx, category, subcategory, func(order int) error {
			img.Category, img.Subcategory, img.DisplayOrder = category, subcategory, order
			return s.imageRepo.Update(ctx, img)
		})
		if err == nil {
			log.Printf("[image] moved %s from %s to %s/%s at order %d", img.ID, from, category, subcategory, img.DisplayOrder)
		}
	} else {
		err = s.imageRepo.Update(ctx, img)
	}
	if err != nil {
		return nil, err
	}
	if moved {
		s.dropListings()
	}

	s.hub.BroadcastToAll(ws.Event{Op: ws.OpImageUpdate, Data: img})
	return img, nil
}

// SetProtection is allowed whatever the current flag is; it is the only way
// to unlock a protected image.
func (s *imageService) SetProtection(ctx context.Context, id string, req *models.SetProtectionRequest) (*models.Image, error) {
	if err := s.imageRepo.SetProtected(ctx, id, req.IsProtected); err != nil {
		return nil, err
	}

	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToAll(ws.Event{Op: ws.OpImageUpdate, Data: img})
	return img, nil
}

// Delete removes the row first, then the stored object. A failed object
// delete is logged; the maintenance diagnose command reports the orphan.
func (s *imageService) Delete(ctx context.Context, id string) error {
	img, err := s.imageRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if img.IsProtected {
		return fmt.Errorf("%w: image is protected", pkg.ErrForbidden)
	}

	if err := s.imageRepo.Delete(ctx, id); err != nil {
		return err
	}
	// Products using it as a cover were set to no cover by the foreign key.
	s.dropListings()

	if err := s.store.Delete(ctx, img.StorageKey); err != nil {
		log.Printf("[image] row %s deleted but object %s was not: %v", img.ID, img.StorageKey, err)
	}

	s.hub.BroadcastToAll(ws.Event{
		Op:   ws.OpImageDelete,
		Data: ws.ImageDeleteData{ID: img.ID, Category: img.Category, Subcategory: img.Subcategory},
	})
	return nil
}

func (s *imageService) Reorder(ctx context.Context, req *models.ReorderImagesRequest) ([]models.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	var reordered []models.Image
	err := s.orders.Hold(func() error {
		var err error
		reordered, err = s.reorderTx(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[image] reordered %d images in %s/%s", len(reordered), req.Category, req.Subcategory)

	s.hub.BroadcastToAll(ws.Event{
		Op: ws.OpImageReorder,
		Data: ws.ImageReorderData{
			Category:    req.Category,
			Subcategory: req.Subcategory,
			Images:      reordered,
		},
	})
	return reordered, nil
}

// reorderTx must be called with the allocator held.
func (s *imageService) reorderTx(ctx context.Context, req *models.ReorderImagesRequest) ([]models.Image, error) {
	var reordered []models.Image
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := repository.NewSQLiteImageRepo(tx)

		current, err := repo.ListBucket(ctx, req.Category, req.Subcategory)
		if err != nil {
			return err
		}

		byID := make(map[string]models.Image, len(current))
		for _, img := range current {
			byID[img.ID] = img
		}
		if len(req.IDs) != len(current) {
			return fmt.Errorf("%w: expected %d ids for %s/%s, got %d",
				pkg.ErrBadRequest, len(current), req.Category, req.Subcategory, len(req.IDs))
		}

		ordered := make([]models.Image, 0, len(req.IDs))
		for _, id := range req.IDs {
			img, ok := byID[id]
			if !ok {
				return fmt.Errorf("%w: image %s is not in %s/%s", pkg.ErrBadRequest, id, req.Category, req.Subcategory)
			}
			ordered = append(ordered, img)
		}

		ordered = ordering.Resequence(ordered, func(img models.Image, order int) models.Image {
			img.DisplayOrder = order
			return img
		})

		positions := make([]models.ImagePosition, len(ordered))
		for i, img := range ordered {
			positions[i] = models.ImagePosition{ID: img.ID, DisplayOrder: img.DisplayOrder}
		}
		if err := repo.UpdateOrders(ctx, positions); err != nil {
			return err
		}

		reordered, err = repo.ListBucket(ctx, req.Category, req.Subcategory)
		return err
	})
	return reordered, err
}

