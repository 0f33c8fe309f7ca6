package services

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/cache"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/ws"
)

// ProductCache holds the public product listings keyed by category.
type ProductCache = cache.TTLCache[string, []models.Product]

// ProductService serves the storefront product pages and their admin
// editing.
type ProductService interface {
	// ListPublished is the public listing of a category; it is cached.
	ListPublished(ctx context.Context, category string) ([]models.Product, error)
	GetPublished(ctx context.Context, category, slug string) (*models.Product, error)
	// ListAll includes drafts and is never cached.
	ListAll(ctx context.Context, category string) ([]models.Product, error)
	Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error)
	Update(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, error)
	Delete(ctx context.Context, id string) error
}

type productService struct {
	productRepo repository.ProductRepository
	hub         ws.EventPublisher
	listings    *ProductCache
	markdown    goldmark.Markdown
}

// NewProductService is the constructor. listings is owned by the caller,
// which closes it on shutdown.
func NewProductService(
	productRepo repository.ProductRepository,
	hub ws.EventPublisher,
	listings *ProductCache,
) ProductService {
	return &productService{
		productRepo: productRepo,
		hub:         hub,
		listings:    listings,
		// Raw HTML in descriptions is dropped (goldmark default).
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (s *productService) ListPublished(ctx context.Context, category string) ([]models.Product, error) {
	if err := models.ValidateCategory(category, ""); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrNotFound, err.Error())
	}

	return s.listings.GetOrLoad(category, func() ([]models.Product, error) {
		products, err := s.productRepo.ListByCategory(ctx, category, true)
		if err != nil {
			return nil, err
		}
		for i := range products {
			s.render(&products[i])
		}
		return products, nil
	})
}

func (s *productService) GetPublished(ctx context.Context, category, slug string) (*models.Product, error) {
	product, err := s.productRepo.GetBySlug(ctx, category, slug)
	if err != nil {
		return nil, err
	}
	if !product.IsPublished {
		return nil, pkg.ErrNotFound
	}

	s.render(product)
	return product, nil
}

func (s *productService) ListAll(ctx context.Context, category string) ([]models.Product, error) {
	if err := models.ValidateCategory(category, ""); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	products, err := s.productRepo.ListByCategory(ctx, category, false)
	if err != nil {
		return nil, err
	}
	for i := range products {
		s.render(&products[i])
	}
	return products, nil
}

func (s *productService) Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	product := &models.Product{
		Slug:         req.Slug,
		Category:     req.Category,
		Name:         req.Name,
		Price:        req.Price,
		Description:  req.Description,
		CoverImageID: req.CoverImageID,
		IsPublished:  req.IsPublished,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	// Re-read for the cover URL.
	created, err := s.productRepo.GetByID(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	s.render(created)

	s.changed(ws.ProductCreated, created, created.Category)
	return created, nil
}

func (s *productService) Update(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCategory := product.Category

	if req.Slug != nil {
		product.Slug = *req.Slug
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.CoverImageID != nil {
		if *req.CoverImageID == "" {
			product.CoverImageID = nil
		} else {
			product.CoverImageID = req.CoverImageID
		}
	}
	if req.IsPublished != nil {
		product.IsPublished = *req.IsPublished
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	updated, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.render(updated)

	s.changed(ws.ProductUpdated, updated, oldCategory, updated.Category)
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.changed(ws.ProductDeleted, product, product.Category)
	return nil
}

// changed drops the cached listings of the touched categories and tells the
// admin screens.
func (s *productService) changed(action string, product *models.Product, categories ...string) {
	for _, c := range categories {
		s.listings.Delete(c)
	}

	data := ws.ProductUpdateData{Action: action, ID: product.ID, Category: product.Category}
	if action != ws.ProductDeleted {
		data.Product = product
	}
	s.hub.BroadcastToAll(ws.Event{Op: ws.OpProductUpdate, Data: data})
}

func (s *productService) render(p *models.Product) {
	if p.Description == "" {
		p.DescriptionHTML = ""
		return
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(p.Description), &buf); err != nil {
		log.Printf("[product] failed to render description of %s: %v", p.ID, err)
		p.DescriptionHTML = ""
		return
	}
	p.DescriptionHTML = buf.String()
}
