package services

import (
	"context"
	"fmt"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/i18n"
	"github.com/khakishop/server/repository"
)

// CategoryService serves the fixed category catalog with labels and image
// counts for the category browser.
type CategoryService interface {
	// List returns every category in menu order, labelled in lang.
	List(ctx context.Context, lang string) ([]models.CategorySummary, error)
	Get(ctx context.Context, slug, lang string) (*models.CategorySummary, error)
}

type categoryService struct {
	imageRepo repository.ImageRepository
}

func NewCategoryService(imageRepo repository.ImageRepository) CategoryService {
	return &categoryService{imageRepo: imageRepo}
}

func (s *categoryService) List(ctx context.Context, lang string) ([]models.CategorySummary, error) {
	counts, err := s.imageRepo.CountByBucket(ctx)
	if err != nil {
		return nil, err
	}

	byBucket := make(map[[2]string]int, len(counts))
	for _, c := range counts {
		byBucket[[2]string{c.Category, c.Subcategory}] = c.Count
	}

	loc := i18n.NewLocalizer(lang)
	out := make([]models.CategorySummary, 0, len(models.Categories))
	for _, cat := range models.Categories {
		summary := models.CategorySummary{
			Slug:          cat.Slug,
			Label:         loc.CategoryLabel(cat.Slug),
			Subcategories: make([]models.SubcategorySummary, 0, len(cat.Subcategories)),
		}

		// Images filed without a subcategory count toward the category only.
		summary.ImageCount = byBucket[[2]string{cat.Slug, ""}]
		for _, sub := range cat.Subcategories {
			n := byBucket[[2]string{cat.Slug, sub}]
			summary.ImageCount += n
			summary.Subcategories = append(summary.Subcategories, models.SubcategorySummary{
				Slug:       sub,
				Label:      loc.SubcategoryLabel(cat.Slug, sub),
				ImageCount: n,
			})
		}

		out = append(out, summary)
	}

	return out, nil
}

func (s *categoryService) Get(ctx context.Context, slug, lang string) (*models.CategorySummary, error) {
	if _, ok := models.FindCategory(slug); !ok {
		return nil, fmt.Errorf("%w: unknown category %s", pkg.ErrNotFound, slug)
	}

	all, err := s.List(ctx, lang)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Slug == slug {
			return &all[i], nil
		}
	}
	return nil, pkg.ErrNotFound
}
