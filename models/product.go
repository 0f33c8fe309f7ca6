package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Product is a storefront product shown on the category route pages.
type Product struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	Category        string    `json:"category"`
	Name            string    `json:"name"`
	Price           int64     `json:"price"` // KRW, no minor unit
	Description     string    `json:"description"`
	DescriptionHTML string    `json:"description_html"` // rendered on read, not stored
	CoverImageID    *string   `json:"cover_image_id"`
	CoverImageURL   string    `json:"cover_image_url,omitempty"`
	IsPublished     bool      `json:"is_published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CreateProductRequest is the body of POST /api/admin/products.
type CreateProductRequest struct {
	Slug         string  `json:"slug"`
	Category     string  `json:"category"`
	Name         string  `json:"name"`
	Price        int64   `json:"price"`
	Description  string  `json:"description"`
	CoverImageID *string `json:"cover_image_id"`
	IsPublished  bool    `json:"is_published"`
}

// Validate checks the product fields.
func (r *CreateProductRequest) Validate() error {
	r.Slug = strings.ToLower(strings.TrimSpace(r.Slug))
	r.Name = strings.TrimSpace(r.Name)
	r.Category = strings.TrimSpace(r.Category)

	if err := validateSlug(r.Slug); err != nil {
		return err
	}
	if err := ValidateCategory(r.Category, ""); err != nil {
		return err
	}
	if err := validateProductName(r.Name); err != nil {
		return err
	}
	if r.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if utf8.RuneCountInString(r.Description) > 20000 {
		return fmt.Errorf("description must be at most 20000 characters")
	}
	r.CoverImageID = trimOptional(r.CoverImageID)
	return nil
}

// UpdateProductRequest is a partial update; nil fields are left untouched.
// An empty cover_image_id clears the cover.
type UpdateProductRequest struct {
	Slug         *string `json:"slug"`
	Category     *string `json:"category"`
	Name         *string `json:"name"`
	Price        *int64  `json:"price"`
	Description  *string `json:"description"`
	CoverImageID *string `json:"cover_image_id"`
	IsPublished  *bool   `json:"is_published"`
}

// Validate checks the fields that are present.
func (r *UpdateProductRequest) Validate() error {
	if r.Slug != nil {
		s := strings.ToLower(strings.TrimSpace(*r.Slug))
		if err := validateSlug(s); err != nil {
			return err
		}
		r.Slug = &s
	}
	if r.Category != nil {
		c := strings.TrimSpace(*r.Category)
		if err := ValidateCategory(c, ""); err != nil {
			return err
		}
		r.Category = &c
	}
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		if err := validateProductName(n); err != nil {
			return err
		}
		r.Name = &n
	}
	if r.Price != nil && *r.Price < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if r.Description != nil && utf8.RuneCountInString(*r.Description) > 20000 {
		return fmt.Errorf("description must be at most 20000 characters")
	}
	if r.CoverImageID != nil {
		id := strings.TrimSpace(*r.CoverImageID)
		r.CoverImageID = &id
	}
	return nil
}

func validateSlug(slug string) error {
	if slug == "" || len(slug) > 80 {
		return fmt.Errorf("slug must be between 1 and 80 characters")
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("slug can only contain lowercase letters, digits and single hyphens")
	}
	return nil
}

func validateProductName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > 120 {
		return fmt.Errorf("name must be between 1 and 120 characters")
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
