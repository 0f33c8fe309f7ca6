package models

import "fmt"

// Category is one entry of the fixed catalog the admin files images under.
// The list lives in code, not in the database; labels are resolved through
// pkg/i18n with the "category.<slug>" keys.
type Category struct {
	Slug          string   `json:"slug"`
	Subcategories []string `json:"subcategories"`
}

// Categories is the fixed category list, in menu order.
var Categories = []Category{
	{Slug: "curtain", Subcategories: []string{"blackout", "sheer", "linen", "cotton"}},
	{Slug: "blind", Subcategories: []string{"roller", "roman", "venetian", "combi"}},
	{Slug: "motorized", Subcategories: []string{"curtain-motor", "blind-motor"}},
	{Slug: "accessory", Subcategories: []string{"rail", "tassel", "hook"}},
	{Slug: "gallery", Subcategories: []string{"living", "bedroom", "office"}},
}

// FindCategory returns the catalog entry for slug.
func FindCategory(slug string) (Category, bool) {
	for _, c := range Categories {
		if c.Slug == slug {
			return c, true
		}
	}
	return Category{}, false
}

// HasSubcategory reports whether sub belongs to the category.
func (c Category) HasSubcategory(sub string) bool {
	for _, s := range c.Subcategories {
		if s == sub {
			return true
		}
	}
	return false
}

// ValidateCategory checks a (category, subcategory) pair against the
// catalog. An empty subcategory is allowed.
func ValidateCategory(category, subcategory string) error {
	if category == "" {
		return fmt.Errorf("category is required")
	}
	c, ok := FindCategory(category)
	if !ok {
		return fmt.Errorf("unknown category: %s", category)
	}
	if subcategory != "" && !c.HasSubcategory(subcategory) {
		return fmt.Errorf("unknown subcategory %q for category %s", subcategory, category)
	}
	return nil
}

// CategorySummary is what GET /api/categories returns per category.
type CategorySummary struct {
	Slug          string               `json:"slug"`
	Label         string               `json:"label"`
	ImageCount    int                  `json:"image_count"`
	Subcategories []SubcategorySummary `json:"subcategories"`
}

// SubcategorySummary is the per-subcategory part of CategorySummary.
type SubcategorySummary struct {
	Slug       string `json:"slug"`
	Label      string `json:"label"`
	ImageCount int    `json:"image_count"`
}

// BucketCount is an image count for one (category, subcategory) pair.
type BucketCount struct {
	Category    string
	Subcategory string
	Count       int
}

// OrderSlot is a display_order shared by more than one image of a bucket.
type OrderSlot struct {
	Category     string `json:"category"`
	Subcategory  string `json:"subcategory"`
	DisplayOrder int    `json:"display_order"`
	Count        int    `json:"count"`
}
