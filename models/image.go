package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Image is one image record of the catalog.
// It mirrors the "images" table; Tags, Keywords and Metadata are stored as
// JSON text.
type Image struct {
	ID           string         `json:"id"`
	URL          string         `json:"url"`
	StorageKey   string         `json:"-"` // key inside the storage driver
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	Size         int64          `json:"size"`
	Category     string         `json:"category"`
	Subcategory  string         `json:"subcategory"`
	DisplayOrder int            `json:"display_order"`
	Tags         []string       `json:"tags"`
	Keywords     []string       `json:"keywords"`
	Metadata     *ImageMetadata `json:"metadata"` // nullable, not every image has one
	IsProtected  bool           `json:"is_protected"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewImageID returns an id of the form "<unix-millis>_<8 hex>".
func NewImageID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d_%s", now.UnixMilli(), suffix)
}

// ImageMetadata is the optional descriptive block of an image.
type ImageMetadata struct {
	Alt          string `json:"alt,omitempty"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	Priority     int    `json:"priority,omitempty"`
}

// Title returns the metadata title, falling back to the filename without
// its extension.
func (img *Image) Title() string {
	if img.Metadata != nil && img.Metadata.Title != "" {
		return img.Metadata.Title
	}
	return strings.TrimSuffix(img.Filename, filepath.Ext(img.Filename))
}

// Alt returns the alt text, falling back to Title.
func (img *Image) Alt() string {
	if img.Metadata != nil && img.Metadata.Alt != "" {
		return img.Metadata.Alt
	}
	return img.Title()
}

// Description returns the metadata description or "".
func (img *Image) Description() string {
	if img.Metadata == nil {
		return ""
	}
	return img.Metadata.Description
}

// ImageUploadRequest carries the form fields sent next to an uploaded file.
type ImageUploadRequest struct {
	Category    string
	Subcategory string
	Tags        []string
	Alt         string
	Title       string
}

// Validate checks the category pair and normalizes the tags.
func (r *ImageUploadRequest) Validate() error {
	r.Category = strings.TrimSpace(r.Category)
	r.Subcategory = strings.TrimSpace(r.Subcategory)
	if err := ValidateCategory(r.Category, r.Subcategory); err != nil {
		return err
	}

	r.Tags = NormalizeTags(r.Tags)
	if len(r.Tags) > maxTags {
		return fmt.Errorf("at most %d tags allowed", maxTags)
	}

	r.Alt = strings.TrimSpace(r.Alt)
	r.Title = strings.TrimSpace(r.Title)
	if utf8.RuneCountInString(r.Alt) > 300 || utf8.RuneCountInString(r.Title) > 200 {
		return fmt.Errorf("alt must be at most 300 and title at most 200 characters")
	}

	return nil
}

// Metadata returns the metadata block implied by the form, or nil.
func (r *ImageUploadRequest) Metadata() *ImageMetadata {
	if r.Alt == "" && r.Title == "" {
		return nil
	}
	return &ImageMetadata{Alt: r.Alt, Title: r.Title}
}

// UpdateImageRequest is a partial update of an image.
// nil fields are left untouched.
type UpdateImageRequest struct {
	Category    *string        `json:"category"`
	Subcategory *string        `json:"subcategory"`
	Tags        *[]string      `json:"tags"`
	Keywords    *[]string      `json:"keywords"`
	Metadata    *ImageMetadata `json:"metadata"`
}

// Validate checks the fields that are present.
func (r *UpdateImageRequest) Validate() error {
	if r.Category != nil || r.Subcategory != nil {
		// Moving to a category without naming a subcategory clears it.
		cat, sub := "", ""
		if r.Category != nil {
			cat = strings.TrimSpace(*r.Category)
			r.Category = &cat
		}
		if r.Subcategory != nil {
			sub = strings.TrimSpace(*r.Subcategory)
			r.Subcategory = &sub
		}
		if r.Category != nil {
			if err := ValidateCategory(cat, sub); err != nil {
				return err
			}
		}
	}

	if r.Tags != nil {
		tags := NormalizeTags(*r.Tags)
		if len(tags) > maxTags {
			return fmt.Errorf("at most %d tags allowed", maxTags)
		}
		r.Tags = &tags
	}

	if r.Keywords != nil {
		kw := NormalizeKeywords(*r.Keywords)
		if len(kw) > maxTags {
			return fmt.Errorf("at most %d keywords allowed", maxTags)
		}
		r.Keywords = &kw
	}

	if r.Metadata != nil {
		m := r.Metadata
		m.Alt = strings.TrimSpace(m.Alt)
		m.Title = strings.TrimSpace(m.Title)
		m.Description = strings.TrimSpace(m.Description)
		m.Photographer = strings.TrimSpace(m.Photographer)
		if utf8.RuneCountInString(m.Description) > 2000 {
			return fmt.Errorf("description must be at most 2000 characters")
		}
		if m.Priority < 0 || m.Priority > 100 {
			return fmt.Errorf("priority must be between 0 and 100")
		}
	}

	return nil
}

// ReorderImagesRequest is the result of a drag-and-drop: the full list of
// image ids of one bucket in their new order.
type ReorderImagesRequest struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	IDs         []string `json:"ids"`
}

// Validate checks the bucket and that ids are non-empty and unique.
// Whether the ids match the bucket exactly is checked by the service.
func (r *ReorderImagesRequest) Validate() error {
	r.Category = strings.TrimSpace(r.Category)
	r.Subcategory = strings.TrimSpace(r.Subcategory)
	if err := ValidateCategory(r.Category, r.Subcategory); err != nil {
		return err
	}

	if len(r.IDs) == 0 {
		return fmt.Errorf("ids cannot be empty")
	}

	seen := make(map[string]bool, len(r.IDs))
	for _, id := range r.IDs {
		if id == "" {
			return fmt.Errorf("id cannot be empty")
		}
		if seen[id] {
			return fmt.Errorf("duplicate image id: %s", id)
		}
		seen[id] = true
	}

	return nil
}

// SetProtectionRequest toggles the protected flag.
type SetProtectionRequest struct {
	IsProtected bool `json:"is_protected"`
}

// ImagePosition is one (id, display_order) pair written by a reorder.
type ImagePosition struct {
	ID           string `json:"id"`
	DisplayOrder int    `json:"display_order"`
}

const maxTags = 30

// NormalizeTags lower-cases, trims and de-duplicates tags, keeping the
// first occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// NormalizeKeywords trims and de-duplicates keywords; case is kept since
// keywords are shown verbatim in SEO fields.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		key := strings.ToLower(k)
		if k == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, k)
	}
	return out
}

// SplitTags parses a comma separated form value.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(s, ","))
}
