// Package browse filters, sorts and paginates images in memory.
//
// The admin category browser loads one category (or everything) from the
// database and narrows it here; the catalog is small enough that an index
// would buy nothing.
package browse

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/khakishop/server/models"
)

// Sort keys.
const (
	SortOrder   = "order"
	SortCreated = "created"
	SortTitle   = "title"
	SortSize    = "size"
)

const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

// Query describes one browser view. Zero values mean "no filter".
type Query struct {
	Category    string
	Subcategory string
	Search      string
	// Tags must all be present on an image.
	Tags     []string
	SortBy   string
	Desc     bool
	Page     int // 1-based
	PageSize int
}

// Page is one page of results.
type Page struct {
	Items      []models.Image `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

// Normalize fills defaults and rejects unknown sort keys.
func (q *Query) Normalize() error {
	q.Category = strings.TrimSpace(q.Category)
	q.Subcategory = strings.TrimSpace(q.Subcategory)
	q.Search = strings.TrimSpace(q.Search)
	q.Tags = models.NormalizeTags(q.Tags)

	// Paging defaults come first so callers that tolerate a bad sort key
	// still get a usable page size.
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	switch q.SortBy {
	case "":
		q.SortBy = SortOrder
	case SortOrder, SortCreated, SortTitle, SortSize:
	default:
		return fmt.Errorf("unknown sort key %q", q.SortBy)
	}
	return nil
}

// FromValues parses the query string of GET /api/admin/images:
// category, subcategory, q, tag (repeatable or comma list), sort, desc,
// page, page_size.
func FromValues(v url.Values) (Query, error) {
	q := Query{
		Category:    v.Get("category"),
		Subcategory: v.Get("subcategory"),
		Search:      v.Get("q"),
		SortBy:      v.Get("sort"),
	}

	for _, t := range v["tag"] {
		q.Tags = append(q.Tags, strings.Split(t, ",")...)
	}

	var err error
	if s := v.Get("desc"); s != "" {
		if q.Desc, err = strconv.ParseBool(s); err != nil {
			return Query{}, fmt.Errorf("invalid desc: %q", s)
		}
	}
	if s := v.Get("page"); s != "" {
		if q.Page, err = strconv.Atoi(s); err != nil || q.Page < 1 {
			return Query{}, fmt.Errorf("invalid page: %q", s)
		}
	}
	if s := v.Get("page_size"); s != "" {
		if q.PageSize, err = strconv.Atoi(s); err != nil || q.PageSize < 1 {
			return Query{}, fmt.Errorf("invalid page_size: %q", s)
		}
	}

	if err := q.Normalize(); err != nil {
		return Query{}, err
	}
	return q, nil
}

// Apply filters, sorts and slices images. The input slice is not modified.
// A page past the end yields no items but keeps Total.
func Apply(images []models.Image, q Query) Page {
	if err := q.Normalize(); err != nil {
		q.SortBy = SortOrder
	}

	matched := make([]models.Image, 0, len(images))
	for i := range images {
		if Matches(&images[i], q) {
			matched = append(matched, images[i])
		}
	}

	sortImages(matched, q.SortBy, q.Desc)

	total := len(matched)
	page := Page{
		Items:      []models.Image{},
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}

	start := (q.Page - 1) * q.PageSize
	if start >= total {
		return page
	}
	end := min(start+q.PageSize, total)
	page.Items = matched[start:end]
	return page
}

// Matches reports whether img passes the filters of q.
func Matches(img *models.Image, q Query) bool {
	if q.Category != "" && img.Category != q.Category {
		return false
	}
	if q.Subcategory != "" && img.Subcategory != q.Subcategory {
		return false
	}

	for _, want := range q.Tags {
		if !containsFold(img.Tags, want) {
			return false
		}
	}

	if q.Search != "" && !matchesSearch(img, strings.ToLower(q.Search)) {
		return false
	}

	return true
}

// matchesSearch is a case-insensitive substring match over the text fields.
func matchesSearch(img *models.Image, needle string) bool {
	fields := []string{img.Title(), img.Filename, img.Alt(), img.Description()}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	for _, list := range [][]string{img.Tags, img.Keywords} {
		for _, v := range list {
			if strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// sortImages sorts in place. SliceStable keeps the load order for ties, and
// Desc flips the comparison rather than reversing the result so ties stay
// stable in both directions.
func sortImages(images []models.Image, by string, desc bool) {
	var less func(a, b *models.Image) bool

	switch by {
	case SortCreated:
		less = func(a, b *models.Image) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortTitle:
		less = func(a, b *models.Image) bool {
			return strings.ToLower(a.Title()) < strings.ToLower(b.Title())
		}
	case SortSize:
		less = func(a, b *models.Image) bool { return a.Size < b.Size }
	default:
		less = func(a, b *models.Image) bool {
			if a.Category != b.Category {
				return a.Category < b.Category
			}
			if a.Subcategory != b.Subcategory {
				return a.Subcategory < b.Subcategory
			}
			return a.DisplayOrder < b.DisplayOrder
		}
	}

	sort.SliceStable(images, func(i, j int) bool {
		if desc {
			return less(&images[j], &images[i])
		}
		return less(&images[i], &images[j])
	})
}
