package browse

import (
	"net/url"
	"testing"
	"time"

	"github.com/khakishop/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []models.Image {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []models.Image{
		{ID: "c1", Filename: "blackout-grey.jpg", Category: "curtain", Subcategory: "blackout", DisplayOrder: 1, Size: 300, Tags: []string{"grey"}, CreatedAt: base},
		{ID: "c0", Filename: "blackout-navy.jpg", Category: "curtain", Subcategory: "blackout", DisplayOrder: 0, Size: 100, Tags: []string{"navy", "bedroom"}, CreatedAt: base.Add(time.Hour)},
		{ID: "s0", Filename: "sheer.jpg", Category: "curtain", Subcategory: "sheer", DisplayOrder: 0, Size: 200, Keywords: []string{"Living Room"},
			Metadata: &models.ImageMetadata{Title: "Airy white sheer"}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "b0", Filename: "roller.png", Category: "blind", Subcategory: "roller", DisplayOrder: 0, Size: 50, Tags: []string{"grey", "bedroom"},
			Metadata: &models.ImageMetadata{Description: "Blackout roller for bedrooms"}, CreatedAt: base.Add(3 * time.Hour)},
	}
}

func ids(p Page) []string {
	out := make([]string, len(p.Items))
	for i, img := range p.Items {
		out[i] = img.ID
	}
	return out
}

func TestApply_DefaultOrder(t *testing.T) {
	p := Apply(fixture(), Query{})
	assert.Equal(t, []string{"b0", "c0", "c1", "s0"}, ids(p))
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, DefaultPageSize, p.PageSize)
}

func TestApply_CategoryFilters(t *testing.T) {
	p := Apply(fixture(), Query{Category: "curtain"})
	assert.Equal(t, []string{"c0", "c1", "s0"}, ids(p))

	p = Apply(fixture(), Query{Category: "curtain", Subcategory: "blackout"})
	assert.Equal(t, []string{"c0", "c1"}, ids(p))
}

func TestApply_TagsAllMatch(t *testing.T) {
	p := Apply(fixture(), Query{Tags: []string{"grey"}})
	assert.Equal(t, []string{"b0", "c1"}, ids(p))

	p = Apply(fixture(), Query{Tags: []string{"Grey", "bedroom"}})
	assert.Equal(t, []string{"b0"}, ids(p))
}

func TestApply_Search(t *testing.T) {
	tests := []struct {
		search string
		want   []string
	}{
		{"BLACKOUT", []string{"b0", "c0", "c1"}}, // filename and description
		{"airy", []string{"s0"}},                 // metadata title
		{"living", []string{"s0"}},               // keyword
		{"navy", []string{"c0"}},                 // tag and filename
		{"nothing-matches", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Apply(fixture(), Query{Search: tt.search})))
		})
	}
}

func TestApply_Sorts(t *testing.T) {
	assert.Equal(t, []string{"b0", "c0", "s0", "c1"}, ids(Apply(fixture(), Query{SortBy: SortSize})))
	assert.Equal(t, []string{"c1", "s0", "c0", "b0"}, ids(Apply(fixture(), Query{SortBy: SortSize, Desc: true})))
	assert.Equal(t, []string{"b0", "s0", "c0", "c1"}, ids(Apply(fixture(), Query{SortBy: SortCreated, Desc: true})))
	// Titles: "Airy white sheer", "blackout-grey", "blackout-navy", "roller"
	assert.Equal(t, []string{"s0", "c1", "c0", "b0"}, ids(Apply(fixture(), Query{SortBy: SortTitle})))
}

func TestApply_StableTies(t *testing.T) {
	images := []models.Image{
		{ID: "x", Size: 1}, {ID: "y", Size: 1}, {ID: "z", Size: 1},
	}
	assert.Equal(t, []string{"x", "y", "z"}, ids(Apply(images, Query{SortBy: SortSize})))
	assert.Equal(t, []string{"x", "y", "z"}, ids(Apply(images, Query{SortBy: SortSize, Desc: true})))
}

func TestApply_Pagination(t *testing.T) {
	p := Apply(fixture(), Query{PageSize: 3, Page: 2})
	assert.Equal(t, []string{"s0"}, ids(p))
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 2, p.TotalPages)

	p = Apply(fixture(), Query{PageSize: 3, Page: 5})
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
	assert.Equal(t, 4, p.Total)

	p = Apply(fixture(), Query{PageSize: 1000})
	assert.Equal(t, MaxPageSize, p.PageSize)

	p = Apply(nil, Query{})
	assert.Equal(t, 0, p.TotalPages)
	assert.Empty(t, p.Items)
}

func TestApply_UnknownSortFallsBackToOrder(t *testing.T) {
	var p Page
	require.NotPanics(t, func() {
		p = Apply(fixture(), Query{SortBy: "bogus"})
	})
	assert.Equal(t, []string{"b0", "c0", "c1", "s0"}, ids(p))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Equal(t, 1, p.TotalPages)

	q := Query{SortBy: "bogus"}
	require.Error(t, q.Normalize())
	assert.Equal(t, DefaultPageSize, q.PageSize)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	images := fixture()
	Apply(images, Query{SortBy: SortSize})
	assert.Equal(t, "c1", images[0].ID)
}

func TestFromValues(t *testing.T) {
	v := url.Values{}
	v.Set("category", "curtain")
	v.Set("q", " linen ")
	v.Add("tag", "Grey,navy")
	v.Add("tag", "bedroom")
	v.Set("sort", "size")
	v.Set("desc", "true")
	v.Set("page", "2")
	v.Set("page_size", "10")

	q, err := FromValues(v)
	require.NoError(t, err)
	assert.Equal(t, Query{
		Category: "curtain", Search: "linen", Tags: []string{"grey", "navy", "bedroom"},
		SortBy: SortSize, Desc: true, Page: 2, PageSize: 10,
	}, q)

	for _, bad := range []url.Values{
		{"sort": {"random"}},
		{"page": {"0"}},
		{"page_size": {"x"}},
		{"desc": {"maybe"}},
	} {
		_, err := FromValues(bad)
		assert.Error(t, err, "%v", bad)
	}
}
