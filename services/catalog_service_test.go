package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/ws"
)

func TestCategoryService_Counts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewCategoryService(f.imageRepo)

	f.upload(t, "a.png", "curtain", "linen")
	f.upload(t, "b.png", "curtain", "linen")
	f.upload(t, "c.png", "curtain", "")
	f.upload(t, "d.png", "blind", "roller")

	all, err := svc.List(ctx, "en")
	require.NoError(t, err)
	require.Len(t, all, len(models.Categories))

	curtain := all[0]
	assert.Equal(t, "curtain", curtain.Slug)
	assert.Equal(t, "Curtains", curtain.Label)
	assert.Equal(t, 3, curtain.ImageCount)
	require.Len(t, curtain.Subcategories, 4)

	byslug := map[string]models.SubcategorySummary{}
	for _, sub := range curtain.Subcategories {
		byslug[sub.Slug] = sub
	}
	assert.Equal(t, 2, byslug["linen"].ImageCount)
	assert.Equal(t, "Linen curtains", byslug["linen"].Label)
	assert.Equal(t, 0, byslug["sheer"].ImageCount)

	blind, err := svc.Get(ctx, "blind", "en")
	require.NoError(t, err)
	assert.Equal(t, 1, blind.ImageCount)

	korean, err := svc.Get(ctx, "blind", "fr")
	require.NoError(t, err)
	assert.NotEqual(t, "Blinds", korean.Label, "unsupported language falls back to Korean")

	_, err = svc.Get(ctx, "sofa", "en")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}

type productFixture struct {
	*fixture
	products ProductService
	repo     repository.ProductRepository
}

func newProductFixture(t *testing.T) *productFixture {
	t.Helper()
	f := newFixture(t)

	repo := repository.NewSQLiteProductRepo(f.db.Conn)
	return &productFixture{
		fixture:  f,
		products: NewProductService(repo, f.hub, f.listings),
		repo:     repo,
	}
}

func TestProductService_CreateAndRead(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	cover := f.upload(t, "cover.png", "curtain", "linen")

	created, err := f.products.Create(ctx, &models.CreateProductRequest{
		Slug:         "Linen-Blackout",
		Category:     "curtain",
		Name:         "Linen blackout curtain",
		Price:        189000,
		Description:  "# Linen\n\nMade to **measure**.\n\n<script>alert(1)</script>",
		CoverImageID: &cover.ID,
		IsPublished:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "linen-blackout", created.Slug)
	assert.Equal(t, cover.URL, created.CoverImageURL)
	assert.Contains(t, created.DescriptionHTML, "<h1>Linen</h1>")
	assert.Contains(t, created.DescriptionHTML, "<strong>measure</strong>")
	assert.NotContains(t, created.DescriptionHTML, "<script>")

	got, err := f.products.GetPublished(ctx, "curtain", "linen-blackout")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.NotEmpty(t, got.DescriptionHTML)

	list, err := f.products.ListPublished(ctx, "curtain")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.products.Create(ctx, &models.CreateProductRequest{
		Slug: "linen-blackout", Category: "curtain", Name: "Again",
	})
	require.ErrorIs(t, err, pkg.ErrAlreadyExists)

	_, err = f.products.Create(ctx, &models.CreateProductRequest{Slug: "bad slug", Category: "curtain", Name: "x"})
	require.ErrorIs(t, err, pkg.ErrBadRequest)

	last := f.hub.last()
	assert.Equal(t, ws.OpProductUpdate, last.Op)
}

func TestProductService_DraftsAreHidden(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	draft, err := f.products.Create(ctx, &models.CreateProductRequest{
		Slug: "roman-shade", Category: "blind", Name: "Roman shade", Price: 99000,
	})
	require.NoError(t, err)

	_, err = f.products.GetPublished(ctx, "blind", "roman-shade")
	require.ErrorIs(t, err, pkg.ErrNotFound)

	public, err := f.products.ListPublished(ctx, "blind")
	require.NoError(t, err)
	assert.Empty(t, public)

	all, err := f.products.ListAll(ctx, "blind")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, draft.ID, all[0].ID)

	_, err = f.products.ListPublished(ctx, "sofa")
	require.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestProductService_WritesInvalidateCache(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	p, err := f.products.Create(ctx, &models.CreateProductRequest{
		Slug: "combi", Category: "blind", Name: "Combi blind", Price: 50000, IsPublished: true,
	})
	require.NoError(t, err)

	list, err := f.products.ListPublished(ctx, "blind")
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, cached := f.listings.Get("blind")
	assert.True(t, cached)

	// A write behind the service's back is not visible until invalidation.
	p.Name = "Renamed directly"
	require.NoError(t, f.repo.Update(ctx, p))
	list, err = f.products.ListPublished(ctx, "blind")
	require.NoError(t, err)
	assert.Equal(t, "Combi blind", list[0].Name)

	newName := "Combi blind v2"
	moveTo := "motorized"
	_, err = f.products.Update(ctx, p.ID, &models.UpdateProductRequest{Name: &newName, Category: &moveTo})
	require.NoError(t, err)

	_, cached = f.listings.Get("blind")
	assert.False(t, cached, "old category dropped")

	blinds, err := f.products.ListPublished(ctx, "blind")
	require.NoError(t, err)
	assert.Empty(t, blinds)

	motorized, err := f.products.ListPublished(ctx, "motorized")
	require.NoError(t, err)
	require.Len(t, motorized, 1)
	assert.Equal(t, "Combi blind v2", motorized[0].Name)

	require.NoError(t, f.products.Delete(ctx, p.ID))
	motorized, err = f.products.ListPublished(ctx, "motorized")
	require.NoError(t, err)
	assert.Empty(t, motorized)

	require.ErrorIs(t, f.products.Delete(ctx, p.ID), pkg.ErrNotFound)
}

func TestProductService_ClearCover(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	cover := f.upload(t, "cover.png", "accessory", "tassel")
	p, err := f.products.Create(ctx, &models.CreateProductRequest{
		Slug: "tassel", Category: "accessory", Name: "Tassel", CoverImageID: &cover.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, p.CoverImageID)

	empty := ""
	updated, err := f.products.Update(ctx, p.ID, &models.UpdateProductRequest{CoverImageID: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.CoverImageID)
	assert.Empty(t, updated.CoverImageURL)

	missing := "no-such-image"
	_, err = f.products.Update(ctx, p.ID, &models.UpdateProductRequest{CoverImageID: &missing})
	require.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestProductService_ImageChangesDropCachedCovers(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()

	cover := f.upload(t, "cover.png", "curtain", "linen")
	_, err := f.products.Create(ctx, &models.CreateProductRequest{
		Slug: "linen", Category: "curtain", Name: "Linen", CoverImageID: &cover.ID, IsPublished: true,
	})
	require.NoError(t, err)

	list, err := f.products.ListPublished(ctx, "curtain")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cover.URL, list[0].CoverImageURL)

	_, err = f.images.Update(ctx, cover.ID, &models.UpdateImageRequest{Subcategory: strPtr("sheer")})
	require.NoError(t, err)
	_, cached := f.listings.Get("curtain")
	assert.False(t, cached, "moving a cover drops the listings")

	_, err = f.products.ListPublished(ctx, "curtain")
	require.NoError(t, err)
	_, cached = f.listings.Get("curtain")
	require.True(t, cached)

	require.NoError(t, f.images.Delete(ctx, cover.ID))
	_, cached = f.listings.Get("curtain")
	assert.False(t, cached, "deleting a cover drops the listings")

	list, err = f.products.ListPublished(ctx, "curtain")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].CoverImageID)
	assert.Empty(t, list[0].CoverImageURL)
}
