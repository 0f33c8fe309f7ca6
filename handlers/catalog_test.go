package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khakishop/server/handlers"
	"github.com/khakishop/server/models"
)

func TestCategories(t *testing.T) {
	s := newServer(t, options{})
	s.upload("a.png", "curtain", "sheer")
	s.upload("b.png", "curtain", "")

	status, env := s.request(http.MethodGet, "/api/categories?lang=en", nil, "", nil)
	require.Equal(t, http.StatusOK, status)
	var all []models.CategorySummary
	env.decode(t, &all)
	require.Len(t, all, len(models.Categories))
	assert.Equal(t, "Curtains", all[0].Label)
	assert.Equal(t, 2, all[0].ImageCount)

	rec := s.raw(http.MethodGet, "/api/categories/blind", nil, "", http.Header{"Accept-Language": {"en-GB,en;q=0.8"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"label":"Blinds"`)

	rec = s.raw(http.MethodGet, "/api/categories/blind", nil, "", nil)
	assert.NotContains(t, rec.Body.String(), `"label":"Blinds"`, "Korean by default")

	status, _ = s.request(http.MethodGet, "/api/categories/sofa", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProducts_AdminAndPublic(t *testing.T) {
	s := newServer(t, options{})
	cover := s.upload("cover.png", "blind", "roman")

	status, env := s.adminJSON(http.MethodPost, "/api/admin/products", map[string]any{
		"slug":           "roman-linen",
		"category":       "blind",
		"name":           "Roman linen shade",
		"price":          129000,
		"description":    "Made to **measure**.",
		"cover_image_id": cover.ID,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	var product models.Product
	env.decode(t, &product)
	assert.Equal(t, cover.URL, product.CoverImageURL)

	// Drafts stay hidden from the storefront.
	status, env = s.request(http.MethodGet, "/api/products/blind", nil, "", nil)
	require.Equal(t, http.StatusOK, status)
	var public []models.Product
	env.decode(t, &public)
	assert.Empty(t, public)

	status, _ = s.request(http.MethodGet, "/api/products/blind/roman-linen", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = s.adminJSON(http.MethodPatch, "/api/admin/products/"+product.ID, map[string]any{"is_published": true})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = s.request(http.MethodGet, "/api/products/blind", nil, "", nil)
	require.Equal(t, http.StatusOK, status)
	env.decode(t, &public)
	require.Len(t, public, 1)

	status, env = s.request(http.MethodGet, "/api/products/blind/roman-linen", nil, "", nil)
	require.Equal(t, http.StatusOK, status)
	var detail models.Product
	env.decode(t, &detail)
	assert.Contains(t, detail.DescriptionHTML, "<strong>measure</strong>")

	status, env = s.adminJSON(http.MethodGet, "/api/admin/products?category=blind", nil)
	require.Equal(t, http.StatusOK, status)
	var all []models.Product
	env.decode(t, &all)
	assert.Len(t, all, 1)

	status, _ = s.adminJSON(http.MethodPost, "/api/admin/products", map[string]any{
		"slug": "roman-linen", "category": "blind", "name": "Duplicate",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = s.request(http.MethodPost, "/api/admin/products", jsonBodyRaw(`{}`), "application/json", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.adminJSON(http.MethodDelete, "/api/admin/products/"+product.ID, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = s.request(http.MethodGet, "/api/products/blind", nil, "", nil)
	require.Equal(t, http.StatusOK, status)
	env.decode(t, &public)
	assert.Empty(t, public)

	status, _ = s.request(http.MethodGet, "/api/products/sofa", nil, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealth(t *testing.T) {
	s := newServer(t, options{})

	status, env := s.request(http.MethodGet, "/api/health", nil, "", nil)
	require.Equal(t, http.StatusOK, status)
	var health handlers.HealthResponse
	env.decode(t, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "local", health.StorageDriver)
	assert.Zero(t, health.AdminsOnline)
}
