package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/services"
)

// ProductHandler serves the public product pages and the admin product API.
type ProductHandler struct {
	productService services.ProductService
}

// NewProductHandler is the constructor.
func NewProductHandler(productService services.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// ListPublished godoc
// GET /api/products/{category}
func (h *ProductHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListPublished(r.Context(), r.PathValue("category"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, products)
}

// GetPublished godoc
// GET /api/products/{category}/{slug}
func (h *ProductHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.GetPublished(r.Context(), r.PathValue("category"), r.PathValue("slug"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, product)
}

// ListAll godoc
// GET /api/admin/products?category=curtain
// Drafts included.
func (h *ProductHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	products, err := h.productService.ListAll(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, products)
}

// Create godoc
// POST /api/admin/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.productService.Create(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, product)
}

// Update godoc
// PATCH /api/admin/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.productService.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, product)
}

// Delete godoc
// DELETE /api/admin/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.productService.Delete(r.Context(), r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
