package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/browse"
	"github.com/khakishop/server/services"
)

// ImageHandler serves the admin image catalog.
type ImageHandler struct {
	imageService services.ImageService
}

// NewImageHandler is the constructor.
func NewImageHandler(imageService services.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

// List godoc
// GET /api/admin/images?category=&subcategory=&q=&tag=&sort=&desc=&page=&page_size=
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := browse.FromValues(r.URL.Query())
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.imageService.List(r.Context(), q)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, page)
}

// Get godoc
// GET /api/admin/images/{id}
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	img, err := h.imageService.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, img)
}

// Update godoc
// PATCH /api/admin/images/{id}
// Body: any of { "category", "subcategory", "tags", "keywords", "metadata" }
func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	img, err := h.imageService.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, img)
}

// SetProtection godoc
// PATCH /api/admin/images/{id}/protection
// Body: { "is_protected": true }
func (h *ImageHandler) SetProtection(w http.ResponseWriter, r *http.Request) {
	var req models.SetProtectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	img, err := h.imageService.SetProtection(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, img)
}

// Delete godoc
// DELETE /api/admin/images/{id}
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.imageService.Delete(r.Context(), r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "image deleted"})
}

// Reorder godoc
// PATCH /api/admin/images/reorder
// Body: { "category": "curtain", "subcategory": "linen", "ids": ["...", "..."] }
//
// ids is the complete bucket in its new order. The answer is the bucket as
// stored, so the client can replace its last-known-good order with it.
func (h *ImageHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req models.ReorderImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	images, err := h.imageService.Reorder(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, images)
}
