package handlers

import (
	"net/http"

	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/services"
)

// CategoryHandler serves the fixed category catalog.
type CategoryHandler struct {
	categoryService services.CategoryService
	defaultLang     string
}

// NewCategoryHandler is the constructor.
func NewCategoryHandler(categoryService services.CategoryService, defaultLang string) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		defaultLang:     defaultLang,
	}
}

// List godoc
// GET /api/categories?lang=en
// Labels follow ?lang=, then Accept-Language.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	lang := localizerFor(r, h.defaultLang).Lang()

	categories, err := h.categoryService.List(r.Context(), lang)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, categories)
}

// Get godoc
// GET /api/categories/{slug}
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	lang := localizerFor(r, h.defaultLang).Lang()

	category, err := h.categoryService.Get(r.Context(), r.PathValue("slug"), lang)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, category)
}
