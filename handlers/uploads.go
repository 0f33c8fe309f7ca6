package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/imagetype"
	"github.com/khakishop/server/pkg/storage"
)

// FileHandler serves stored image objects under /api/uploads/{key}.
type FileHandler struct {
	store storage.Store
}

// NewFileHandler is the constructor.
func NewFileHandler(store storage.Store) *FileHandler {
	return &FileHandler{store: store}
}

// Serve godoc
// GET /api/uploads/{key}
//
// Only flat keys are served; anything with a path separator is a 404.
// Keys embed a unique image id, so the response is cached for good.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if strings.ContainsAny(key, `/\`) || storage.ValidKey(key) != nil {
		http.NotFound(w, r)
		return
	}

	obj, err := h.store.Open(r.Context(), key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("[uploads] open %s: %v", key, err)
		pkg.Error(w, err)
		return
	}
	defer obj.Close()

	if ct := imagetype.FromFilename(key); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	// Local files support range requests.
	if rs, ok := obj.(io.ReadSeeker); ok {
		http.ServeContent(w, r, key, time.Time{}, rs)
		return
	}

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("[uploads] copy %s: %v", key, err)
	}
}
