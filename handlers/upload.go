package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/ratelimit"
	"github.com/khakishop/server/services"
)

const (
	// multipartMemory is what ParseMultipartForm keeps in memory; larger
	// parts spill to temp files.
	multipartMemory = 8 << 20

	// formOverhead covers the form fields and part headers next to the files.
	formOverhead = 1 << 20
)

// UploadHandler serves the admin upload endpoints.
type UploadHandler struct {
	uploadService services.UploadService
	limiter       *ratelimit.UploadRateLimiter
	maxSize       int64
	maxFiles      int
	defaultLang   string
}

// NewUploadHandler is the constructor. A nil limiter disables throttling.
func NewUploadHandler(
	uploadService services.UploadService,
	limiter *ratelimit.UploadRateLimiter,
	maxSize int64,
	maxFiles int,
	defaultLang string,
) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		limiter:       limiter,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		defaultLang:   defaultLang,
	}
}

// Upload godoc
// POST /api/admin/upload-image
// Multipart: file + category, subcategory, tags (comma list), alt, title.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.coolingDown(w, r) {
		return
	}
	if !h.parseForm(w, r, h.maxSize+formOverhead) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	_, header, err := r.FormFile("file")
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "file field is required")
		return
	}

	if !h.allow(w, r, 1) {
		return
	}

	img, err := h.uploadService.Upload(r.Context(), uploadRequest(r), uploadFile(header))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, img)
}

// UploadBatch godoc
// POST /api/admin/upload-images
// Multipart: files (repeated) + the same fields as Upload.
//
// Every file is processed on its own; the answer lists what was stored and
// what failed with its reason.
func (h *UploadHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if h.coolingDown(w, r) {
		return
	}
	if !h.parseForm(w, r, int64(h.maxFiles)*h.maxSize+formOverhead) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "files field is required")
		return
	}
	if len(headers) > h.maxFiles {
		pkg.ErrorWithMessage(w, http.StatusBadRequest,
			localizerFor(r, h.defaultLang).TWithParams("upload.tooMany", map[string]string{
				"max": strconv.Itoa(h.maxFiles),
			}))
		return
	}

	if !h.allow(w, r, len(headers)) {
		return
	}

	files := make([]services.UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = uploadFile(fh)
	}

	result, err := h.uploadService.UploadBatch(r.Context(), uploadRequest(r), files)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	status := http.StatusCreated
	if len(result.Uploaded) == 0 {
		status = http.StatusOK
	}
	pkg.JSON(w, status, result)
}

// parseForm caps the body at limit and parses the multipart form. On
// failure it writes the response and returns false.
func (h *UploadHandler) parseForm(w http.ResponseWriter, r *http.Request, limit int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			pkg.Error(w, pkg.ErrTooLarge)
			return false
		}
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "failed to parse multipart form")
		return false
	}
	return true
}

// coolingDown refuses the request before its body is read when the admin
// is already in an upload cooldown. Nothing is counted here; allow charges
// the files once the form is parsed.
func (h *UploadHandler) coolingDown(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return false
	}

	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return true
	}

	if wait := h.limiter.CooldownSeconds(user.ID); wait > 0 {
		h.throttled(w, r, wait)
		return true
	}
	return false
}

// allow applies the per-admin upload limiter to n files.
func (h *UploadHandler) allow(w http.ResponseWriter, r *http.Request, n int) bool {
	if h.limiter == nil {
		return true
	}

	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return false
	}

	if !h.limiter.Allow(user.ID, n) {
		h.throttled(w, r, h.limiter.CooldownSeconds(user.ID))
		return false
	}
	return true
}

func (h *UploadHandler) throttled(w http.ResponseWriter, r *http.Request, wait int) {
	w.Header().Set("Retry-After", strconv.Itoa(wait))
	pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
		localizerFor(r, h.defaultLang).TWithParams("upload.throttled", map[string]string{
			"wait": ratelimit.FormatRetryMessage(wait),
		}))
}

func uploadRequest(r *http.Request) *models.ImageUploadRequest {
	return &models.ImageUploadRequest{
		Category:    r.FormValue("category"),
		Subcategory: r.FormValue("subcategory"),
		Tags:        models.SplitTags(r.FormValue("tags")),
		Alt:         r.FormValue("alt"),
		Title:       r.FormValue("title"),
	}
}

func uploadFile(fh *multipart.FileHeader) services.UploadFile {
	return services.UploadFile{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
