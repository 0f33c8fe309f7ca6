package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/khakishop/server/pkg/imagetype"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/repository"
	"github.com/khakishop/server/ws"
)

// UploadService runs the image upload pipeline: validate, store the binary,
// insert the row at the end of its bucket.
type UploadService interface {
	Upload(ctx context.Context, req *models.ImageUploadRequest, file UploadFile) (*models.Image, error)
	// UploadBatch processes every file on its own; one failure does not stop
	// the others.
	UploadBatch(ctx context.Context, req *models.ImageUploadRequest, files []UploadFile) (*BatchUploadResult, error)
}

// UploadFile is one file of a multipart request.
type UploadFile struct {
	Filename    string
	Size        int64
	ContentType string // as declared by the client
	Open        func() (io.ReadCloser, error)
}

// BatchUploadResult is the response of the batch endpoint.
type BatchUploadResult struct {
	Uploaded []models.Image  `json:"uploaded"`
	Failed   []UploadFailure `json:"failed"`
}

// UploadFailure names a file that was rejected and why.
type UploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
	Status   int    `json:"status"`
}

type uploadService struct {
	imageRepo repository.ImageRepository
	store     storage.Store
	orders    *OrderAllocator
	hub       ws.EventPublisher
	maxSize   int64
	maxFiles  int
	now       func() time.Time
}

// NewUploadService is the constructor.
func NewUploadService(
	imageRepo repository.ImageRepository,
	store storage.Store,
	orders *OrderAllocator,
	hub ws.EventPublisher,
	maxSize int64,
	maxFiles int,
) UploadService {
	return &uploadService{
		imageRepo: imageRepo,
		store:     store,
		orders:    orders,
		hub:       hub,
		maxSize:   maxSize,
		maxFiles:  maxFiles,
		now:       time.Now,
	}
}

func (s *uploadService) Upload(ctx context.Context, req *models.ImageUploadRequest, file UploadFile) (*models.Image, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}
	return s.upload(ctx, req, file)
}

func (s *uploadService) UploadBatch(ctx context.Context, req *models.ImageUploadRequest, files []UploadFile) (*BatchUploadResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", pkg.ErrBadRequest)
	}
	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", pkg.ErrBadRequest, s.maxFiles)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrBadRequest, err.Error())
	}

	result := &BatchUploadResult{
		Uploaded: []models.Image{},
		Failed:   []UploadFailure{},
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := s.upload(ctx, req, f)
		if err != nil {
			status := pkg.StatusFor(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				log.Printf("[upload] batch file %q failed: %v", f.Filename, err)
				msg = pkg.ErrInternal.Error()
			}
			result.Failed = append(result.Failed, UploadFailure{Filename: f.Filename, Error: msg, Status: status})
			continue
		}
		result.Uploaded = append(result.Uploaded, *img)
	}

	return result, nil
}

// upload expects a validated request.
func (s *uploadService) upload(ctx context.Context, req *models.ImageUploadRequest, file UploadFile) (*models.Image, error) {
	if file.Size > s.maxSize {
		return nil, fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrTooLarge, s.maxSize/(1024*1024))
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, imagetype.SniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", pkg.ErrBadRequest)
	}

	mimeType, err := imagetype.Check(file.ContentType, head)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", pkg.ErrUnsupportedMedia, err.Error())
	}

	id := models.NewImageID(s.now())
	key := id + imagetype.Extension(mimeType)

	// The declared size is not trusted: read at most maxSize+1 bytes.
	body := &countingReader{r: io.LimitReader(io.MultiReader(bytes.NewReader(head), src), s.maxSize+1)}
	if err := s.store.Put(ctx, key, body, -1, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	if body.n > s.maxSize {
		s.removeObject(key)
		return nil, fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrTooLarge, s.maxSize/(1024*1024))
	}

	img := &models.Image{
		ID:          id,
		URL:         s.store.URL(key),
		StorageKey:  key,
		Filename:    sanitizeFilename(file.Filename),
		MimeType:    mimeType,
		Size:        body.n,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Tags:        req.Tags,
		Keywords:    []string{},
		Metadata:    req.Metadata(),
	}

	err = s.orders.Append(ctx, img.Category, img.Subcategory, func(order int) error {
		img.DisplayOrder = order
		return s.imageRepo.Create(ctx, img)
	})
	if err != nil {
		s.removeObject(key)
		return nil, err
	}

	log.Printf("[upload] stored %s (%s, %d bytes) in %s/%s at order %d",
		img.ID, img.MimeType, img.Size, img.Category, img.Subcategory, img.DisplayOrder)

	s.hub.BroadcastToAll(ws.Event{Op: ws.OpImageCreate, Data: img})
	return img, nil
}

// removeObject cleans up after a failed upload. It runs on its own context
// so a cancelled request still cleans up.
func (s *uploadService) removeObject(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		log.Printf("[upload] failed to remove orphan object %s: %v", key, err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitizeFilename keeps the base name of an uploaded file and drops
// separators and control characters.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\x00' || unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name
}
