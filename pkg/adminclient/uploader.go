package adminclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg/imagetype"
)

// Upload limits shared with the server defaults.
const (
	DefaultMaxFiles = 10
	DefaultMaxSize  = 10 << 20
	MaxRetries      = 3
	StaggerStep     = 100 * time.Millisecond
	MaxRetryWait    = 5 * time.Second
)

// UploadFields are the form fields sent with a file.
type UploadFields struct {
	Category    string
	Subcategory string
	Tags        []string
	Alt         string
	Title       string
}

// File is one file to upload.
type File struct {
	Name   string
	Size   int64
	Open   func() (io.ReadCloser, error)
	Fields UploadFields
}

// LocalFile builds a File from a path on disk.
func LocalFile(path string, fields UploadFields) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{
		Name:   filepath.Base(path),
		Size:   info.Size(),
		Open:   func() (io.ReadCloser, error) { return os.Open(path) },
		Fields: fields,
	}, nil
}

// FileResult is the outcome of one file.
type FileResult struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Attempts int           `json:"attempts"`
	Image    *models.Image `json:"image,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// Summary is what the upload banner shows.
type Summary struct {
	Succeeded []FileResult `json:"succeeded"`
	Failed    []FileResult `json:"failed"`
}

// ProgressFunc receives the upload percentage (0-100) of file index.
type ProgressFunc func(index int, name string, percent int)

// Uploader uploads files to POST /api/admin/upload-image.
type Uploader struct {
	Client   *Client
	MaxFiles int
	MaxSize  int64
	// MaxRetries is the number of attempts per file.
	MaxRetries int
	// Stagger delays the start of file i by i*Stagger.
	Stagger time.Duration
	// Backoff is the wait before attempt n+1, multiplied by n.
	Backoff time.Duration
	// MaxRetryWait caps a server Retry-After the uploader will sit out.
	// A longer one fails the file at once.
	MaxRetryWait time.Duration
	OnProgress   ProgressFunc
}

// NewUploader returns an Uploader with the default limits.
func NewUploader(c *Client) *Uploader {
	return &Uploader{
		Client:       c,
		MaxFiles:     DefaultMaxFiles,
		MaxSize:      DefaultMaxSize,
		MaxRetries:   MaxRetries,
		Stagger:      StaggerStep,
		Backoff:      500 * time.Millisecond,
		MaxRetryWait: MaxRetryWait,
	}
}

// ValidateFiles checks count, size and type of every file before anything
// is sent. The returned error lists every problem.
func (u *Uploader) ValidateFiles(files []File) error {
	if len(files) == 0 {
		return errors.New("no files selected")
	}
	if len(files) > u.MaxFiles {
		return fmt.Errorf("at most %d files can be uploaded at once, got %d", u.MaxFiles, len(files))
	}

	var errs []error
	for _, f := range files {
		if err := u.validateFile(f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (u *Uploader) validateFile(f File) error {
	if f.Size <= 0 {
		return errors.New("file is empty")
	}
	if f.Size > u.MaxSize {
		return fmt.Errorf("file is %d bytes, limit is %d", f.Size, u.MaxSize)
	}

	declared := imagetype.FromFilename(f.Name)
	if declared == "" {
		return fmt.Errorf("extension %q is not an accepted image type", filepath.Ext(f.Name))
	}

	if f.Open == nil {
		return errors.New("file cannot be opened")
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	head := make([]byte, imagetype.SniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	_, err = imagetype.Check(declared, head[:n])
	return err
}

// Upload validates files then uploads them concurrently, file i starting
// i*Stagger after the first. Cancelling ctx stops files that have not
// finished. The error is non-nil only when validation fails.
func (u *Uploader) Upload(ctx context.Context, files []File) (Summary, error) {
	if err := u.ValidateFiles(files); err != nil {
		return Summary{}, err
	}

	results := make([]FileResult, len(files))
	var wg sync.WaitGroup

	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			results[i] = u.uploadOne(ctx, i, f)
		}(i, f)
	}
	wg.Wait()

	var summary Summary
	for _, r := range results {
		if r.Err != nil {
			r.Error = r.Err.Error()
			summary.Failed = append(summary.Failed, r)
		} else {
			summary.Succeeded = append(summary.Succeeded, r)
		}
	}
	return summary, nil
}

func (u *Uploader) uploadOne(ctx context.Context, index int, f File) FileResult {
	res := FileResult{Index: index, Name: f.Name}

	if err := sleepCtx(ctx, time.Duration(index)*u.Stagger); err != nil {
		res.Err = err
		return res
	}

	attempts := max(u.MaxRetries, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt

		img, err := u.send(ctx, index, f)
		if err == nil {
			res.Image = img
			res.Err = nil
			u.progress(index, f.Name, 100)
			return res
		}
		res.Err = err

		wait := time.Duration(attempt) * u.Backoff
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if !apiErr.Retryable() {
				return res
			}
			if apiErr.RetryAfter > 0 {
				if apiErr.RetryAfter > u.MaxRetryWait {
					return res
				}
				wait = max(wait, apiErr.RetryAfter)
			}
		}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		if attempt < attempts {
			if err := sleepCtx(ctx, wait); err != nil {
				res.Err = err
				return res
			}
		}
	}
	return res
}

// send builds the multipart body in memory (files are at most MaxSize) so
// progress can be reported against a known total.
func (u *Uploader) send(ctx context.Context, index int, f File) (*models.Image, error) {
	body, contentType, err := buildMultipart(f)
	if err != nil {
		return nil, err
	}

	total := int64(body.Len())
	pr := &progressReader{
		r:     bytes.NewReader(body.Bytes()),
		total: total,
		report: func(pct int) {
			// 100 is reported once the server answered.
			if pct < 100 {
				u.progress(index, f.Name, pct)
			}
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Client.baseURL+"/api/admin/upload-image", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)

	var img models.Image
	if err := u.Client.do(req, &img); err != nil {
		return nil, err
	}
	return &img, nil
}

func (u *Uploader) progress(index int, name string, pct int) {
	if u.OnProgress != nil {
		u.OnProgress(index, name, pct)
	}
}

func buildMultipart(f File) (*bytes.Buffer, string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fields := map[string]string{
		"category":    f.Fields.Category,
		"subcategory": f.Fields.Subcategory,
		"tags":        strings.Join(f.Fields.Tags, ","),
		"alt":         f.Fields.Alt,
		"title":       f.Fields.Title,
	}
	for _, k := range []string{"category", "subcategory", "tags", "alt", "title"} {
		if fields[k] == "" {
			continue
		}
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, "", err
		}
	}

	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body, mw.FormDataContentType(), nil
}

// progressReader reports the share of the body the transport has read.
// Only changes of the integer percentage are reported.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	last   int
	report func(pct int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 {
		pct := int(p.read * 100 / p.total)
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return n, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
