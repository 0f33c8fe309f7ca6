package maintenance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg/adminclient"
)

const manifestYAML = `
source_dir: incoming
entries:
  - file: living-01.png
    category: gallery
    subcategory: living
    tags: [Beige, linen, beige]
    title: Living room
  - pattern: "roller-*.png"
    category: blind
    subcategory: roller
  - file: sofa.png
    category: sofa
  - pattern: "nothing-*.png"
    category: curtain
  - file: missing.png
    category: curtain
`

func writeManifest(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()

	m, err := LoadManifest(writeManifest(t, dir, manifestYAML))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "incoming"), m.SourceDir)
	require.Len(t, m.Entries, 5)
	assert.Equal(t, "roller-*.png", m.Entries[1].Pattern)
	assert.Equal(t, []string{"Beige", "linen", "beige"}, m.Entries[0].Tags)

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadManifest(writeManifest(t, t.TempDir(), "entries:\n  - file: a.png\n    categroy: curtain\n"))
		assert.ErrorContains(t, err, "categroy")
	})

	t.Run("no entries", func(t *testing.T) {
		_, err := LoadManifest(writeManifest(t, t.TempDir(), "source_dir: .\n"))
		assert.ErrorContains(t, err, "no entries")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := LoadManifest(writeManifest(t, t.TempDir(), ""))
		assert.ErrorContains(t, err, "empty")
	})

	t.Run("absolute source dir", func(t *testing.T) {
		abs := t.TempDir()
		m, err := LoadManifest(writeManifest(t, t.TempDir(), "source_dir: "+abs+"\nentries:\n  - file: a.png\n    category: curtain\n"))
		require.NoError(t, err)
		assert.Equal(t, abs, m.SourceDir)
	})
}

func TestManifest_Plan(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, filepath.Join(dir, "incoming"), map[string][]byte{
		"living-01.png": nil,
		"roller-b.png":  nil,
		"roller-a.png":  nil,
	})
	m, err := LoadManifest(writeManifest(t, dir, manifestYAML))
	require.NoError(t, err)

	files, rejected := m.Plan()
	require.Len(t, files, 3)
	assert.Equal(t, "living-01.png", filepath.Base(files[0].Path))
	assert.Equal(t, []string{"beige", "linen"}, files[0].Fields.Tags)
	assert.Equal(t, "roller-a.png", filepath.Base(files[1].Path), "pattern matches are sorted")
	assert.Equal(t, "roller-b.png", filepath.Base(files[2].Path))
	assert.Equal(t, "roller", files[2].Fields.Subcategory)

	require.Len(t, rejected, 3)
	assert.Contains(t, rejected[0].Error, "entry 3")
	assert.Equal(t, "sofa.png", rejected[0].File)
	assert.Contains(t, rejected[1].Error, "matched no files")
	assert.Equal(t, "missing.png", rejected[2].File)
}

func TestPlaceBatch_CopyMode(t *testing.T) {
	e := newEnv(t)
	writeFiles(t, filepath.Join(e.dir, "incoming"), map[string][]byte{
		"living-01.png": nil,
		"roller-a.png":  nil,
		"roller-b.png":  []byte("plain text pretending to be a png"),
	})
	m, err := LoadManifest(writeManifest(t, e.dir, manifestYAML))
	require.NoError(t, err)

	report := PlaceBatch(context.Background(), m, &ServicePlacer{Uploads: e.uploads})
	assert.Equal(t, "copy", report.Mode)
	assert.Equal(t, 2, report.Placed)
	assert.Equal(t, 4, report.Failed)

	placed := map[string]PlacementResult{}
	for _, r := range report.Results {
		if r.OK() {
			placed[r.File] = r
		}
	}
	require.Contains(t, placed, "living-01.png")
	require.Contains(t, placed, "roller-a.png")

	img, err := e.images.GetByID(context.Background(), placed["living-01.png"].ImageID)
	require.NoError(t, err)
	assert.Equal(t, "gallery", img.Category)
	assert.Equal(t, "living", img.Subcategory)
	assert.Equal(t, []string{"beige", "linen"}, img.Tags)
	assert.Equal(t, "Living room", img.Title())

	ok, err := e.store.Exists(context.Background(), img.StorageKey)
	require.NoError(t, err)
	assert.True(t, ok)

	// The placed files leave the store consistent.
	diag := Diagnose(context.Background(), DiagnoseOptions{DB: e.db, Images: e.images, Store: e.store})
	assert.Zero(t, diag.Failed)
}

func TestPlaceBatch_CopyModeCancelled(t *testing.T) {
	e := newEnv(t)
	writeFiles(t, filepath.Join(e.dir, "incoming"), map[string][]byte{"living-01.png": nil})
	m, err := LoadManifest(writeManifest(t, e.dir, "source_dir: incoming\nentries:\n  - file: living-01.png\n    category: gallery\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := PlaceBatch(ctx, m, &ServicePlacer{Uploads: e.uploads})
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Results[0].Error, "canceled")
}

// fakeAdminAPI accepts uploads like POST /api/admin/upload-image, failing
// files whose name starts with "reject".
func fakeAdminAPI(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/admin/upload-image", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		if len(hdr.Filename) >= 6 && hdr.Filename[:6] == "reject" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "invalid category"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": models.Image{
				ID:          "img-" + hdr.Filename,
				URL:         "/api/uploads/img-" + hdr.Filename,
				Size:        int64(len(data)),
				Category:    r.FormValue("category"),
				Subcategory: r.FormValue("subcategory"),
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlaceBatch_APIMode(t *testing.T) {
	var calls atomic.Int32
	srv := fakeAdminAPI(t, &calls)

	dir := t.TempDir()
	writeFiles(t, filepath.Join(dir, "incoming"), map[string][]byte{
		"roller-1.png":      nil,
		"roller-2.png":      nil,
		"roller-3.png":      nil,
		"roller-notes.png":  []byte("not an image at all"),
		"reject-living.png": nil,
	})
	m, err := LoadManifest(writeManifest(t, dir, `
source_dir: incoming
entries:
  - pattern: "roller-*.png"
    category: blind
    subcategory: roller
  - file: reject-living.png
    category: gallery
`))
	require.NoError(t, err)

	uploader := adminclient.NewUploader(adminclient.New(srv.URL, adminclient.WithToken("tok")))
	uploader.MaxFiles = 2
	uploader.Stagger = 0
	uploader.Backoff = time.Millisecond

	report := PlaceBatch(context.Background(), m, &APIPlacer{Uploader: uploader})
	assert.Equal(t, "api", report.Mode)
	assert.Equal(t, 3, report.Placed)
	assert.Equal(t, 2, report.Failed)
	assert.EqualValues(t, 4, calls.Load(), "invalid files are never sent")

	byFile := map[string]PlacementResult{}
	for _, r := range report.Results {
		byFile[r.File] = r
	}
	assert.Equal(t, "img-roller-1.png", byFile["roller-1.png"].ImageID)
	assert.Equal(t, "/api/uploads/img-roller-3.png", byFile["roller-3.png"].URL)
	assert.Equal(t, 1, byFile["roller-3.png"].Attempts)
	assert.Contains(t, byFile["roller-notes.png"].Error, "not an image")
	assert.Contains(t, byFile["reject-living.png"].Error, "invalid category")
	assert.Equal(t, 1, byFile["reject-living.png"].Attempts, "client errors are not retried")
}
