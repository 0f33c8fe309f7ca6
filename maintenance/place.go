package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg/adminclient"
	"github.com/khakishop/server/pkg/imagetype"
	"github.com/khakishop/server/services"
	"github.com/khakishop/server/ws"
)

// Manifest describes a batch placement:
//
//	source_dir: ./incoming
//	entries:
//	  - file: living-01.jpg
//	    category: gallery
//	    subcategory: living
//	    tags: [beige, linen]
//	    title: Living room, linen blackout
//	  - pattern: "roller-*.png"
//	    category: blind
//	    subcategory: roller
type Manifest struct {
	SourceDir string          `yaml:"source_dir"`
	Entries   []ManifestEntry `yaml:"entries"`
}

// ManifestEntry places one file, or every file matching Pattern.
type ManifestEntry struct {
	File        string   `yaml:"file"`
	Pattern     string   `yaml:"pattern"`
	Category    string   `yaml:"category"`
	Subcategory string   `yaml:"subcategory"`
	Tags        []string `yaml:"tags"`
	Title       string   `yaml:"title"`
	Alt         string   `yaml:"alt"`
}

// LoadManifest reads a YAML manifest. A relative source_dir is resolved
// against the manifest's directory; unknown keys are an error.
func LoadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest %s is empty", path)
		}
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	if m.SourceDir == "" {
		m.SourceDir = "."
	}
	if !filepath.IsAbs(m.SourceDir) {
		m.SourceDir = filepath.Join(filepath.Dir(path), m.SourceDir)
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("manifest %s has no entries", path)
	}
	return &m, nil
}

// PlannedFile is one file ready to be placed.
type PlannedFile struct {
	Path   string
	Fields adminclient.UploadFields
}

// PlacementResult is the outcome for one file (or one bad entry).
type PlacementResult struct {
	File        string `json:"file"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	ImageID     string `json:"image_id,omitempty"`
	URL         string `json:"url,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`
	Error       string `json:"error,omitempty"`
}

// OK reports whether the file was placed.
func (r PlacementResult) OK() bool { return r.Error == "" }

// PlacementReport is written to reports/placement-<ts>.json.
type PlacementReport struct {
	Mode       string            `json:"mode"`
	SourceDir  string            `json:"source_dir"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Placed     int               `json:"placed"`
	Failed     int               `json:"failed"`
	Results    []PlacementResult `json:"results"`
}

// Placer stores planned files somewhere and reports per file.
type Placer interface {
	Mode() string
	Place(ctx context.Context, files []PlannedFile) []PlacementResult
}

// Plan expands the manifest into files. Entries that cannot be placed
// (bad category, missing file, pattern without matches) come back as
// failed results instead of stopping the plan.
func (m *Manifest) Plan() ([]PlannedFile, []PlacementResult) {
	var files []PlannedFile
	var rejected []PlacementResult

	for i, e := range m.Entries {
		label := e.File
		if label == "" {
			label = e.Pattern
		}
		reject := func(format string, args ...any) {
			rejected = append(rejected, PlacementResult{
				File:        label,
				Category:    e.Category,
				Subcategory: e.Subcategory,
				Error:       fmt.Sprintf("entry %d: ", i+1) + fmt.Sprintf(format, args...),
			})
		}

		if err := models.ValidateCategory(e.Category, e.Subcategory); err != nil {
			reject("%v", err)
			continue
		}

		var paths []string
		switch {
		case e.File != "" && e.Pattern != "":
			reject("set either file or pattern, not both")
			continue
		case e.File != "":
			paths = []string{filepath.Join(m.SourceDir, e.File)}
		case e.Pattern != "":
			matches, err := filepath.Glob(filepath.Join(m.SourceDir, e.Pattern))
			if err != nil {
				reject("bad pattern: %v", err)
				continue
			}
			if len(matches) == 0 {
				reject("pattern matched no files")
				continue
			}
			sort.Strings(matches)
			paths = matches
		default:
			reject("file or pattern is required")
			continue
		}

		fields := adminclient.UploadFields{
			Category:    e.Category,
			Subcategory: e.Subcategory,
			Tags:        models.NormalizeTags(e.Tags),
			Title:       e.Title,
			Alt:         e.Alt,
		}
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				label = filepath.Base(p)
				reject("%v", err)
				continue
			}
			if info.IsDir() {
				continue
			}
			files = append(files, PlannedFile{Path: p, Fields: fields})
		}
	}

	return files, rejected
}

// PlaceBatch plans the manifest and hands every valid file to placer.
func PlaceBatch(ctx context.Context, m *Manifest, placer Placer) *PlacementReport {
	report := &PlacementReport{
		Mode:      placer.Mode(),
		SourceDir: m.SourceDir,
		StartedAt: time.Now().UTC(),
	}

	files, rejected := m.Plan()
	report.Results = append(report.Results, rejected...)
	if len(files) > 0 {
		report.Results = append(report.Results, placer.Place(ctx, files)...)
	}

	for _, r := range report.Results {
		if r.OK() {
			report.Placed++
		} else {
			report.Failed++
		}
	}
	report.FinishedAt = time.Now().UTC()
	return report
}

// ─── Copy mode ───

// ServicePlacer writes straight into the local database and store through
// the same upload pipeline the API uses. Only run it against a store the
// server is not appending to at the same moment: display_order slots are
// allocated per process.
type ServicePlacer struct {
	Uploads services.UploadService
}

func (p *ServicePlacer) Mode() string { return "copy" }

func (p *ServicePlacer) Place(ctx context.Context, files []PlannedFile) []PlacementResult {
	results := make([]PlacementResult, 0, len(files))
	for _, f := range files {
		res := PlacementResult{
			File:        filepath.Base(f.Path),
			Category:    f.Fields.Category,
			Subcategory: f.Fields.Subcategory,
			Attempts:    1,
		}

		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		img, err := p.placeOne(ctx, f)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.ImageID, res.URL = img.ID, img.URL
		}
		results = append(results, res)
	}
	return results
}

func (p *ServicePlacer) placeOne(ctx context.Context, f PlannedFile) (*models.Image, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, err
	}

	path := f.Path
	return p.Uploads.Upload(ctx, &models.ImageUploadRequest{
		Category:    f.Fields.Category,
		Subcategory: f.Fields.Subcategory,
		Tags:        f.Fields.Tags,
		Alt:         f.Fields.Alt,
		Title:       f.Fields.Title,
	}, services.UploadFile{
		Filename:    filepath.Base(path),
		Size:        info.Size(),
		ContentType: imagetype.FromFilename(path),
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	})
}

// NopPublisher drops events. Copy mode has no connected admins.
type NopPublisher struct{}

func (NopPublisher) BroadcastToAll(ws.Event)    {}
func (NopPublisher) GetOnlineUserIDs() []string { return nil }

// ─── API mode ───

// APIPlacer uploads through a running server's admin API.
type APIPlacer struct {
	Uploader *adminclient.Uploader
}

func (p *APIPlacer) Mode() string { return "api" }

// Place validates every file on its own so one bad file does not reject the
// rest, then uploads the valid ones in chunks of Uploader.MaxFiles.
func (p *APIPlacer) Place(ctx context.Context, files []PlannedFile) []PlacementResult {
	results := make([]PlacementResult, 0, len(files))
	var valid []adminclient.File
	var planned []PlannedFile

	for _, f := range files {
		file, err := adminclient.LocalFile(f.Path, f.Fields)
		if err == nil {
			err = p.Uploader.ValidateFiles([]adminclient.File{file})
		}
		if err != nil {
			results = append(results, PlacementResult{
				File:        filepath.Base(f.Path),
				Category:    f.Fields.Category,
				Subcategory: f.Fields.Subcategory,
				Error:       err.Error(),
			})
			continue
		}
		valid = append(valid, file)
		planned = append(planned, f)
	}

	chunk := max(p.Uploader.MaxFiles, 1)
	for start := 0; start < len(valid); start += chunk {
		end := min(start+chunk, len(valid))
		summary, err := p.Uploader.Upload(ctx, valid[start:end])

		byIndex := make(map[int]adminclient.FileResult, end-start)
		for _, r := range append(summary.Succeeded, summary.Failed...) {
			byIndex[r.Index] = r
		}

		for i := start; i < end; i++ {
			f := planned[i]
			res := PlacementResult{
				File:        filepath.Base(f.Path),
				Category:    f.Fields.Category,
				Subcategory: f.Fields.Subcategory,
			}
			r, ok := byIndex[i-start]
			switch {
			case err != nil:
				res.Error = err.Error()
			case !ok:
				res.Error = "no result from uploader"
			case r.Error != "":
				res.Attempts, res.Error = r.Attempts, r.Error
			case r.Image != nil:
				res.Attempts, res.ImageID, res.URL = r.Attempts, r.Image.ID, r.Image.URL
			default:
				res.Attempts = r.Attempts
			}
			results = append(results, res)
		}
	}

	return results
}
