package maintenance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/khakishop/server/database"
	"github.com/khakishop/server/pkg/storage"
	"github.com/khakishop/server/repository"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Command is a shell command run as a diagnostic, e.g. the build.
type Command struct {
	Name string   `json:"name"`
	Argv []string `json:"argv"`
	Dir  string   `json:"dir,omitempty"`
}

// DefaultCommands are the build and audit steps run when none are
// configured.
func DefaultCommands() []Command {
	return []Command{
		{Name: "build", Argv: []string{"go", "build", "./..."}},
		{Name: "audit", Argv: []string{"go", "vet", "./..."}},
	}
}

// ParseCommand splits "name=program arg arg" into a Command.
func ParseCommand(spec string) (Command, error) {
	name, line, ok := strings.Cut(spec, "=")
	argv := strings.Fields(line)
	if !ok || strings.TrimSpace(name) == "" || len(argv) == 0 {
		return Command{}, fmt.Errorf("invalid command %q, want name=program [args]", spec)
	}
	return Command{Name: strings.TrimSpace(name), Argv: argv}, nil
}

// CheckResult is one line of the diagnostics report.
type CheckResult struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Detail   string `json:"detail"`
	Duration Millis `json:"duration_ms"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Output   string `json:"output,omitempty"`
}

// DiagnosticsReport is written to reports/diagnostics-<ts>.json.
type DiagnosticsReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Checks     []CheckResult `json:"checks"`
	Failed     int           `json:"failed"`
	Warnings   int           `json:"warnings"`
}

// FailedChecks returns the checks with StatusFail.
func (r *DiagnosticsReport) FailedChecks() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if c.Status == StatusFail {
			out = append(out, c)
		}
	}
	return out
}

// DiagnoseOptions selects what Diagnose looks at. Nil dependencies skip
// their checks with a warning.
type DiagnoseOptions struct {
	DB        *database.DB
	Images    repository.ImageRepository
	Store     storage.Store
	UploadDir string

	Commands       []Command
	CommandTimeout time.Duration
	// OutputLines is how many trailing lines of command output are kept.
	OutputLines int

	// OnCheck is called after every check, for live output.
	OnCheck func(CheckResult)
}

// Diagnose runs every check in order. A failing check is recorded and the
// next one runs anyway.
func Diagnose(ctx context.Context, opts DiagnoseOptions) *DiagnosticsReport {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Minute
	}
	if opts.OutputLines <= 0 {
		opts.OutputLines = 20
	}

	report := &DiagnosticsReport{StartedAt: time.Now().UTC()}
	record := func(res CheckResult) {
		switch res.Status {
		case StatusFail:
			report.Failed++
		case StatusWarn:
			report.Warnings++
		}
		report.Checks = append(report.Checks, res)
		if opts.OnCheck != nil {
			opts.OnCheck(res)
		}
	}
	run := func(name string, check func() (Status, string)) {
		start := time.Now()
		status, detail := check()
		record(CheckResult{Name: name, Status: status, Detail: detail, Duration: Millis(time.Since(start))})
	}

	run("database", func() (Status, string) { return checkDatabase(ctx, opts.DB) })
	run("upload_dir", func() (Status, string) { return checkWritable(opts.UploadDir) })
	run("storage", func() (Status, string) {
		if opts.Store == nil {
			return StatusWarn, "no store configured"
		}
		if err := opts.Store.Check(ctx); err != nil {
			return StatusFail, err.Error()
		}
		return StatusPass, opts.Store.Driver() + " store reachable"
	})

	orphans, missing := checkObjects(ctx, opts.Images, opts.Store)
	record(orphans)
	record(missing)

	run("display_order", func() (Status, string) { return checkOrderSlots(ctx, opts.Images) })

	for _, cmd := range opts.Commands {
		if ctx.Err() != nil {
			break
		}
		record(runCommand(ctx, cmd, opts.CommandTimeout, opts.OutputLines))
	}

	report.FinishedAt = time.Now().UTC()
	return report
}

func checkDatabase(ctx context.Context, db *database.DB) (Status, string) {
	if db == nil {
		return StatusWarn, "no database configured"
	}
	if err := db.Ping(ctx); err != nil {
		return StatusFail, fmt.Sprintf("ping failed: %v", err)
	}
	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return StatusFail, fmt.Sprintf("cannot read migrations: %v", err)
	}
	return StatusPass, fmt.Sprintf("%d migration(s) applied", len(applied))
}

func checkWritable(dir string) (Status, string) {
	if dir == "" {
		return StatusWarn, "no upload dir configured"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StatusFail, err.Error()
	}
	f, err := os.CreateTemp(dir, ".diagnose-*")
	if err != nil {
		return StatusFail, fmt.Sprintf("not writable: %v", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return StatusPass, filepath.Clean(dir) + " is writable"
}

// checkObjects compares stored objects with image rows. Objects without a
// row are only a warning; rows without their object are broken images.
func checkObjects(ctx context.Context, images repository.ImageRepository, store storage.Store) (CheckResult, CheckResult) {
	start := time.Now()
	orphans := CheckResult{Name: "orphan_objects"}
	missing := CheckResult{Name: "missing_objects"}

	finish := func(status Status, detail string) (CheckResult, CheckResult) {
		d := Millis(time.Since(start))
		orphans.Status, orphans.Detail, orphans.Duration = status, detail, d
		missing.Status, missing.Detail, missing.Duration = status, detail, d
		return orphans, missing
	}

	if images == nil || store == nil {
		return finish(StatusWarn, "database or store not configured")
	}

	keys, err := store.List(ctx)
	if err != nil {
		return finish(StatusFail, fmt.Sprintf("cannot list objects: %v", err))
	}
	rows, err := images.List(ctx, "")
	if err != nil {
		return finish(StatusFail, fmt.Sprintf("cannot list images: %v", err))
	}

	stored := make(map[string]bool, len(keys))
	for _, k := range keys {
		stored[k] = true
	}
	referenced := make(map[string]bool, len(rows))
	var lost []string
	for _, img := range rows {
		referenced[img.StorageKey] = true
		if !stored[img.StorageKey] {
			lost = append(lost, img.ID)
		}
	}
	var extra []string
	for _, k := range keys {
		if !referenced[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	d := Millis(time.Since(start))
	orphans.Duration, missing.Duration = d, d

	orphans.Status, orphans.Detail = StatusPass, fmt.Sprintf("%d object(s), all referenced", len(keys))
	if len(extra) > 0 {
		orphans.Status = StatusWarn
		orphans.Detail = fmt.Sprintf("%d object(s) without an image row: %s", len(extra), preview(extra))
	}

	missing.Status, missing.Detail = StatusPass, fmt.Sprintf("%d image(s), all objects present", len(rows))
	if len(lost) > 0 {
		missing.Status = StatusFail
		missing.Detail = fmt.Sprintf("%d image(s) without their object: %s", len(lost), preview(lost))
	}
	return orphans, missing
}

func checkOrderSlots(ctx context.Context, images repository.ImageRepository) (Status, string) {
	if images == nil {
		return StatusWarn, "no database configured"
	}
	slots, err := images.DuplicateOrderSlots(ctx)
	if err != nil {
		return StatusFail, err.Error()
	}
	if len(slots) == 0 {
		return StatusPass, "no duplicate display_order slots"
	}

	parts := make([]string, len(slots))
	for i, s := range slots {
		parts[i] = fmt.Sprintf("%s/%s#%d×%d", s.Category, s.Subcategory, s.DisplayOrder, s.Count)
	}
	return StatusFail, fmt.Sprintf("%d duplicate slot(s): %s", len(slots), preview(parts))
}

func runCommand(ctx context.Context, cmd Command, timeout time.Duration, lines int) (res CheckResult) {
	res.Name = cmd.Name
	start := time.Now()
	defer func() { res.Duration = Millis(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	res.Output = tail(out.String(), lines)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		code := 0
		res.ExitCode = &code
		res.Status, res.Detail = StatusPass, strings.Join(cmd.Argv, " ")
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status, res.Detail = StatusFail, fmt.Sprintf("timed out after %s", timeout)
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		res.ExitCode = &code
		res.Status, res.Detail = StatusFail, fmt.Sprintf("%s exited with %d", strings.Join(cmd.Argv, " "), code)
	default:
		res.Status, res.Detail = StatusFail, err.Error()
	}
	return res
}

// tail keeps the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func preview(items []string) string {
	const limit = 5
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + fmt.Sprintf(" (+%d more)", len(items)-limit)
}
