package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khakishop/server/pkg/email"
)

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	at := time.Date(2026, 3, 9, 14, 5, 30, 0, time.UTC)

	report := &DiagnosticsReport{
		StartedAt: at,
		Checks:    []CheckResult{{Name: "database", Status: StatusPass, Duration: Millis(1500 * time.Microsecond)}},
	}
	path, err := WriteReport(dir, "diagnostics", at, report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "diagnostics-20260309-140530.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"duration_ms": 1.5`)

	var back DiagnosticsReport
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 1500*time.Microsecond, back.Checks[0].Duration.Duration())
}

type recordingSender struct {
	to    string
	alert email.Alert
	err   error
	calls int
}

func (s *recordingSender) SendAlert(_ context.Context, to string, alert email.Alert) error {
	s.calls++
	s.to, s.alert = to, alert
	return s.err
}

func TestSendDiagnosticsAlert(t *testing.T) {
	report := &DiagnosticsReport{
		StartedAt: time.Date(2026, 3, 9, 14, 5, 30, 0, time.UTC),
		Checks: []CheckResult{
			{Name: "database", Status: StatusPass},
			{Name: "missing_objects", Status: StatusFail, Detail: "1 image(s) without their object: b"},
			{Name: "orphan_objects", Status: StatusWarn},
			{Name: "build", Status: StatusFail, Detail: "go build ./... exited with 1"},
		},
	}

	sender := &recordingSender{}
	sent, err := SendDiagnosticsAlert(context.Background(), sender, "ops@khakishop.kr", report, "reports/d.json", "en")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "ops@khakishop.kr", sender.to)
	assert.Equal(t, "[khakishop] diagnostics reported 2 failure(s)", sender.alert.Subject)
	assert.Equal(t, []string{
		"missing_objects: 1 image(s) without their object: b",
		"build: go build ./... exited with 1",
	}, sender.alert.Lines)
	assert.Equal(t, "reports/d.json", sender.alert.ReportPath)

	korean, ok := DiagnosticsAlert(report, "", "ko")
	require.True(t, ok)
	assert.Contains(t, korean.Subject, "2건")

	sender.err = errors.New("resend down")
	_, err = SendDiagnosticsAlert(context.Background(), sender, "ops@khakishop.kr", report, "", "en")
	assert.Error(t, err)

	clean := &DiagnosticsReport{Checks: []CheckResult{{Name: "database", Status: StatusPass}}}
	sender = &recordingSender{}
	sent, err = SendDiagnosticsAlert(context.Background(), sender, "ops@khakishop.kr", clean, "", "en")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Zero(t, sender.calls)
}
