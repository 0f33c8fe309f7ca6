// Package maintenance holds the operator tasks behind cmd/khaki-maint:
// diagnostics, batch image placement and the performance monitor.
//
// Every task returns a report value and never stops at the first failing
// step; the CLI prints it and writes it as JSON under reports/.
package maintenance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const reportTimeLayout = "20060102-150405"

// WriteReport writes v as indented JSON to dir/<kind>-<timestamp>.json and
// returns the path.
func WriteReport(dir, kind string, at time.Time, v any) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s report: %w", kind, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", kind, at.UTC().Format(reportTimeLayout)))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", kind, err)
	}
	return path, nil
}

// Millis is a duration that encodes as fractional milliseconds.
type Millis time.Duration

func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(time.Duration(m).Microseconds()) / 1000)
}

func (m *Millis) UnmarshalJSON(b []byte) error {
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*m = Millis(time.Duration(ms * float64(time.Millisecond)))
	return nil
}

// Duration returns m as a time.Duration.
func (m Millis) Duration() time.Duration { return time.Duration(m) }
