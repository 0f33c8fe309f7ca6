package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// PerfOptions configures MonitorPerformance.
type PerfOptions struct {
	URLs    []string
	Samples int
	// Timeout bounds one request.
	Timeout time.Duration
	// BudgetP95 marks an endpoint as over budget when its p95 exceeds it.
	// Zero disables the budget.
	BudgetP95 time.Duration
	Client    *http.Client
}

// LatencyStats are computed over successful samples only.
type LatencyStats struct {
	Min Millis `json:"min_ms"`
	Avg Millis `json:"avg_ms"`
	P50 Millis `json:"p50_ms"`
	P95 Millis `json:"p95_ms"`
	Max Millis `json:"max_ms"`
}

// EndpointResult is one measured URL.
type EndpointResult struct {
	URL        string         `json:"url"`
	Samples    int            `json:"samples"`
	Statuses   map[string]int `json:"statuses"`
	Errors     []string       `json:"errors,omitempty"`
	Bytes      int64          `json:"bytes"`
	Latency    LatencyStats   `json:"latency"`
	OverBudget bool           `json:"over_budget"`
}

// Healthy reports whether every sample returned 2xx or 3xx.
func (e *EndpointResult) Healthy() bool {
	if len(e.Errors) > 0 {
		return false
	}
	for code := range e.Statuses {
		if n, err := strconv.Atoi(code); err != nil || n >= 400 {
			return false
		}
	}
	return true
}

// PerformanceReport is written to reports/performance-<ts>.json.
type PerformanceReport struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Budget     Millis           `json:"budget_p95_ms,omitempty"`
	Endpoints  []EndpointResult `json:"endpoints"`
}

// Passed reports whether every endpoint was healthy and within budget.
func (r *PerformanceReport) Passed() bool {
	for i := range r.Endpoints {
		if !r.Endpoints[i].Healthy() || r.Endpoints[i].OverBudget {
			return false
		}
	}
	return true
}

// MonitorPerformance requests every URL Samples times, one request at a
// time, and records status codes and latency.
func MonitorPerformance(ctx context.Context, opts PerfOptions) (*PerformanceReport, error) {
	if len(opts.URLs) == 0 {
		return nil, errors.New("no urls to measure")
	}
	for _, raw := range opts.URLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("invalid url %q", raw)
		}
	}
	if opts.Samples <= 0 {
		opts.Samples = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	report := &PerformanceReport{
		StartedAt: time.Now().UTC(),
		Budget:    Millis(opts.BudgetP95),
	}
	for _, u := range opts.URLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := measure(ctx, opts, u)
		if opts.BudgetP95 > 0 && res.Latency.P95.Duration() > opts.BudgetP95 {
			res.OverBudget = true
		}
		report.Endpoints = append(report.Endpoints, res)
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

func measure(ctx context.Context, opts PerfOptions, target string) EndpointResult {
	res := EndpointResult{URL: target, Statuses: map[string]int{}}
	var latencies []time.Duration

	for i := 0; i < opts.Samples; i++ {
		if ctx.Err() != nil {
			break
		}
		res.Samples++

		d, status, n, err := sample(ctx, opts, target)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Statuses[strconv.Itoa(status)]++
		res.Bytes += n
		latencies = append(latencies, d)
	}

	res.Latency = latencyStats(latencies)
	return res
}

func sample(ctx context.Context, opts PerfOptions, target string) (time.Duration, int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, 0, err
	}

	start := time.Now()
	resp, err := opts.Client.Do(req)
	if err != nil {
		return 0, 0, 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("reading body: %w", err)
	}
	return time.Since(start), resp.StatusCode, n, nil
}

func latencyStats(ds []time.Duration) LatencyStats {
	if len(ds) == 0 {
		return LatencyStats{}
	}
	sorted := append([]time.Duration(nil), ds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return LatencyStats{
		Min: Millis(sorted[0]),
		Avg: Millis(sum / time.Duration(len(sorted))),
		P50: Millis(percentile(sorted, 50)),
		P95: Millis(percentile(sorted, 95)),
		Max: Millis(sorted[len(sorted)-1]),
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted)) / 100))
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}
