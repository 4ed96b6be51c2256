// Package scedge proxies the Scedge edge-cache API so the dashboard can
// surface cache telemetry and issue store/purge commands without the browser
// talking to Scedge directly.
package scedge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	healthzPath = "/healthz"
	metricsPath = "/metrics"
	lookupPath  = "/lookup"
	storePath   = "/store"
	purgePath   = "/purge"

	userAgent = "synagraph-dashboard/0.1"
)

// ErrDisabled is returned by proxy operations when no base URL was configured.
var ErrDisabled = errors.New("scedge bridge not configured")

// Bridge is an optional client for a Scedge instance. A Bridge constructed
// without a base URL is valid: Status reports it as unconfigured and the
// proxy operations return ErrDisabled.
type Bridge struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridge creates a bridge for the given base URL. An empty baseURL yields
// a disabled bridge.
func NewBridge(baseURL string) *Bridge {
	return &Bridge{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether a base URL was provided.
func (b *Bridge) Configured() bool {
	return b.baseURL != ""
}

// Health is the decoded /healthz response of a Scedge instance.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Metric is a single sample parsed from the Prometheus text exposition.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Status summarizes the reachability of the configured Scedge instance.
type Status struct {
	Configured bool      `json:"configured"`
	Healthy    bool      `json:"healthy"`
	FetchedAt  time.Time `json:"fetched_at"`
	Health     *Health   `json:"health"`
	Metrics    []Metric  `json:"metrics"`
	Errors     []string  `json:"errors"`
}

// Status probes the health and metrics endpoints. Probe failures are
// collected into the Errors slice rather than returned, so the dashboard can
// always render something.
func (b *Bridge) Status(ctx context.Context) Status {
	status := Status{
		Configured: b.Configured(),
		FetchedAt:  time.Now().UTC(),
		Errors:     []string{},
	}
	if !status.Configured {
		status.Errors = append(status.Errors, "scedge base URL not configured")
		return status
	}

	var health Health
	if err := b.getJSON(ctx, healthzPath, &health); err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("health probe failed: %v", err))
	} else {
		status.Healthy = strings.EqualFold(health.Status, "healthy")
		status.Health = &health
	}

	raw, err := b.getText(ctx, metricsPath)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("metrics probe failed: %v", err))
	} else {
		status.Metrics = parsePrometheusMetrics(raw)
	}

	return status
}

// Lookup forwards a cache lookup, carrying the upstream status code and body
// through untouched so the caller can relay them.
func (b *Bridge) Lookup(ctx context.Context, key string, tenant string) (int, json.RawMessage, error) {
	if !b.Configured() {
		return 0, nil, ErrDisabled
	}

	q := url.Values{}
	q.Set("key", key)
	if tenant != "" {
		q.Set("tenant", tenant)
	}
	return b.forward(ctx, http.MethodGet, lookupPath+"?"+q.Encode(), nil)
}

// Store forwards a store request body verbatim.
func (b *Bridge) Store(ctx context.Context, payload json.RawMessage) (int, json.RawMessage, error) {
	if !b.Configured() {
		return 0, nil, ErrDisabled
	}
	return b.forward(ctx, http.MethodPost, storePath, payload)
}

// Purge forwards a purge request body verbatim.
func (b *Bridge) Purge(ctx context.Context, payload json.RawMessage) (int, json.RawMessage, error) {
	if !b.Configured() {
		return 0, nil, ErrDisabled
	}
	return b.forward(ctx, http.MethodPost, purgePath, payload)
}

// forward relays a request and returns the upstream status code plus the body
// normalized to JSON. Non-JSON bodies come back as a JSON string, empty
// bodies as null.
func (b *Bridge) forward(ctx context.Context, method, path string, payload json.RawMessage) (int, json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("scedge request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read scedge response: %w", err)
	}

	return resp.StatusCode, normalizeBody(body), nil
}

func (b *Bridge) getJSON(ctx context.Context, path string, result any) error {
	status, body, err := b.request(ctx, path)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("scedge returned status %d", status)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode scedge response: %w", err)
	}
	return nil
}

func (b *Bridge) getText(ctx context.Context, path string) (string, error) {
	status, body, err := b.request(ctx, path)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("scedge returned status %d", status)
	}
	return string(body), nil
}

func (b *Bridge) request(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// normalizeBody coerces an upstream body into valid JSON so handlers can
// embed it into their own responses.
func normalizeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(string(trimmed))
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(quoted)
}

// parsePrometheusMetrics extracts name/value pairs from the Prometheus text
// format, skipping comments and samples whose value does not parse.
func parsePrometheusMetrics(raw string) []Metric {
	var metrics []Metric
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		metrics = append(metrics, Metric{Name: fields[0], Value: value})
	}
	return metrics
}
