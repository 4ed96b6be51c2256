package scedge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_Disabled(t *testing.T) {
	t.Parallel()

	b := NewBridge("")
	assert.False(t, b.Configured())

	ctx := context.Background()

	_, _, err := b.Lookup(ctx, "faq:refund", "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, _, err = b.Store(ctx, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrDisabled)
	_, _, err = b.Purge(ctx, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrDisabled)

	status := b.Status(ctx)
	assert.False(t, status.Configured)
	assert.False(t, status.Healthy)
	assert.Contains(t, status.Errors, "scedge base URL not configured")
}

func TestBridge_Status(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"healthy","service":"scedge","version":"0.3.0"}`))
		case "/metrics":
			_, _ = w.Write([]byte("# HELP scedge_cache_hits_total hits\nscedge_cache_hits_total 42\nscedge_cache_misses_total 7\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewBridge(srv.URL)
	status := b.Status(context.Background())

	assert.True(t, status.Configured)
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Errors)
	require.NotNil(t, status.Health)
	assert.Equal(t, "scedge", status.Health.Service)
	require.Len(t, status.Metrics, 2)
	assert.Equal(t, Metric{Name: "scedge_cache_hits_total", Value: 42}, status.Metrics[0])
	assert.Equal(t, Metric{Name: "scedge_cache_misses_total", Value: 7}, status.Metrics[1])
}

func TestBridge_StatusProbeFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	b := NewBridge(srv.URL)
	status := b.Status(context.Background())

	assert.True(t, status.Configured)
	assert.False(t, status.Healthy)
	assert.Len(t, status.Errors, 2, "health and metrics failures are both collected")
}

func TestBridge_Lookup(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lookup", r.URL.Path)
		assert.Equal(t, "faq:refund", r.URL.Query().Get("key"))
		assert.Equal(t, "acme", r.URL.Query().Get("tenant"))
		assert.Equal(t, "synagraph-dashboard/0.1", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":"faq:refund","hash":"sha256:abc"}`))
	}))
	defer srv.Close()

	b := NewBridge(srv.URL)
	status, body, err := b.Lookup(context.Background(), "faq:refund", "acme")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"key":"faq:refund","hash":"sha256:abc"}`, string(body))
}

func TestBridge_StoreForwardsBodyAndStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "faq:refund", payload["key"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"stored":true}`))
	}))
	defer srv.Close()

	b := NewBridge(srv.URL)
	status, body, err := b.Store(context.Background(), json.RawMessage(`{"key":"faq:refund"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"stored":true}`, string(body))
}

func TestBridge_TrailingSlashTrimmed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/purge", r.URL.Path)
		_, _ = w.Write([]byte(`{"purged":1}`))
	}))
	defer srv.Close()

	b := NewBridge(srv.URL + "/")
	status, _, err := b.Purge(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestNormalizeBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid json object", `{"a":1}`, `{"a":1}`},
		{"valid json with whitespace", "  [1,2]\n", `[1,2]`},
		{"empty body", "", "null"},
		{"whitespace only", "   \n\t", "null"},
		{"plain text", "internal server error", `"internal server error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := normalizeBody([]byte(tt.in))
			assert.Equal(t, tt.want, string(got))
			assert.True(t, json.Valid(got))
		})
	}
}

func TestParsePrometheusMetrics(t *testing.T) {
	t.Parallel()

	raw := `# HELP scedge_cache_hits_total Total cache hits.
# TYPE scedge_cache_hits_total counter
scedge_cache_hits_total 42
scedge_cache_hit_rate 0.875

scedge_bogus not-a-number
lonely_name
scedge_uptime_seconds 12345 1700000000
`

	metrics := parsePrometheusMetrics(raw)
	require.Len(t, metrics, 3)
	assert.Equal(t, Metric{Name: "scedge_cache_hits_total", Value: 42}, metrics[0])
	assert.Equal(t, Metric{Name: "scedge_cache_hit_rate", Value: 0.875}, metrics[1])
	assert.Equal(t, Metric{Name: "scedge_uptime_seconds", Value: 12345}, metrics[2])
}
