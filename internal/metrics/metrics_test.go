package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/fleets", "/api/v1/fleets"},
		{"/api/v1/domain", "/api/v1/domain"},
		{"/api/v1/vo", "/api/v1/vo"},
		{"/api/v1/v", "/api/v1/v"},
		{"/api/v1/computation", "/api/v1/computation"},
		{"/api/v1/cache/stats", "/api/v1/cache/stats"},

		// Fleet routes collapse to one label per pattern.
		{"/api/v1/fleets/passenger/ships", "/api/v1/fleets/{fleet}/ships"},
		{"/api/v1/fleets/cargo/ships", "/api/v1/fleets/{fleet}/ships"},
		{"/api/v1/fleets/cargo/observations", "/api/v1/fleets/{fleet}/observations"},

		// Unknown/bot paths collapse to "other".
		{"/api/v1/fleets//ships", "other"},
		{"/api/v1/fleets/cargo/ships/extra", "other"},
		{"/api/v1/fleets/cargo", "other"},
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 fleet names produce exactly one
// distinct path label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/api/v1/fleets/" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + "/ships")
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareCountsNormalizedRoute(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	counter := httpRequestsTotal.WithLabelValues("/api/v1/fleets/{fleet}/ships", "GET", "404")
	before := testutil.ToFloat64(counter)

	for _, fleet := range []string{"x1", "x2", "x3"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/fleets/"+fleet+"/ships", nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter increased by %v, want 3", got)
	}
}

func TestHelpers(t *testing.T) {
	SetCacheEntries(7)
	if got := testutil.ToFloat64(cacheEntries); got != 7 {
		t.Errorf("cache entries = %v, want 7", got)
	}

	before := testutil.ToFloat64(riskErrors.WithLabelValues("internal"))
	IncRiskErrors("")
	if got := testutil.ToFloat64(riskErrors.WithLabelValues("internal")) - before; got != 1 {
		t.Errorf("internal risk errors increased by %v, want 1", got)
	}

	SetDatasetObservations("cargo", 42)
	if got := testutil.ToFloat64(datasetObservations.WithLabelValues("cargo")); got != 42 {
		t.Errorf("dataset observations = %v, want 42", got)
	}
}
