package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestHTTPMetricsRecordsAllFamilies drives one request through the wrapped
// handler and checks every HTTP metric family shows up in the registry.
func TestHTTPMetricsRecordsAllFamilies(t *testing.T) {
	m, reg := registeredMetrics(t)

	handler := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claims", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	for _, name := range []string{
		MetricHTTPRequestDuration,
		MetricHTTPRequestsTotal,
		MetricHTTPRequestSizeBytes,
		MetricHTTPResponseSizeBytes,
	} {
		if findFamily(t, reg, name) == nil {
			t.Errorf("metric %s not recorded", name)
		}
	}
}

// TestHTTPMetricsComposesWithOtherMiddleware checks the instrumentation does
// not interfere with surrounding middleware or swallow the handler.
func TestHTTPMetricsComposesWithOtherMiddleware(t *testing.T) {
	m, reg := registeredMetrics(t)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	headerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test", "value")
			next.ServeHTTP(w, r)
		})
	}

	handler := headerMiddleware(HTTPMetrics(m)(inner))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/claims", nil))

	if !called {
		t.Error("handler was not called")
	}
	if rec.Header().Get("X-Test") != "value" {
		t.Error("outer middleware did not run")
	}
	if findFamily(t, reg, MetricHTTPRequestsTotal) == nil {
		t.Error("HTTP metrics were not recorded")
	}
}

// TestHTTPMetricsNormalizesIDPaths sends requests for several claim IDs and
// expects them to collapse into one /claims/{id} series.
func TestHTTPMetricsNormalizesIDPaths(t *testing.T) {
	m, reg := registeredMetrics(t)

	wrapped := HTTPMetrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	paths := []string{
		"/claims/123",
		"/claims/456",
		"/claims/abc-def-ghi",
		"/claims/550e8400-e29b-41d4-a716-446655440000",
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}

	family := findFamily(t, reg, MetricHTTPRequestsTotal)
	if family == nil {
		t.Fatalf("%s not found", MetricHTTPRequestsTotal)
	}
	if got := len(family.GetMetric()); got != 1 {
		t.Fatalf("expected 1 series after normalization, got %d", got)
	}

	series := family.GetMetric()[0]
	for _, label := range series.GetLabel() {
		if label.GetName() == "path" && label.GetValue() != "/claims/{id}" {
			t.Errorf("path label = %s, want /claims/{id}", label.GetValue())
		}
	}
	if got := series.GetCounter().GetValue(); got != float64(len(paths)) {
		t.Errorf("counter value = %f, want %d", got, len(paths))
	}
}
