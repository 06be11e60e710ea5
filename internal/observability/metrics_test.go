package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveAction("enroll", "ok")

	body := scrape(t, metrics)
	if !strings.Contains(body, `enrollhub_actions_total{action="enroll",outcome="ok"} 1`) {
		t.Fatalf("expected action counter, got: %s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected go collector metrics")
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, `enrollhub_http_requests_total{code="418",route="/test"} 1`) {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, `enrollhub_http_request_duration_seconds_bucket{route="/test"`) {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveCallRecordsUpstream(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveCall("/api/student/enroll", 400, 5*time.Millisecond)
	metrics.ObserveCall("/api/student/enroll", 0, time.Second)

	body := scrape(t, metrics)
	for _, want := range []string{
		`enrollhub_api_requests_total{code="400",endpoint="/api/student/enroll"} 1`,
		`enrollhub_api_requests_total{code="0",endpoint="/api/student/enroll"} 1`,
		`enrollhub_api_request_duration_seconds_count{endpoint="/api/student/enroll"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in: %s", want, body)
		}
	}
}

func TestTrackGauge(t *testing.T) {
	metrics := NewMetrics()
	metrics.TrackGauge("enrollhub_workspaces", "Live workspaces.", func() float64 { return 3 })

	if body := scrape(t, metrics); !strings.Contains(body, "enrollhub_workspaces 3") {
		t.Fatalf("expected gauge, got: %s", body)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveCall("/api/user", 200, time.Millisecond)
	metrics.ObserveAction("drop", "ok")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
