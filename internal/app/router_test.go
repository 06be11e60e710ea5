package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhub/enrollhub/internal/api/apitest"
	"github.com/enrollhub/enrollhub/internal/observability"
	"github.com/enrollhub/enrollhub/internal/portal"
	"github.com/enrollhub/enrollhub/internal/shared"
	"github.com/enrollhub/enrollhub/internal/view"
	"github.com/enrollhub/enrollhub/internal/workspace"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "production"}
	sessions := shared.NewSessionManager(rdb, "enrollhub_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrf")
	metrics := observability.NewMetrics()
	templates, err := view.NewEngine()
	require.NoError(t, err)

	srv := apitest.New(t)
	handler := portal.NewHandler(portal.Params{
		Logger:     logger,
		Templates:  templates,
		Sessions:   sessions,
		CSRF:       csrf,
		Workspaces: workspace.NewRegistry(srv.Client(), logger, 0),
		Metrics:    metrics,
		AdminURL:   srv.URL + "/admin",
	})
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    csrf,
		Portal:         handler,
		Metrics:        metrics,
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Set-Cookie"), "health checks must not open sessions")
}

func TestStaticAssets(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/css"))
}

func TestLoginPageThroughFullStack(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="csrf_token"`)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "enrollhub_session=")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestUnsafeRequestWithoutTokenIsForbidden(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{"username": {"student1"}, "password": {apitest.StudentPassword}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(router, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "enrollhub_http_requests_total")
}

func TestAnonymousRootRedirectsWithoutSession(t *testing.T) {
	router := newTestRouter(t)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Empty(t, rec.Header().Get("Set-Cookie"))
}
