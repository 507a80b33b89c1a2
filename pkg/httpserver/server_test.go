// pkg/httpserver/server_test.go
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YaganovValera/quote-relay/pkg/logger"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, true},
		{"ok", Config{Addr: ":0"}, false},
		{"badPath", Config{Addr: ":0", ReadyzPath: "ready"}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := c.cfg
			err := cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() error = %v; wantErr %v", err, c.wantErr)
			}
		})
	}
}

func newTestServer(t *testing.T, check ReadyChecker, api http.Handler) http.Handler {
	t.Helper()
	srv, err := New(Config{Addr: ":0"}, check, logger.Nop(), api,
		RecoverMiddleware(logger.Nop()),
		RequestIDMiddleware(),
		MetricsMiddleware(),
		CORSMiddleware(),
	)
	require.NoError(t, err)
	return srv.Handler()
}

func TestHealthAndReady(t *testing.T) {
	var ready atomic.Bool
	h := newTestServer(t, func() error {
		if !ready.Load() {
			return errors.New("feed not connected")
		}
		return nil
	}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "feed not connected")

	ready.Store(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRoutesAndRequestID(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/echo/{v}", func(w http.ResponseWriter, req *http.Request) {
		rid, _ := logger.RequestIDFromContext(req.Context())
		_, _ = w.Write([]byte(chi.URLParam(req, "v") + ":" + rid))
	})
	h := newTestServer(t, nil, r)

	req := httptest.NewRequest(http.MethodGet, "/echo/abc", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc:rid-1", rec.Body.String())
	assert.Equal(t, "rid-1", rec.Header().Get("X-Request-ID"))
}

// Путь запроса мимо маршрутов не становится значением метки.
func TestMetricsRouteLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/echo/{v}", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := newTestServer(t, nil, r)

	count := func(route, code string) float64 {
		return testutil.ToFloat64(httpRequests.WithLabelValues(route, http.MethodGet, code))
	}
	echo, health, unmatched := count("/echo/{v}", "200"), count("/healthz", "200"), count(unmatchedRoute, "404")

	for _, path := range []string{"/echo/a", "/echo/b", "/healthz", "/no/such/path", "/another-miss"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, echo+2, count("/echo/{v}", "200"))
	assert.Equal(t, health+1, count("/healthz", "200"))
	assert.Equal(t, unmatched+2, count(unmatchedRoute, "404"))
	assert.Zero(t, count("/no/such/path", "404"))
}

func TestRequestIDGenerated(t *testing.T) {
	h := newTestServer(t, nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	h := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	h := newTestServer(t, nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStart_StopsOnCancel(t *testing.T) {
	srv, err := New(Config{Addr: "127.0.0.1:0"}, nil, logger.Nop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
