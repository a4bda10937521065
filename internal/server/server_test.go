package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/story-manager/internal/media"
	"github.com/jonathan/story-manager/internal/types"
)

func TestRootEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string]string](t, w)
	assert.Equal(t, "Welcome to Story Manager API", resp["message"])
	assert.Equal(t, "1.0.0", resp["version"])
	assert.Equal(t, "/docs", resp["docs_url"])
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestHealthEndpoint_DatabaseDown(t *testing.T) {
	s := New(Config{}, Deps{Health: failingPinger{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unavailable")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIPrefix(t *testing.T) {
	t.Run("root prefix mounts at root", func(t *testing.T) {
		ts := newTestServerWithConfig(t, Config{APIPrefix: "/"})

		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/stories", nil).Code)
		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/", nil).Code)
	})

	t.Run("custom prefix", func(t *testing.T) {
		ts := newTestServerWithConfig(t, Config{APIPrefix: "/v2"})

		assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/v2/formats", nil).Code)
		assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/formats", nil).Code)
	})
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
		req.Header.Set("Origin", "http://evil.test")
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/stories/1", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		open := newTestServerWithConfig(t, Config{APIPrefix: "/api", CORSAllowedOrigins: []string{"*"}})
		req := httptest.NewRequest(http.MethodGet, "/api/stories", nil)
		req.Header.Set("Origin", "http://anywhere.test")
		w := httptest.NewRecorder()
		open.handler.ServeHTTP(w, req)

		assert.Equal(t, "http://anywhere.test", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", nil)
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))
}

func TestWithLogging_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dialogs := newMockDialogs()
	s := New(Config{APIPrefix: "/api"}, Deps{
		Dialogs: dialogs,
		Logger:  zap.New(core),
	})

	serve := func(path string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		s.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}

	serve("/health")
	serve("/api/dialogs/openers/abc")
	dialogs.err = errors.New("connection reset")
	serve("/api/dialogs/openers")

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 3)
	assert.Equal(t, zapcore.InfoLevel, completed[0].Level)
	assert.Equal(t, zapcore.WarnLevel, completed[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, completed[2].Level)
	assert.Equal(t, int64(http.StatusBadRequest), completed[1].ContextMap()["status"])

	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "connection reset", failed[0].ContextMap()["error"])
}

func TestInternalErrorHidesDetails(t *testing.T) {
	ts := newTestServer(t)
	ts.dialogStore.err = errors.New("pq: password authentication failed")

	w := ts.do(t, http.MethodGet, "/api/dialogs/openers", nil)
	msg := requireError(t, w, http.StatusInternalServerError)
	assert.Equal(t, "internal server error", msg)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/stories", nil).Code)
	require.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/stories/abc", nil).Code)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `story_manager_http_requests_total{method="GET",route="GET /api/stories",status="200"} 1`)
	assert.Contains(t, body, `story_manager_http_requests_total{method="GET",route="GET /api/stories/{id}",status="400"} 1`)
	assert.Contains(t, body, "story_manager_http_request_duration_seconds")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", types.NewNotFound("Story", 1), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", types.NewNotFound("Story", 1)), http.StatusNotFound},
		{"validation", &types.ValidationError{Field: "title", Message: "is required"}, http.StatusBadRequest},
		{"conflict", &types.ConflictError{Message: "duplicate"}, http.StatusBadRequest},
		{"unsupported media", fmt.Errorf("%w: .exe", media.ErrUnsupportedType), http.StatusBadRequest},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestRun_StopsWhenContextCancelled(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_ListenError(t *testing.T) {
	s := New(Config{Addr: "invalid-address"}, Deps{})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}
