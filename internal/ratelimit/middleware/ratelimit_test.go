package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/internal/ratelimit/middleware"
	"ekyc/internal/ratelimit/models"
	"ekyc/internal/ratelimit/store/bucket"
	"ekyc/pkg/platform/httputil"
	"ekyc/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) AllowN(context.Context, string, int, int, time.Duration) (*models.RateLimitResult, error) {
	return nil, errors.New("redis: connection refused")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, h http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/documents/extract", nil)
	req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("allows up to the limit then rejects", func(t *testing.T) {
		m := middleware.New(bucket.NewInMemoryBucketStore(), 2, time.Minute, discardLogger())
		h := m.RateLimit("extract")(okHandler())

		first := serve(t, h, "203.0.113.7")
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

		assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)

		denied := serve(t, h, "203.0.113.7")
		require.Equal(t, http.StatusTooManyRequests, denied.Code)
		assert.Equal(t, "0", denied.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, denied.Header().Get("Retry-After"))

		var body httputil.ErrorResponse
		require.NoError(t, json.Unmarshal(denied.Body.Bytes(), &body))
		assert.Equal(t, "rate_limited", body.Error)
	})

	t.Run("clients are counted separately", func(t *testing.T) {
		m := middleware.New(bucket.NewInMemoryBucketStore(), 1, time.Minute, discardLogger())
		h := m.RateLimit("extract")(okHandler())

		assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)
		assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.8").Code)
		assert.Equal(t, http.StatusTooManyRequests, serve(t, h, "203.0.113.7").Code)
	})

	t.Run("store failure lets requests through", func(t *testing.T) {
		m := middleware.New(failingStore{}, 1, time.Minute, discardLogger())
		h := m.RateLimit("extract")(okHandler())

		rec := serve(t, h, "203.0.113.7")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("zero limit disables", func(t *testing.T) {
		m := middleware.New(failingStore{}, 0, time.Minute, discardLogger())
		h := m.RateLimit("extract")(okHandler())

		for range 5 {
			assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)
		}
	})

	t.Run("disabled option", func(t *testing.T) {
		m := middleware.New(bucket.NewInMemoryBucketStore(), 1, time.Minute, discardLogger(), middleware.WithDisabled(true))
		h := m.RateLimit("extract")(okHandler())

		assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)
		assert.Equal(t, http.StatusOK, serve(t, h, "203.0.113.7").Code)
	})
}
