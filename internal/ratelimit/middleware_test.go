package ratelimit_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anchorid/internal/ratelimit"
	"anchorid/internal/ratelimit/store"
)

func testLimiter(t *testing.T, s ratelimit.Store, limits map[ratelimit.Class]ratelimit.Limit) *ratelimit.Limiter {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return ratelimit.NewLimiter(s, logger, ratelimit.WithLimits(limits))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	limiter := testLimiter(t, store.NewMemoryStore(), map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassVerify: {Requests: 3, Window: time.Minute},
	})
	handler := limiter.Middleware(ratelimit.ClassVerify)(okHandler())

	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.RemoteAddr = "10.0.0.1:51000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestMiddlewareBlocksOverLimit(t *testing.T) {
	limiter := testLimiter(t, store.NewMemoryStore(), map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassVerify: {Requests: 2, Window: time.Minute},
	})
	handler := limiter.Middleware(ratelimit.ClassVerify)(okHandler())

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.RemoteAddr = "10.0.0.1:51000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/verify", nil)
	req.RemoteAddr = "10.0.0.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
}

func TestMiddlewareSeparatesClients(t *testing.T) {
	limiter := testLimiter(t, store.NewMemoryStore(), map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassEnroll: {Requests: 1, Window: time.Minute},
	})
	handler := limiter.Middleware(ratelimit.ClassEnroll)(okHandler())

	first := httptest.NewRequest(http.MethodPost, "/register", nil)
	first.RemoteAddr = "10.0.0.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	blocked := httptest.NewRequest(http.MethodPost, "/register", nil)
	blocked.RemoteAddr = "10.0.0.1:51000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, blocked)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	other := httptest.NewRequest(http.MethodPost, "/register", nil)
	other.RemoteAddr = "10.0.0.2:51000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareUsesForwardedFor(t *testing.T) {
	limiter := testLimiter(t, store.NewMemoryStore(), map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassVerify: {Requests: 1, Window: time.Minute},
	})
	handler := limiter.Middleware(ratelimit.ClassVerify)(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/verify", nil)
		req.RemoteAddr = "127.0.0.1:51000"
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*ratelimit.Result, error) {
	return nil, errors.New("redis down")
}

func TestMiddlewareFailsOpenOnStoreError(t *testing.T) {
	limiter := testLimiter(t, failingStore{}, map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassVerify: {Requests: 1, Window: time.Minute},
	})
	handler := limiter.Middleware(ratelimit.ClassVerify)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/verify", nil)
	req.RemoteAddr = "10.0.0.1:51000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
