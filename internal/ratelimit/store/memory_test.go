package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testLimit  = 5
	testWindow = time.Minute
)

func TestMemoryStoreAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("first request allowed", func(t *testing.T) {
		s := NewMemoryStore()
		result, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, testLimit, result.Limit)
		require.Equal(t, testLimit-1, result.Remaining)
	})

	t.Run("requests up to limit allowed", func(t *testing.T) {
		s := NewMemoryStore()
		for i := range testLimit {
			result, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
			require.NoError(t, err)
			require.True(t, result.Allowed)
			require.Equal(t, testLimit-i-1, result.Remaining)
		}
	})

	t.Run("request over limit denied", func(t *testing.T) {
		s := NewMemoryStore()
		for range testLimit {
			_, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
			require.NoError(t, err)
		}
		result, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
		require.NoError(t, err)
		require.False(t, result.Allowed)
		require.Equal(t, 0, result.Remaining)
		require.False(t, result.ResetAt.IsZero())
	})

	t.Run("keys are independent", func(t *testing.T) {
		s := NewMemoryStore()
		for range testLimit {
			_, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
			require.NoError(t, err)
		}
		result, err := s.Allow(ctx, "ip:5.6.7.8", testLimit, testWindow)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	})

	t.Run("expired timestamps fall out of the window", func(t *testing.T) {
		s := NewMemoryStore()
		for range testLimit {
			_, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
			require.NoError(t, err)
		}

		s.mu.Lock()
		sw := s.windows["ip:1.2.3.4"]
		for i := range sw.timestamps {
			sw.timestamps[i] = sw.timestamps[i].Add(-2 * testWindow)
		}
		s.mu.Unlock()

		result, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
		require.NoError(t, err)
		require.True(t, result.Allowed)
		require.Equal(t, testLimit-1, result.Remaining)
	})

	t.Run("reset clears the counter", func(t *testing.T) {
		s := NewMemoryStore()
		for range testLimit {
			_, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
			require.NoError(t, err)
		}
		require.NoError(t, s.Reset(ctx, "ip:1.2.3.4"))

		result, err := s.Allow(ctx, "ip:1.2.3.4", testLimit, testWindow)
		require.NoError(t, err)
		require.True(t, result.Allowed)
	})
}
