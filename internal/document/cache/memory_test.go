package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/internal/document/models"
	"ekyc/internal/document/ports"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	metrics := NewMetrics(prometheus.NewRegistry())
	c := NewInMemoryCache(time.Minute, WithMemoryMetrics(metrics))
	c.now = func() time.Time { return now }

	passport := ports.Classification{Type: models.DocumentTypeSGPassport, Confidence: 0.95}

	t.Run("miss on unknown key", func(t *testing.T) {
		_, ok, err := c.Find(ctx, "unknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hit within ttl", func(t *testing.T) {
		require.NoError(t, c.Save(ctx, "abc", passport))
		now = now.Add(59 * time.Second)

		got, ok, err := c.Find(ctx, "abc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, passport, got)
	})

	t.Run("expired entry is evicted", func(t *testing.T) {
		now = now.Add(time.Second)

		_, ok, err := c.Find(ctx, "abc")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.lookups.WithLabelValues(backendMemory, "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.lookups.WithLabelValues(backendMemory, "miss")))
}

func TestInMemoryCacheWithoutMetrics(t *testing.T) {
	c := NewInMemoryCache(time.Minute)
	require.NoError(t, c.Save(context.Background(), "k", ports.Classification{Type: models.DocumentTypeMYNRIC, Confidence: 0.9}))

	got, ok, err := c.Find(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.DocumentTypeMYNRIC, got.Type)
}
