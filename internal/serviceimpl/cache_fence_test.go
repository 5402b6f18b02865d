package serviceimpl

import (
	"context"
	"github.com/PayRam/go-fundraising/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestCacheFenceDropsFillStartedBeforeInvalidation(t *testing.T) {
	ctx := context.Background()
	fence := newCacheFence(cache.NewMemory())
	key := cache.CampaignKey("t1", 7)

	gen := fence.generation()
	fence.invalidate(ctx, key)
	assert.False(t, fence.fill(ctx, gen, key, []byte("stale"), time.Minute))
	_, ok, err := fence.cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "a read from before the mutation must not be cached")

	gen = fence.generation()
	assert.True(t, fence.fill(ctx, gen, key, []byte("fresh"), time.Minute))
	value, ok, err := fence.cache.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("fresh"), value)
}

func TestCacheFenceInvalidateRemovesEarlierFill(t *testing.T) {
	ctx := context.Background()
	fence := newCacheFence(cache.NewMemory())
	key := cache.DashboardKey("t1")

	require.True(t, fence.fill(ctx, fence.generation(), key, []byte("v1"), time.Minute))
	fence.invalidate(ctx, key)
	_, ok, _ := fence.cache.Get(ctx, key)
	assert.False(t, ok)
}
