package cache

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log"
	"strings"
	"testing"
	"time"
)

func TestMemoryExpiresEntries(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))
	now = now.Add(24 * time.Hour)
	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)
}

func TestMemoryDel(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, c.Del(ctx, "a", "b", "missing"))
	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "b")
	assert.False(t, ok)
}

type flakyCache struct {
	failures int
	calls    int
}

func (f *flakyCache) fail() error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

func (f *flakyCache) Get(context.Context, string) ([]byte, bool, error) {
	if err := f.fail(); err != nil {
		return nil, false, err
	}
	return []byte("hit"), true, nil
}

func (f *flakyCache) Set(context.Context, string, []byte, time.Duration) error {
	return f.fail()
}

func (f *flakyCache) Del(context.Context, ...string) error {
	return f.fail()
}

func TestBestEffortRetriesOnce(t *testing.T) {
	next := &flakyCache{failures: 1}
	c := NewBestEffort(next, nil)

	value, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("hit"), value)
	assert.Equal(t, 2, next.calls)
}

func TestBestEffortSwallowsPersistentFailures(t *testing.T) {
	var logs strings.Builder
	next := &flakyCache{failures: 100}
	c := NewBestEffort(next, log.New(&logs, "", 0))
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok, "a failed read is a miss")
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Del(ctx, "k"))
	assert.Equal(t, 6, next.calls)
	assert.Contains(t, logs.String(), "cache: get k failed")
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "campaign:t1:42", CampaignKey("t1", 42))
	assert.Equal(t, "dashboard:t1", DashboardKey("t1"))
}
