package serviceimpl

import (
	"context"
	"github.com/PayRam/go-fundraising/service"
	"sync"
	"time"
)

// cacheFence stops a read-through fill from storing a value loaded before a concurrent
// mutation invalidated it. Every invalidation bumps the generation; a fill only lands
// when the generation it started under is still current.
type cacheFence struct {
	cache service.Cache
	mu    sync.Mutex
	gen   uint64
}

func newCacheFence(c service.Cache) *cacheFence {
	return &cacheFence{cache: c}
}

func (f *cacheFence) generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// fill stores value under key unless an invalidation happened since gen was taken.
func (f *cacheFence) fill(ctx context.Context, gen uint64, key string, value []byte, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gen != gen {
		return false
	}
	_ = f.cache.Set(ctx, key, value, ttl)
	return true
}

func (f *cacheFence) invalidate(ctx context.Context, keys ...string) {
	f.mu.Lock()
	f.gen++
	f.mu.Unlock()
	_ = f.cache.Del(ctx, keys...)
}
