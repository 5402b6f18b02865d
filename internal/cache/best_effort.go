package cache

import (
	"context"
	"github.com/PayRam/go-fundraising/service"
	"log"
	"time"
)

// BestEffort wraps a cache so that failures are retried once, logged, and never
// reach the caller. A failed Get reads as a miss so the caller falls through to the store.
type BestEffort struct {
	next   service.Cache
	logger *log.Logger
}

func NewBestEffort(next service.Cache, logger *log.Logger) *BestEffort {
	if logger == nil {
		logger = log.Default()
	}
	return &BestEffort{next: next, logger: logger}
}

func (c *BestEffort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := c.next.Get(ctx, key)
	if err != nil {
		value, ok, err = c.next.Get(ctx, key)
	}
	if err != nil {
		c.logger.Printf("cache: get %s failed, falling through to store: %v", key, err)
		return nil, false, nil
	}
	return value, ok, nil
}

func (c *BestEffort) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.next.Set(ctx, key, value, ttl); err != nil {
		if err = c.next.Set(ctx, key, value, ttl); err != nil {
			c.logger.Printf("cache: set %s failed: %v", key, err)
		}
	}
	return nil
}

func (c *BestEffort) Del(ctx context.Context, keys ...string) error {
	if err := c.next.Del(ctx, keys...); err != nil {
		if err = c.next.Del(ctx, keys...); err != nil {
			c.logger.Printf("cache: del %v failed: %v", keys, err)
		}
	}
	return nil
}
