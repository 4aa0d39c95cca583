package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow counts hits per key in consecutive windows. The counter key expires with its
// window, so no cleanup is needed.
type FixedWindow struct {
	Redis  redis.Cmdable
	Scope  string
	Limit  int
	Window time.Duration
	Now    func() time.Time
}

// Allow records one hit for client and reports whether it is within the limit.
func (f *FixedWindow) Allow(ctx context.Context, client string) (bool, error) {
	if f.Limit <= 0 {
		return true, nil
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	window := now().UnixNano() / int64(f.Window)
	key := fmt.Sprintf(KeyRateLimit, f.Scope, client, window)

	pipe := f.Redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, f.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(f.Limit), nil
}

// RetryAfter is the time left in the current window.
func (f *FixedWindow) RetryAfter() time.Duration {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	elapsed := time.Duration(now().UnixNano() % int64(f.Window))
	return f.Window - elapsed
}
