package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Through runs fn through the cache: a fresh entry under key is returned
// without invoking fn, otherwise fn runs and its result is stored with the
// given TTL. When the client is not ready the call degrades to a plain fn
// invocation; caching is an optimization, never a correctness dependency.
func Through[T any](ctx context.Context, c *Client, key Key, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if b, ok := c.GetKey(ctx, key.String()); ok {
		var cached T
		if err := json.Unmarshal(b, &cached); err == nil {
			return cached, nil
		}
		// corrupt entry: drop it and recompute
		c.UnlinkKey(ctx, key.String())
	}

	v, err := fn(ctx)
	if err != nil {
		return v, err
	}

	if b, err := json.Marshal(v); err == nil {
		c.SetKey(ctx, key.String(), b, ttl)
	}
	return v, nil
}

// ClearAfter runs fn and, only when it succeeds, invalidates the given keys.
// A key with an empty Name clears its whole namespace via a detached pattern
// sweep; a concrete key is unlinked in place. Invalidation failures never
// fail the surrounding operation.
func ClearAfter[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error), keys ...Key) (T, error) {
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	for _, k := range keys {
		if k.Name == "" {
			c.InvalidatePattern(Pattern(k.Namespace))
			continue
		}
		c.UnlinkKey(ctx, k.String())
	}
	return v, nil
}
