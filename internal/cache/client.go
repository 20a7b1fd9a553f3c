package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// State of the cache connection. Operations are permitted only in StateReady;
// everywhere else they behave as a miss or a no-op so the cache can never fail
// a business operation.
type State int32

const (
	StateConnecting State = iota
	StateReady
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var ErrClosed = errors.New("cache client closed")

const (
	scanCount          = 100
	breakerMaxFails    = 5
	defaultBackoffStep = time.Second
	defaultBackoffMax  = 30 * time.Second
	opTimeout          = 2 * time.Second
)

// Client wraps a Redis connection with a small state machine, a circuit
// breaker, cursor-based key scanning and non-blocking bulk deletes. It is
// constructed once at process start and handed to every caching call site.
type Client struct {
	rdb          *redis.Client
	log          zerolog.Logger
	breaker      *gobreaker.CircuitBreaker[any]
	cleanPattern string

	backoffStep time.Duration
	backoffMax  time.Duration

	state     atomic.Int32
	cleanOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New builds a client in the connecting state. cleanPattern, when non-empty,
// is swept once when the client first reaches ready, discarding entries left
// behind by a previous process generation.
func New(rdb *redis.Client, cleanPattern string, log zerolog.Logger) *Client {
	c := &Client{
		rdb:          rdb,
		log:          log,
		cleanPattern: cleanPattern,
		backoffStep:  defaultBackoffStep,
		backoffMax:   defaultBackoffMax,
		stop:         make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	c.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name: "redis",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).
				Msg("cache breaker state changed")
		},
	})
	return c
}

// Connect pings the backend with capped linear backoff until it answers,
// then moves the client to ready. It blocks; run it in a goroutine when the
// process must start regardless of cache availability.
func (c *Client) Connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if c.State() == StateClosed {
			return ErrClosed
		}
		if err := c.rdb.Ping(ctx).Err(); err == nil {
			c.becomeReady()
			return nil
		} else {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("cache backend not reachable")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return ErrClosed
		case <-time.After(c.backoff(attempt)):
		}
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Ready reports whether cache operations are currently permitted.
func (c *Client) Ready() bool {
	return c.State() == StateReady
}

// Wait blocks until all detached invalidation sweeps have finished. Tests use
// it to await pattern invalidation deterministically.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close moves the client to its terminal state and waits for background work.
// It does not close the underlying redis.Client; the owner does that.
func (c *Client) Close() {
	c.stopOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.stop)
	})
	c.wg.Wait()
}

// GetKey returns the raw value for key, or false on a miss. A client outside
// ready always misses.
func (c *Client) GetKey(ctx context.Context, key string) ([]byte, bool) {
	if !c.Ready() {
		return nil, false
	}
	v, err := c.do(func() (any, error) {
		b, err := c.rdb.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil // miss, not a failure
		}
		if err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil || v == nil {
		return nil, false
	}
	return v.([]byte), true
}

// SetKey stores value under key with the given expiry. No-op outside ready.
func (c *Client) SetKey(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !c.Ready() {
		return
	}
	if _, err := c.do(func() (any, error) {
		return nil, c.rdb.Set(ctx, key, value, ttl).Err()
	}); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// ScanKeys enumerates every key matching pattern, following the cursor until
// it returns to 0. Returns what was collected so far on error.
func (c *Client) ScanKeys(ctx context.Context, pattern string) []string {
	if !c.Ready() {
		return nil
	}
	var keys []string
	var cursor uint64
	for {
		v, err := c.do(func() (any, error) {
			page, next, err := c.rdb.Scan(ctx, cursor, pattern, scanCount).Result()
			if err != nil {
				return nil, err
			}
			return scanPage{keys: page, cursor: next}, nil
		})
		if err != nil {
			c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
			return keys
		}
		page := v.(scanPage)
		keys = append(keys, page.keys...)
		cursor = page.cursor
		if cursor == 0 {
			return keys
		}
	}
}

type scanPage struct {
	keys   []string
	cursor uint64
}

// UnlinkKey deletes one key without blocking the backend. Returns the number
// of keys removed.
func (c *Client) UnlinkKey(ctx context.Context, key string) int64 {
	if !c.Ready() {
		return 0
	}
	v, err := c.do(func() (any, error) {
		return c.rdb.Unlink(ctx, key).Result()
	})
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache unlink failed")
		return 0
	}
	return v.(int64)
}

// UnlinkPattern scans for every key matching pattern and removes them in one
// bulk unlink. Zero matches is a no-op.
func (c *Client) UnlinkPattern(ctx context.Context, pattern string) int64 {
	keys := c.ScanKeys(ctx, pattern)
	if len(keys) == 0 {
		return 0
	}
	v, err := c.do(func() (any, error) {
		return c.rdb.Unlink(ctx, keys...).Result()
	})
	if err != nil {
		c.log.Warn().Err(err).Str("pattern", pattern).Msg("cache bulk unlink failed")
		return 0
	}
	return v.(int64)
}

// InvalidatePattern runs UnlinkPattern detached so the triggering write does
// not wait on the scan. Completion can be awaited with Wait.
func (c *Client) InvalidatePattern(pattern string) {
	if !c.Ready() {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		n := c.UnlinkPattern(ctx, pattern)
		c.log.Debug().Str("pattern", pattern).Int64("removed", n).Msg("cache pattern invalidated")
	}()
}

func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * c.backoffStep
	if d > c.backoffMax {
		d = c.backoffMax
	}
	return d
}

// do routes one round-trip through the breaker and demotes the client to
// reconnecting on transport failure.
func (c *Client) do(op func() (any, error)) (any, error) {
	v, err := c.breaker.Execute(op)
	if err != nil &&
		!errors.Is(err, gobreaker.ErrOpenState) &&
		!errors.Is(err, gobreaker.ErrTooManyRequests) &&
		!errors.Is(err, context.Canceled) {
		c.lostConnection(err)
	}
	return v, err
}

func (c *Client) becomeReady() {
	c.state.Store(int32(StateReady))
	c.log.Info().Msg("cache ready")
	c.cleanOnce.Do(func() {
		if c.cleanPattern == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		n := c.UnlinkPattern(ctx, c.cleanPattern)
		c.log.Info().Str("pattern", c.cleanPattern).Int64("removed", n).
			Msg("stale cache entries cleaned")
	})
}

// lostConnection flips ready -> reconnecting exactly once and starts a
// background ping loop that restores ready when the backend answers again.
func (c *Client) lostConnection(cause error) {
	if !c.state.CompareAndSwap(int32(StateReady), int32(StateReconnecting)) {
		return
	}
	c.log.Warn().Err(cause).Msg("cache connection lost, reconnecting")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for attempt := 1; ; attempt++ {
			select {
			case <-c.stop:
				return
			case <-time.After(c.backoff(attempt)):
			}
			if c.State() != StateReconnecting {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			err := c.rdb.Ping(ctx).Err()
			cancel()
			if err == nil {
				if c.state.CompareAndSwap(int32(StateReconnecting), int32(StateReady)) {
					c.log.Info().Int("attempt", attempt).Msg("cache connection restored")
				}
				return
			}
		}
	}()
}
