package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupClient connects a Client to an in-memory redis and waits for ready.
func setupClient(t *testing.T, cleanPattern string) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	c := New(rdb, cleanPattern, zerolog.Nop())
	c.backoffStep = 10 * time.Millisecond
	c.backoffMax = 50 * time.Millisecond
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Close)
	return c, mr
}

func TestConnect_BecomesReady(t *testing.T) {
	c, _ := setupClient(t, "")
	assert.Equal(t, StateReady, c.State())
	assert.True(t, c.Ready())
}

func TestConnect_CleansConfiguredPatternOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Set("cart:user_1", "stale")
	mr.Set("product:3", "stale")

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := New(rdb, CleanAllPattern, zerolog.Nop())
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.False(t, mr.Exists("cart:user_1"))
	assert.False(t, mr.Exists("product:3"))
}

func TestOperations_FailOpenBeforeConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := New(rdb, "", zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, StateConnecting, c.State())
	_, ok := c.GetKey(ctx, "cart:user_1")
	assert.False(t, ok)
	c.SetKey(ctx, "cart:user_1", []byte("x"), time.Minute)
	assert.False(t, mr.Exists("cart:user_1"), "set must be a no-op outside ready")
	assert.Nil(t, c.ScanKeys(ctx, "*"))
	assert.Zero(t, c.UnlinkPattern(ctx, "*"))
}

func TestGetSetKey_RoundTrip(t *testing.T) {
	c, mr := setupClient(t, "")
	ctx := context.Background()

	c.SetKey(ctx, "product:1", []byte(`{"id":1}`), time.Minute)
	require.True(t, mr.Exists("product:1"))

	b, ok := c.GetKey(ctx, "product:1")
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(b))

	ttl := mr.TTL("product:1")
	assert.Equal(t, time.Minute, ttl)
}

func TestGetKey_Miss(t *testing.T) {
	c, _ := setupClient(t, "")
	_, ok := c.GetKey(context.Background(), "product:404")
	assert.False(t, ok)
}

func TestScanKeys_FollowsCursorToZero(t *testing.T) {
	c, mr := setupClient(t, "")

	// well above one SCAN page so the cursor loop has to iterate
	for i := 0; i < 500; i++ {
		mr.Set(fmt.Sprintf("discounts:discount_%d", i), "x")
	}
	mr.Set("cart:user_1", "x")

	keys := c.ScanKeys(context.Background(), "discounts:*")
	assert.Len(t, keys, 500)
}

func TestUnlinkPattern_BulkDelete(t *testing.T) {
	c, mr := setupClient(t, "")

	for i := 0; i < 10; i++ {
		mr.Set(fmt.Sprintf("cart:user_%d", i), "x")
	}
	mr.Set("product:1", "keep")

	n := c.UnlinkPattern(context.Background(), "cart:*")
	assert.EqualValues(t, 10, n)
	assert.False(t, mr.Exists("cart:user_0"))
	assert.True(t, mr.Exists("product:1"))
}

func TestUnlinkPattern_ZeroMatchesIsNoop(t *testing.T) {
	c, _ := setupClient(t, "")
	n := c.UnlinkPattern(context.Background(), "nothing:*")
	assert.Zero(t, n)
}

func TestInvalidatePattern_DetachedButAwaitable(t *testing.T) {
	c, mr := setupClient(t, "")
	mr.Set("cart:user_7", "x")

	c.InvalidatePattern("cart:*")
	c.Wait()

	assert.False(t, mr.Exists("cart:user_7"))
}

func TestLostConnection_EntersReconnectingAndRecovers(t *testing.T) {
	c, mr := setupClient(t, "")
	ctx := context.Background()

	mr.SetError("backend down")
	_, ok := c.GetKey(ctx, "cart:user_1")
	assert.False(t, ok, "errors must read as a miss")
	assert.Equal(t, StateReconnecting, c.State())

	// while reconnecting every operation fails open
	c.SetKey(ctx, "cart:user_1", []byte("x"), time.Minute)
	_, ok = c.GetKey(ctx, "cart:user_1")
	assert.False(t, ok)

	mr.SetError("")
	require.Eventually(t, func() bool {
		return c.State() == StateReady
	}, 2*time.Second, 10*time.Millisecond, "client did not recover")
}

func TestClose_IsTerminal(t *testing.T) {
	c, _ := setupClient(t, "")
	c.Close()
	assert.Equal(t, StateClosed, c.State())

	_, ok := c.GetKey(context.Background(), "k")
	assert.False(t, ok)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
