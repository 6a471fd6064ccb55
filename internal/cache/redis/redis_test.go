package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb, "auction:test:"), mr
}

func TestKeyPrefix(t *testing.T) {
	c, _ := newTestClient(t)
	assert.Equal(t, "auction:test:lock:snapshot", c.key("lock", "snapshot"))
	assert.Equal(t, "events", Wrap(nil, "").key("events"))
}

func TestLockManager(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("auction:test:lock:snapshot"))

	_, err = lm.Acquire(ctx, "snapshot", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	assert.False(t, mr.Exists("auction:test:lock:snapshot"))

	again, err := lm.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	again()
}

func TestLockExpires(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "snapshot", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lm.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)

	// The expired holder must not release the new holder's lock.
	stale()
	assert.True(t, mr.Exists("auction:test:lock:snapshot"))
	fresh()
}

func TestReplayGuard(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	require.NoError(t, lm.Claim(ctx, "sig-1", time.Minute))
	require.ErrorIs(t, lm.Claim(ctx, "sig-1", time.Minute), domain.ErrAlreadyExists)
	require.NoError(t, lm.Claim(ctx, "sig-2", time.Minute))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, lm.Claim(ctx, "sig-1", time.Minute))
}

func TestRateLimiter(t *testing.T) {
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "10.0.0.1", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
		now = now.Add(time.Millisecond)
	}
	ok, err := rl.Allow(ctx, "10.0.0.1", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "10.0.0.2", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(2 * time.Second)
	ok, err = rl.Allow(ctx, "10.0.0.1", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "the window slides")
}

func TestEventBusStream(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewEventBus(c)
	ctx := context.Background()

	msgs, err := bus.StreamRead(ctx, "events", "0", 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, bus.StreamAppend(ctx, "events", []byte(`{"kind":"bid_placed"}`)))
	require.NoError(t, bus.StreamAppend(ctx, "events", []byte(`{"kind":"bid_settled"}`)))

	msgs, err = bus.StreamRead(ctx, "events", "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"kind":"bid_placed"}`, string(msgs[0].Payload))

	rest, err := bus.StreamRead(ctx, "events", msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, msgs[1].ID, rest[0].ID)
}

func TestEventBusPubSub(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewEventBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "events:*")
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "events:bid_placed", []byte("hello")))

	select {
	case got := <-ch:
		assert.Equal(t, "hello", string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}
