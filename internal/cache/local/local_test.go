package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()
	now := time.Unix(1000, 0)
	lm.now = func() time.Time { return now }

	unlock, err := lm.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	_, err = lm.Acquire(ctx, "snapshot", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	_, err = lm.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err)

	unlock()
	unlock()
	unlock2, err := lm.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)

	// An expired lease is taken over and the stale unlock leaves it alone.
	now = now.Add(2 * time.Minute)
	_, err = lm.Acquire(ctx, "snapshot", time.Minute)
	require.NoError(t, err)
	unlock2()
	_, err = lm.Acquire(ctx, "snapshot", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
}

func TestReplayGuard(t *testing.T) {
	ctx := context.Background()
	g, err := NewReplayGuard(16)
	require.NoError(t, err)
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	require.NoError(t, g.Claim(ctx, "sig-a", time.Minute))
	assert.ErrorIs(t, g.Claim(ctx, "sig-a", time.Minute), domain.ErrAlreadyExists)
	assert.NoError(t, g.Claim(ctx, "sig-b", time.Minute))

	now = now.Add(2 * time.Minute)
	assert.NoError(t, g.Claim(ctx, "sig-a", time.Minute))

	_, err = NewReplayGuard(0)
	assert.Error(t, err)
}
