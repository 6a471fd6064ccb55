package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// unlockLua deletes a lock key only if it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const unlockTimeout = 5 * time.Second

// LockManager implements domain.LockManager with SET NX and a TTL, and
// domain.ReplayGuard with the same primitive on a separate key space.
type LockManager struct {
	c        *Client
	unlockSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{c: c, unlockSc: redis.NewScript(unlockLua)}
}

// Acquire obtains the lock for key for at most ttl. The returned unlock
// function is idempotent. It returns domain.ErrLockHeld if another party
// holds the lock.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Claim records key for ttl. A key seen before returns
// domain.ErrAlreadyExists.
func (lm *LockManager) Claim(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := lm.c.rdb.SetNX(ctx, lm.c.key("seen", key), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: claim %s: %w", key, err)
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.ReplayGuard = (*LockManager)(nil)
)
