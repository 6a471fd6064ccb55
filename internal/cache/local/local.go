// Package local provides single-process stand-ins for the redis lock
// manager and replay guard, used when no redis is configured.
package local

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// LockManager implements domain.LockManager inside one process. Locks
// expire after their ttl like their redis counterparts.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]lease
	now   func() time.Time
	nonce uint64
}

type lease struct {
	id      uint64
	expires time.Time
}

func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]lease), now: time.Now}
}

func (lm *LockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.now()
	if l, ok := lm.held[key]; ok && now.Before(l.expires) {
		return nil, domain.ErrLockHeld
	}
	lm.nonce++
	id := lm.nonce
	lm.held[key] = lease{id: id, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			lm.mu.Lock()
			defer lm.mu.Unlock()
			if l, ok := lm.held[key]; ok && l.id == id {
				delete(lm.held, key)
			}
		})
	}, nil
}

// ReplayGuard implements domain.ReplayGuard over a bounded LRU. Once more
// than size keys are claimed within a ttl the oldest are forgotten early.
type ReplayGuard struct {
	mu   sync.Mutex
	seen *lru.Cache
	now  func() time.Time
}

func NewReplayGuard(size int) (*ReplayGuard, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ReplayGuard{seen: c, now: time.Now}, nil
}

func (g *ReplayGuard) Claim(_ context.Context, key string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if v, ok := g.seen.Get(key); ok && now.Before(v.(time.Time)) {
		return domain.ErrAlreadyExists
	}
	g.seen.Add(key, now.Add(ttl))
	return nil
}

var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.ReplayGuard = (*ReplayGuard)(nil)
)
