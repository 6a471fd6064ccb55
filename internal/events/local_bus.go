package events

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"sync"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// LocalBus is an in-process domain.EventBus for single-instance deployments
// without Redis. Channel patterns use path.Match syntax; streams keep the
// last capacity entries.
type LocalBus struct {
	mu       sync.Mutex
	subs     map[*localSub]struct{}
	streams  map[string][]domain.StreamMessage
	seq      uint64
	capacity int
}

type localSub struct {
	pattern string
	ch      chan []byte
}

// NewLocalBus creates a LocalBus whose streams keep capacity entries.
func NewLocalBus(capacity int) *LocalBus {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LocalBus{
		subs:     make(map[*localSub]struct{}),
		streams:  make(map[string][]domain.StreamMessage),
		capacity: capacity,
	}
}

// Publish delivers payload to every matching subscriber whose buffer has
// room.
func (b *LocalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		select {
		case s.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel closed when ctx is cancelled.
func (b *LocalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	if _, err := path.Match(channel, ""); err != nil {
		return nil, fmt.Errorf("events: subscribe %s: %w", channel, err)
	}
	s := &localSub{pattern: channel, ch: make(chan []byte, 128)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

// StreamAppend appends payload with a monotonically increasing id.
func (b *LocalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	entries := append(b.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatUint(b.seq, 10),
		Payload: payload,
	})
	if len(entries) > b.capacity {
		entries = entries[len(entries)-b.capacity:]
	}
	b.streams[stream] = entries
	return nil
}

// StreamRead returns up to count entries with ids after lastID.
func (b *LocalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	var after uint64
	if lastID != "" {
		var err error
		if after, err = strconv.ParseUint(lastID, 10, 64); err != nil {
			return nil, fmt.Errorf("events: stream read %s: bad id %q", stream, lastID)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		id, _ := strconv.ParseUint(m.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

var _ domain.EventBus = (*LocalBus)(nil)
