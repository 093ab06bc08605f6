package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
)

// InMemoryIdempotencyStore keeps delivery claims in process memory. It is the
// development fallback when Redis is not configured and only deduplicates
// within one replica.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry
	now    shared.Clock

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// MemoryStoreOption configures an InMemoryIdempotencyStore
type MemoryStoreOption func(*memoryStoreOptions)

type memoryStoreOptions struct {
	sweepEvery time.Duration
	clock      shared.Clock
}

// WithSweepInterval sets how often expired claims are dropped
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(o *memoryStoreOptions) { o.sweepEvery = d }
}

// WithStoreClock replaces the time source used for expiry
func WithStoreClock(c shared.Clock) MemoryStoreOption {
	return func(o *memoryStoreOptions) { o.clock = c }
}

// NewInMemoryIdempotencyStore starts a store with a background sweeper; Close
// stops it.
func NewInMemoryIdempotencyStore(opts ...MemoryStoreOption) *InMemoryIdempotencyStore {
	o := memoryStoreOptions{sweepEvery: 5 * time.Minute, clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &InMemoryIdempotencyStore{
		claims: make(map[string]time.Time),
		now:    o.clock,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.sweepLoop(ctx, o.sweepEvery)
	return s
}

// MarkProcessed claims key for ttl. It reports false while an earlier claim is
// still live.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key holds a live claim
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.claims[key]
	return ok && s.now().Before(exp), nil
}

// Release drops the claim so a failed delivery can run again
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop(ctx context.Context, every time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, exp := range s.claims {
		if !now.Before(exp) {
			delete(s.claims, key)
		}
	}
}

// Size counts claims not yet swept, expired or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
