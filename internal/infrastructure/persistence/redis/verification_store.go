package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/domain/verification"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// VerificationStore implements verification.Store on Redis. Keys expire
// ExpiredGrace after the PIN does, so Redis evicts abandoned entries.
type VerificationStore struct {
	cache KeyValue
	clock timeutil.Clock
}

// NewVerificationStore creates the store.
func NewVerificationStore(cache KeyValue, clock timeutil.Clock) *VerificationStore {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &VerificationStore{cache: cache, clock: clock}
}

// Put stores p under its email.
func (s *VerificationStore) Put(ctx context.Context, p *verification.Pending) error {
	ttl := p.TTL(s.clock.Now()) + verification.ExpiredGrace
	if ttl <= 0 {
		return shared.ErrVerificationExpired
	}
	if err := s.cache.Set(ctx, VerificationKey(p.Email), p, ttl); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	return nil
}

// Get loads a pending verification.
func (s *VerificationStore) Get(ctx context.Context, email string) (*verification.Pending, error) {
	var p verification.Pending
	err := s.cache.Get(ctx, VerificationKey(email), &p)
	if errors.Is(err, ErrCacheMiss) {
		return nil, shared.ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load verification: %w", err)
	}

	if p.IsExpired(s.clock.Now()) {
		_ = s.cache.Delete(ctx, VerificationKey(email))
		return nil, shared.ErrVerificationExpired
	}
	return &p, nil
}

// Delete removes a pending verification.
func (s *VerificationStore) Delete(ctx context.Context, email string) error {
	if err := s.cache.Delete(ctx, VerificationKey(email)); err != nil {
		return fmt.Errorf("delete verification: %w", err)
	}
	return nil
}

var _ verification.Store = (*VerificationStore)(nil)
