package memory

import (
	"context"
	"sync"

	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/domain/verification"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// VerificationStore keeps pending verifications keyed by email. Expired
// entries are dropped by the first Get that sees them or by Sweep.
type VerificationStore struct {
	mu      sync.Mutex
	entries map[string]verification.Pending
	clock   timeutil.Clock
}

// NewVerificationStore creates an empty store.
func NewVerificationStore(clock timeutil.Clock) *VerificationStore {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &VerificationStore{
		entries: make(map[string]verification.Pending),
		clock:   clock,
	}
}

func (s *VerificationStore) Put(_ context.Context, p *verification.Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[p.Email] = *p
	return nil
}

func (s *VerificationStore) Get(_ context.Context, email string) (*verification.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.entries[email]
	if !ok {
		return nil, shared.ErrVerificationNotFound
	}
	if p.IsExpired(s.clock.Now()) {
		delete(s.entries, email)
		return nil, shared.ErrVerificationExpired
	}
	return &p, nil
}

func (s *VerificationStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, email)
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *VerificationStore) Sweep(_ context.Context) (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for email, p := range s.entries {
		if p.IsExpired(now) {
			delete(s.entries, email)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (s *VerificationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var _ verification.Store = (*VerificationStore)(nil)
