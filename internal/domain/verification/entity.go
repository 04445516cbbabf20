// Package verification implements email confirmation with a short-lived
// numeric PIN. PINs are stored only as bcrypt hashes and expire after a
// fixed TTL; the store evicts expired entries on its own.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

// Defaults for issued PINs.
const (
	PINLength          = 6
	DefaultTTL         = 10 * time.Minute
	DefaultMaxAttempts = 3
)

// Pending is an issued, not yet confirmed verification.
type Pending struct {
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	PINHash   []byte    `json:"pin_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// IsExpired reports whether the PIN is no longer valid at now.
func (p *Pending) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// TTL returns the remaining lifetime at now.
func (p *Pending) TTL(now time.Time) time.Duration {
	return p.ExpiresAt.Sub(now)
}

// ExpiredGrace is how long a store may keep an expired entry so that a
// late confirmation reports expiry instead of an unknown email.
const ExpiredGrace = 5 * time.Minute

// Store holds pending verifications keyed by normalized email.
// Implementations must evict entries once ExpiresAt has passed, at the
// latest after ExpiredGrace. Get returns shared.ErrVerificationExpired
// for an expired entry it still holds (and drops it), and
// shared.ErrVerificationNotFound for unknown emails.
type Store interface {
	Put(ctx context.Context, p *Pending) error
	Get(ctx context.Context, email string) (*Pending, error)
	Delete(ctx context.Context, email string) error
}

// NormalizeEmail trims, lowercases and validates an address.
func NormalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e {
		return "", shared.ErrInvalidEmail
	}
	return e, nil
}

// GeneratePIN returns a uniformly random PIN of PINLength digits
// without a leading zero (100000-999999).
func GeneratePIN() (string, error) {
	lo := int64(1)
	for i := 1; i < PINLength; i++ {
		lo *= 10
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9*lo))
	if err != nil {
		return "", fmt.Errorf("generate pin: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+lo), nil
}

// NewPending hashes pin and creates a pending verification.
func NewPending(email, fullName, pin string, now time.Time, ttl time.Duration) (*Pending, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}
	return &Pending{
		Email:     email,
		FullName:  strings.TrimSpace(fullName),
		PINHash:   hash,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Check verifies pin at now. It increments Attempts on mismatch.
// Callers persist p after a mismatch and delete it on success or on
// ErrVerificationExpired / ErrTooManyAttempts.
func (p *Pending) Check(pin string, now time.Time, maxAttempts int) error {
	if p.IsExpired(now) {
		return shared.ErrVerificationExpired
	}
	if p.Attempts >= maxAttempts {
		return shared.ErrTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword(p.PINHash, []byte(strings.TrimSpace(pin))); err != nil {
		p.Attempts++
		return shared.WrapError("verification", "Confirm", shared.ErrInvalidInput,
			fmt.Sprintf("invalid verification code, %d attempts remaining", p.RemainingAttempts(maxAttempts)), shared.ErrInvalidPIN)
	}
	return nil
}

// RemainingAttempts returns how many wrong PINs are still tolerated.
func (p *Pending) RemainingAttempts(maxAttempts int) int {
	if r := maxAttempts - p.Attempts; r > 0 {
		return r
	}
	return 0
}
