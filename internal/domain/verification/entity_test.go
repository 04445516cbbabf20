package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/grithabit/grithabit/internal/domain/shared"
)

var t0 = time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

func newTestPending(t *testing.T, pin string) *Pending {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	require.NoError(t, err)
	return &Pending{Email: "a@b.co", PINHash: hash, ExpiresAt: t0.Add(DefaultTTL)}
}

func TestGeneratePIN(t *testing.T) {
	for i := 0; i < 50; i++ {
		pin, err := GeneratePIN()
		require.NoError(t, err)
		assert.Len(t, pin, PINLength)
		assert.NotEqual(t, byte('0'), pin[0])
	}
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Jane.Doe@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", got)

	_, err = NormalizeEmail("not-an-email")
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)

	_, err = NormalizeEmail("Jane <jane@example.com>")
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)
}

func TestNewPending_HashesPIN(t *testing.T) {
	p, err := NewPending("a@b.co", " Jane ", "123456", t0, DefaultTTL)
	require.NoError(t, err)

	assert.NotContains(t, string(p.PINHash), "123456")
	assert.Equal(t, "Jane", p.FullName)
	assert.Equal(t, t0.Add(10*time.Minute), p.ExpiresAt)
	assert.NoError(t, p.Check("123456", t0, DefaultMaxAttempts))
}

func TestCheck_WrongPINCountsAttempts(t *testing.T) {
	p := newTestPending(t, "654321")

	err := p.Check("000000", t0, DefaultMaxAttempts)
	assert.ErrorIs(t, err, shared.ErrInvalidPIN)
	assert.Contains(t, err.Error(), "2 attempts remaining")
	assert.Equal(t, 1, p.Attempts)

	_ = p.Check("000000", t0, DefaultMaxAttempts)
	_ = p.Check("000000", t0, DefaultMaxAttempts)
	assert.Equal(t, 0, p.RemainingAttempts(DefaultMaxAttempts))

	err = p.Check("654321", t0, DefaultMaxAttempts)
	assert.ErrorIs(t, err, shared.ErrTooManyAttempts)
}

func TestCheck_Expired(t *testing.T) {
	p := newTestPending(t, "654321")

	assert.False(t, p.IsExpired(t0))
	assert.ErrorIs(t, p.Check("654321", t0.Add(DefaultTTL), DefaultMaxAttempts), shared.ErrVerificationExpired)
}
