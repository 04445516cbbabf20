package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/infrastructure/persistence/memory"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func newVerificationHandlers(clock *stepClock, expose bool) (*RequestVerificationHandler, *ConfirmVerificationHandler, *memory.VerificationStore, *recordingPublisher) {
	store := memory.NewVerificationStore(clock)
	pub := &recordingPublisher{}
	cfg := VerificationConfig{TTL: 10 * time.Minute, MaxAttempts: 3, ExposePIN: expose, Clock: clock}
	return NewRequestVerificationHandler(store, pub, cfg), NewConfirmVerificationHandler(store, pub, cfg), store, pub
}

func TestVerification_RequestAndConfirm(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: testNow}
	req, confirm, store, pub := newVerificationHandlers(clock, true)

	issued, err := req.Handle(ctx, RequestVerificationCommand{Email: " Ada@Example.com ", FullName: "Ada Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", issued.Email)
	assert.Len(t, issued.PIN, 6)
	assert.Equal(t, testNow.Add(10*time.Minute), issued.ExpiresAt)

	clock.t = clock.t.Add(5 * time.Minute)
	res, err := confirm.Handle(ctx, ConfirmVerificationCommand{Email: "ada@example.com", PIN: issued.PIN})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", res.FullName)
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, []shared.EventType{shared.EventVerificationRequested, shared.EventVerificationConfirmed}, pub.types())
}

func TestVerification_PINHiddenOutsideDevelopment(t *testing.T) {
	req, _, _, _ := newVerificationHandlers(&stepClock{t: testNow}, false)

	issued, err := req.Handle(context.Background(), RequestVerificationCommand{Email: "ada@example.com", FullName: "Ada"})
	require.NoError(t, err)
	assert.Empty(t, issued.PIN)
}

func TestVerification_RequestValidation(t *testing.T) {
	req, _, _, _ := newVerificationHandlers(&stepClock{t: testNow}, true)

	_, err := req.Handle(context.Background(), RequestVerificationCommand{Email: "not-an-email", FullName: "Ada"})
	assert.ErrorIs(t, err, shared.ErrInvalidEmail)

	_, err = req.Handle(context.Background(), RequestVerificationCommand{Email: "ada@example.com"})
	assert.True(t, shared.IsValidation(err))
}

func TestVerification_AttemptLimit(t *testing.T) {
	ctx := context.Background()
	req, confirm, store, _ := newVerificationHandlers(&stepClock{t: testNow}, true)

	issued, err := req.Handle(ctx, RequestVerificationCommand{Email: "ada@example.com", FullName: "Ada"})
	require.NoError(t, err)
	wrong := "000000"
	if issued.PIN == wrong {
		wrong = "111111"
	}

	for i := 0; i < 3; i++ {
		_, err = confirm.Handle(ctx, ConfirmVerificationCommand{Email: "ada@example.com", PIN: wrong})
		assert.ErrorIs(t, err, shared.ErrInvalidPIN)
	}

	// Even the right PIN is refused once attempts are exhausted.
	_, err = confirm.Handle(ctx, ConfirmVerificationCommand{Email: "ada@example.com", PIN: issued.PIN})
	assert.ErrorIs(t, err, shared.ErrTooManyAttempts)
	assert.Equal(t, 0, store.Len())

	_, err = confirm.Handle(ctx, ConfirmVerificationCommand{Email: "ada@example.com", PIN: issued.PIN})
	assert.ErrorIs(t, err, shared.ErrVerificationNotFound)
}

func TestVerification_Expired(t *testing.T) {
	ctx := context.Background()
	clock := &stepClock{t: testNow}
	req, confirm, _, _ := newVerificationHandlers(clock, true)

	issued, err := req.Handle(ctx, RequestVerificationCommand{Email: "ada@example.com", FullName: "Ada"})
	require.NoError(t, err)

	clock.t = clock.t.Add(11 * time.Minute)
	_, err = confirm.Handle(ctx, ConfirmVerificationCommand{Email: "ada@example.com", PIN: issued.PIN})
	assert.ErrorIs(t, err, shared.ErrVerificationExpired)

	_, err = confirm.Handle(ctx, ConfirmVerificationCommand{Email: "nobody@example.com", PIN: "123456"})
	assert.ErrorIs(t, err, shared.ErrVerificationNotFound)
}
