package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grithabit/grithabit/internal/domain/shared"
	"github.com/grithabit/grithabit/internal/domain/verification"
	"github.com/grithabit/grithabit/pkg/logger"
	"github.com/grithabit/grithabit/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EMAIL VERIFICATION COMMANDS
// A PIN is issued per email and replaces any previous one. Delivery is
// external; the PIN is only returned to the caller when ExposePIN is set.
// ══════════════════════════════════════════════════════════════════════════════

// VerificationConfig configures both verification handlers.
type VerificationConfig struct {
	TTL         time.Duration
	MaxAttempts int
	ExposePIN   bool
	Clock       timeutil.Clock
	Logger      *logger.Logger
}

func (c VerificationConfig) withDefaults() VerificationConfig {
	if c.TTL <= 0 {
		c.TTL = verification.DefaultTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = verification.DefaultMaxAttempts
	}
	if c.Clock == nil {
		c.Clock = timeutil.SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	return c
}

// RequestVerificationCommand asks for a PIN to be issued.
type RequestVerificationCommand struct {
	Email    string
	FullName string
}

// RequestVerificationResult describes the issued PIN.
type RequestVerificationResult struct {
	Email     string
	ExpiresAt time.Time

	// PIN is empty unless the handler exposes PINs (development).
	PIN string
}

// RequestVerificationHandler issues PINs.
type RequestVerificationHandler struct {
	store          verification.Store
	eventPublisher shared.EventPublisher
	config         VerificationConfig
	generatePIN    func() (string, error)
	log            *logger.Logger
}

// NewRequestVerificationHandler creates a new RequestVerificationHandler.
func NewRequestVerificationHandler(store verification.Store, eventPublisher shared.EventPublisher, config VerificationConfig) *RequestVerificationHandler {
	config = config.withDefaults()
	return &RequestVerificationHandler{
		store:          store,
		eventPublisher: eventPublisher,
		config:         config,
		generatePIN:    verification.GeneratePIN,
		log:            config.Logger.With(logger.Component("request_verification")),
	}
}

// Handle issues a PIN for the email, replacing any pending one.
func (h *RequestVerificationHandler) Handle(ctx context.Context, cmd RequestVerificationCommand) (*RequestVerificationResult, error) {
	email, err := verification.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("request_verification: validation failed: %w", err)
	}
	if strings.TrimSpace(cmd.FullName) == "" {
		return nil, fmt.Errorf("request_verification: validation failed: %w",
			shared.NewDomainError("verification", "Request", shared.ErrEmptyValue, "full name is required"))
	}

	pin, err := h.generatePIN()
	if err != nil {
		return nil, fmt.Errorf("request_verification: %w", err)
	}

	pending, err := verification.NewPending(email, cmd.FullName, pin, h.config.Clock.Now(), h.config.TTL)
	if err != nil {
		return nil, fmt.Errorf("request_verification: %w", err)
	}
	if err := h.store.Put(ctx, pending); err != nil {
		return nil, fmt.Errorf("request_verification: failed to store pin: %w", err)
	}

	publish(h.eventPublisher, h.log, shared.NewVerificationRequestedEvent(email, pending.ExpiresAt))
	logger.FromContextOr(ctx, h.log).Info("verification requested", logger.Email(email))

	result := &RequestVerificationResult{Email: email, ExpiresAt: pending.ExpiresAt}
	if h.config.ExposePIN {
		result.PIN = pin
	}
	return result, nil
}

// ConfirmVerificationCommand submits a PIN.
type ConfirmVerificationCommand struct {
	Email string
	PIN   string
}

// ConfirmVerificationResult is returned on success.
type ConfirmVerificationResult struct {
	Email    string
	FullName string
}

// ConfirmVerificationHandler checks PINs.
type ConfirmVerificationHandler struct {
	store          verification.Store
	eventPublisher shared.EventPublisher
	config         VerificationConfig
	log            *logger.Logger
}

// NewConfirmVerificationHandler creates a new ConfirmVerificationHandler.
func NewConfirmVerificationHandler(store verification.Store, eventPublisher shared.EventPublisher, config VerificationConfig) *ConfirmVerificationHandler {
	config = config.withDefaults()
	return &ConfirmVerificationHandler{
		store:          store,
		eventPublisher: eventPublisher,
		config:         config,
		log:            config.Logger.With(logger.Component("confirm_verification")),
	}
}

// Handle checks the PIN. The pending entry is removed on success, on expiry
// and once attempts are exhausted; a wrong PIN only counts an attempt.
func (h *ConfirmVerificationHandler) Handle(ctx context.Context, cmd ConfirmVerificationCommand) (*ConfirmVerificationResult, error) {
	email, err := verification.NormalizeEmail(cmd.Email)
	if err != nil {
		return nil, fmt.Errorf("confirm_verification: validation failed: %w", err)
	}

	pending, err := h.store.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("confirm_verification: %w", err)
	}

	checkErr := pending.Check(cmd.PIN, h.config.Clock.Now(), h.config.MaxAttempts)
	switch {
	case checkErr == nil,
		errors.Is(checkErr, shared.ErrVerificationExpired),
		errors.Is(checkErr, shared.ErrTooManyAttempts):
		if err := h.store.Delete(ctx, email); err != nil {
			h.log.Warn("failed to delete pending verification", logger.Email(email), logger.Err(err))
		}
	default:
		if err := h.store.Put(ctx, pending); err != nil {
			h.log.Warn("failed to persist attempt count", logger.Email(email), logger.Err(err))
		}
	}
	if checkErr != nil {
		return nil, fmt.Errorf("confirm_verification: %w", checkErr)
	}

	publish(h.eventPublisher, h.log, shared.NewVerificationConfirmedEvent(email, pending.FullName))
	logger.FromContextOr(ctx, h.log).Info("email verified", logger.Email(email))

	return &ConfirmVerificationResult{Email: email, FullName: pending.FullName}, nil
}
