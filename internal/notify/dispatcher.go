// Package notify hands freshly generated verification codes to whatever delivers them.
// Delivery itself (email sending) happens outside this service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"bookshelf/internal/cache"
)

// Purpose values describe why a code was issued.
const (
	PurposeRegistration = "registration"
	PurposeResend       = "resend"
)

// OTPMessage is the payload placed on the outbox for the mailer.
type OTPMessage struct {
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	Purpose  string    `json:"purpose"`
	IssuedAt time.Time `json:"issued_at"`
}

// OTPDispatcher queues a verification code for delivery.
type OTPDispatcher interface {
	Dispatch(ctx context.Context, msg OTPMessage) error
}

// RedisDispatcher pushes OTP messages onto a Redis list consumed by the mailer.
type RedisDispatcher struct {
	cache *cache.Client
	key   string
}

var _ OTPDispatcher = (*RedisDispatcher)(nil)

// NewRedisDispatcher creates a dispatcher writing to the list at key.
func NewRedisDispatcher(c *cache.Client, key string) *RedisDispatcher {
	return &RedisDispatcher{cache: c, key: key}
}

// Dispatch serializes msg and pushes it to the outbox list.
func (d *RedisDispatcher) Dispatch(ctx context.Context, msg OTPMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal otp message: %w", err)
	}
	return d.cache.Push(ctx, d.key, payload)
}

// LogDispatcher only records that a code was issued. The code itself is never logged.
type LogDispatcher struct {
	logger *slog.Logger
}

var _ OTPDispatcher = (*LogDispatcher)(nil)

// NewLogDispatcher creates a dispatcher that writes to logger.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the issuance.
func (d *LogDispatcher) Dispatch(ctx context.Context, msg OTPMessage) error {
	d.logger.InfoContext(ctx, "otp issued",
		slog.String("email", msg.Email),
		slog.String("purpose", msg.Purpose),
	)
	return nil
}
