package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/glimte/rabbiteer/internal/apperr"
	"github.com/glimte/rabbiteer/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExponentialBackoff spaces out reconnect attempts
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxAttempts is the number of retries after the first attempt
	MaxAttempts int
	Jitter      bool
}

// NewExponentialBackoff creates a new exponential backoff policy
func NewExponentialBackoff(initial, max time.Duration, multiplier float64, maxRetries int) *ExponentialBackoff {
	return &ExponentialBackoff{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
		MaxAttempts:     maxRetries,
		Jitter:          true,
	}
}

// ShouldRetry reports whether attempt (counted from zero) may be retried
// after err, and how long to wait first.
func (e *ExponentialBackoff) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if attempt >= e.MaxAttempts || !isRetryableError(err) {
		return false, 0
	}
	return true, e.NextDelay(attempt)
}

// NextDelay returns the wait before retry number attempt
func (e *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(e.InitialInterval) * math.Pow(e.Multiplier, float64(attempt))

	if delay > float64(e.MaxInterval) {
		delay = float64(e.MaxInterval)
	}

	// ±15%
	if e.Jitter {
		jitter := rand.Float64() * 0.3 * delay
		delay = delay + jitter - (0.15 * delay)
	}

	return time.Duration(delay)
}

// Refused logins and unknown vhosts fail the same way every time.
func isRetryableError(err error) bool {
	if !apperr.Is(err, apperr.Connection) {
		return false
	}
	return !errors.Is(err, amqp.ErrCredentials) && !errors.Is(err, amqp.ErrVhost)
}

// RetryDialer wraps dial so that connection failures are retried with
// policy. The last dial error is returned once the policy gives up.
func RetryDialer(dial Dialer, policy *ExponentialBackoff, logger *slog.Logger) Dialer {
	return func(ctx context.Context, opts config.ConnectionOptions) (Session, error) {
		for attempt := 0; ; attempt++ {
			sess, err := dial(ctx, opts)
			if err == nil {
				return sess, nil
			}

			retry, delay := policy.ShouldRetry(attempt, err)
			if !retry {
				return nil, err
			}

			logger.Warn("connection failed, retrying",
				"attempt", attempt+1,
				"delay", delay,
				"error", err,
			)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}
}
