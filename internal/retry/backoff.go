// Package retry runs collaborator calls with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/stwalsh4118/kakaku/internal/config"
	"github.com/stwalsh4118/kakaku/internal/logger"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterEnabled bool
}

// FromConfig builds retry settings from the pipeline configuration.
func FromConfig(cfg config.RetryConfig) Config {
	return Config{
		MaxAttempts:   cfg.MaxAttempts,
		InitialDelay:  cfg.BaseDelay,
		MaxDelay:      30 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. WithBackoff returns it
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WithBackoff executes fn with exponential backoff and optional jitter.
func WithBackoff(ctx context.Context, cfg Config, log *logger.Logger, operation string, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retries", logger.Fields{
					"operation": operation,
					"attempts":  attempt,
				})
			}
			return nil
		}

		if IsPermanent(lastErr) {
			return fmt.Errorf("%s failed: %w", operation, lastErr)
		}
		if attempt == attempts {
			break
		}

		delay := calculateBackoff(cfg, attempt)
		log.Warn("Operation failed, retrying", logger.Fields{
			"operation":    operation,
			"attempt":      attempt,
			"max_attempts": attempts,
			"retry_in":     delay.String(),
			"error":        lastErr.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

func calculateBackoff(cfg Config, attempt int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt-1))

	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	// +/-15% jitter
	if cfg.JitterEnabled {
		jitter := rand.Float64() * 0.3 * delay
		delay = delay + jitter - (0.15 * delay)
	}

	return time.Duration(delay)
}
