// Package retry runs a unit of work with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Func is one attempt of the retried operation.
type Func func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	MaxRetries int           // additional attempts after the first
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     bool
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// jitterFactor spreads each delay by up to 10% either way.
const jitterFactor = 0.1

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	config Config
	name   string
}

// New creates a retrier. name is attached to every log line.
func New(name string, config Config) *Retrier {
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = backoff.DefaultMaxInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Retrier{config: config, name: name}
}

// newBackOff builds a fresh policy for one Do call; backoff state is not
// safe to share between goroutines.
func (r *Retrier) newBackOff(ctx context.Context) backoff.BackOff {
	if r.config.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	randomization := 0.0
	if r.config.Jitter {
		randomization = jitterFactor
	}
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(r.config.BaseDelay),
		backoff.WithMaxInterval(r.config.MaxDelay),
		backoff.WithMultiplier(r.config.Multiplier),
		backoff.WithRandomizationFactor(randomization),
		backoff.WithMaxElapsedTime(0),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.config.MaxRetries)), ctx)
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// context ends or the attempt budget is spent. The last error is wrapped.
func (r *Retrier) Do(ctx context.Context, fn Func) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		attempts  int
		permanent bool
		lastErr   error
	)
	operation := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if r.config.Retryable != nil && !r.config.Retryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		log.Warn().Err(err).
			Str("op", r.name).
			Int("attempt", attempts).
			Dur("delay", delay).
			Msg("attempt failed, retrying")
	}

	err := backoff.RetryNotify(operation, r.newBackOff(ctx), notify)
	switch {
	case err == nil:
		if attempts > 1 {
			log.Info().Str("op", r.name).Int("attempt", attempts).Msg("succeeded after retries")
		}
		return nil
	case permanent:
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w (last error: %v)", r.name, ctx.Err(), lastErr)
	}

	log.Error().Err(lastErr).Str("op", r.name).Int("attempts", attempts).Msg("retries exhausted")
	return fmt.Errorf("%s: retry limit exceeded after %d attempts: %w", r.name, attempts, lastErr)
}
