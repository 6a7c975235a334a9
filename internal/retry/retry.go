// Package retry wraps single remote operations with a per-attempt
// timeout and an exponential backoff policy.
package retry

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/memrelay/memrelay/internal/clock"
	"github.com/memrelay/memrelay/internal/logging"
	"github.com/memrelay/memrelay/internal/remote"
)

// maxDelay caps the computed backoff between attempts.
const maxDelay = 30 * time.Second

// Config holds executor tuning.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration

	// Clock supplies the backoff waits; tests inject a fake.
	Clock clock.Clock

	// Jitter returns the random component added to each delay, in
	// [0, 1s). Tests inject a fixed sequence.
	Jitter func() time.Duration

	// Logger for retry diagnostics.
	Logger *log.Logger
}

// DefaultConfig returns production settings.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		CallTimeout: 30 * time.Second,
		Clock:       clock.Real(),
		Jitter:      randomJitter,
		Logger:      logging.New(os.Stderr, clock.Real()),
	}
}

func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(time.Second)))
}

// Executor runs operations under the retry policy.
type Executor struct {
	cfg *Config
}

// New creates an executor. Zero-value config fields fall back to the
// defaults.
func New(cfg *Config) *Executor {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = def.Clock
	}
	if cfg.Jitter == nil {
		cfg.Jitter = def.Jitter
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return &Executor{cfg: cfg}
}

// Do runs op until one attempt succeeds, a non-retriable failure
// occurs, or attempts are exhausted. Each attempt gets its own timeout
// context derived from ctx; a failure caused by ctx itself being
// cancelled is never retried, while the executor's own per-attempt
// timeout is.
func (e *Executor) Do(ctx context.Context, label string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		// Caller-initiated cancellation: distinguished by the parent
		// context's state, not the error text.
		if ctx.Err() != nil {
			return lastErr
		}

		if !remote.IsRetryable(err) {
			return lastErr
		}

		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		delay := e.delay(attempt)
		e.cfg.Logger.Printf("Warning: %s failed (attempt %d/%d), retrying in %s: %v",
			label, attempt+1, e.cfg.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return lastErr
		case <-e.cfg.Clock.After(delay):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, e.cfg.MaxAttempts, lastErr)
}

// delay computes the backoff after the given zero-based attempt:
// BaseDelay * 2^attempt + jitter, capped at maxDelay.
func (e *Executor) delay(attempt int) time.Duration {
	d := e.cfg.BaseDelay << uint(attempt)
	if d <= 0 {
		// Shift overflow from a very large attempt count.
		d = maxDelay
	}
	d += e.cfg.Jitter()
	if d > maxDelay {
		d = maxDelay
	}
	return d
}
