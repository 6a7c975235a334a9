// Package daemon runs the poll loop that drives incremental sync.
//
// The daemon:
// 1. Runs one batching pass across all sources
// 2. Sleeps the poll interval
// 3. Repeats until the context is cancelled
// 4. Saves the live sync state on shutdown
//
// Passes never overlap: everything runs on the calling goroutine, and a
// failing or panicking pass is logged and contained so one bad pass
// cannot kill the process.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/memrelay/memrelay/internal/clock"
	"github.com/memrelay/memrelay/internal/logging"
	"github.com/memrelay/memrelay/internal/state"
)

// Config holds daemon tuning.
type Config struct {
	// PollInterval is the sleep between passes.
	PollInterval time.Duration

	// Clock supplies the inter-pass wait; tests inject a fake.
	Clock clock.Clock

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 120 * time.Second,
		Clock:        clock.Real(),
		Logger:       logging.New(os.Stderr, clock.Real()),
	}
}

// Passer runs one sync pass; the incremental batcher implements it.
type Passer interface {
	RunPass(ctx context.Context) error
}

// Daemon owns the poll loop and the single live state instance.
type Daemon struct {
	passer Passer
	state  *state.State
	config *Config
}

// New creates a daemon. The state instance is retained for the life of
// the process: the shutdown path saves that same instance, so progress
// made during an in-flight pass is never lost to a stale reload.
func New(passer Passer, st *state.State, config *Config) (*Daemon, error) {
	if passer == nil {
		return nil, fmt.Errorf("passer cannot be nil")
	}
	if st == nil {
		return nil, fmt.Errorf("state cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", config.PollInterval)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	return &Daemon{passer: passer, state: st, config: config}, nil
}

// Run executes passes until ctx is cancelled, then saves state and
// returns. It always returns nil; per-pass failures are logged, never
// propagated.
func (d *Daemon) Run(ctx context.Context) error {
	d.config.Logger.Printf("Daemon started (poll interval %s)", d.config.PollInterval)

	for {
		d.runOnce(ctx)

		if ctx.Err() != nil {
			d.shutdown()
			return nil
		}

		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		case <-d.config.Clock.After(d.config.PollInterval):
		}
	}
}

// runOnce executes a single pass, containing any failure or panic.
func (d *Daemon) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.config.Logger.Printf("Warning: pass panicked: %v", r)
		}
	}()

	if err := d.passer.RunPass(ctx); err != nil && ctx.Err() == nil {
		d.config.Logger.Printf("Warning: pass failed: %v", err)
	}
}

// shutdown persists the in-memory state before exit.
func (d *Daemon) shutdown() {
	d.config.Logger.Println("Shutdown signal received, saving state")
	d.state.Save()
	d.config.Logger.Println("Daemon stopped")
}
