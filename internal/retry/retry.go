package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config parameterizes one retry loop. The same utility backs every
// retry-under-contention call site (resource reconciliation, port reaping),
// so backoff behavior stays uniform across the harness.
type Config struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the initial wait between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter randomizes each wait to avoid thundering retries.
	Jitter bool
	// Probe, when set, runs before each wait. Returning true means the
	// contended resource looks free again, so the next attempt starts
	// immediately instead of sleeping out the backoff.
	Probe func() bool
}

// Do runs op until it succeeds, the attempt budget is exhausted, or ctx is
// done. The returned error wraps the last attempt's error.
func Do(ctx context.Context, cfg Config, op func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	if cfg.MaxDelay > 0 {
		bo.MaxInterval = cfg.MaxDelay
	}
	if !cfg.Jitter {
		bo.RandomizationFactor = 0
	}
	bo.MaxElapsedTime = 0 // attempts are bounded by MaxAttempts, not wall time
	bo.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}

		if attempt >= cfg.MaxAttempts {
			return fmt.Errorf("giving up after %d attempt(s): %w", attempt, err)
		}

		if cfg.Probe != nil && cfg.Probe() {
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry canceled after %d attempt(s): %w", attempt, ctx.Err())
		case <-time.After(bo.NextBackOff()):
		}
	}
}
