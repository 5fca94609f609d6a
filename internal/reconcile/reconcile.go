package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"harness/internal/retry"
	"harness/pkg/logging"
)

// dbFilePatterns are the globs the verification pass matches leftover files
// against. Anything matching after a cleanup pass is reported as a warning.
var dbFilePatterns = []string{"*.db", "*.db-wal", "*.db-shm", "*.sqlite", "*.sqlite3"}

// Reconciler brings persistent on-disk state back to a clean baseline
// before and after a run. Deletion failures are retried with backoff and a
// lock probe; surviving files are warnings, never hard failures, because a
// transient OS lock must not abort the whole run.
type Reconciler struct {
	retryCfg retry.Config

	// strictAfter, when > 0, turns that many consecutive passes with
	// leftovers into a hard error instead of a warning.
	strictAfter          int
	consecutiveLeftovers int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithStrictClean makes the reconciler fail hard after n consecutive passes
// that still show leftover database files.
func WithStrictClean(n int) Option {
	return func(r *Reconciler) { r.strictAfter = n }
}

// WithRetry overrides the deletion retry parameters.
func WithRetry(cfg retry.Config) Option {
	return func(r *Reconciler) { r.retryCfg = cfg }
}

// New creates a reconciler with platform-tuned retry defaults. Windows file
// locks linger after process exit, so the base delay is scaled up there.
func New(opts ...Option) *Reconciler {
	base := 200 * time.Millisecond
	if runtime.GOOS == "windows" {
		base = time.Second
	}
	r := &Reconciler{
		retryCfg: retry.Config{
			MaxAttempts: 5,
			BaseDelay:   base,
			MaxDelay:    5 * time.Second,
			Jitter:      true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile removes every target, retrying under contention, then runs a
// verification pass over the target directories. The returned report lists
// what was removed, what could not be removed, and what the verification
// pass still sees. The only hard error is failing to recreate a directory
// target (or exceeding the strict-clean threshold when enabled).
func (r *Reconciler) Reconcile(ctx context.Context, targets []CleanupTarget) (Report, error) {
	start := time.Now()
	report := Report{}

	for _, target := range targets {
		for _, path := range target.Paths() {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				continue
			}

			if err := r.remove(ctx, path, target.Kind); err != nil {
				warn := &CleanupWarning{Path: path, Err: err}
				logging.Warn("Reconcile", "%v", warn)
				report.Failed = append(report.Failed, path)
				continue
			}
			report.Removed = append(report.Removed, path)
			logging.Debug("Reconcile", "Removed %s (%s)", path, target.Kind)
		}

		// Directory targets come back as empty directories so the services
		// find their working directories in place.
		if target.Kind == KindDirectory {
			if err := os.MkdirAll(target.Path, 0755); err != nil {
				return report, fmt.Errorf("failed to recreate directory %s: %w", target.Path, err)
			}
		}
	}

	report.Leftover = r.verify(targets)
	report.Duration = time.Since(start)

	if len(report.Leftover) > 0 {
		r.consecutiveLeftovers++
		logging.Warn("Reconcile", "Verification found %d leftover file(s): %v", len(report.Leftover), report.Leftover)
		if r.strictAfter > 0 && r.consecutiveLeftovers >= r.strictAfter {
			return report, fmt.Errorf("strict clean: %d consecutive passes with leftover files", r.consecutiveLeftovers)
		}
	} else {
		r.consecutiveLeftovers = 0
	}

	return report, nil
}

// remove deletes one path with retry. The probe first waits briefly for a
// filesystem event on the path (the lock holder releasing it), then checks
// whether the file opens read-write; a positive probe retries immediately
// instead of sleeping out the backoff.
func (r *Reconciler) remove(ctx context.Context, path string, kind TargetKind) error {
	cfg := r.retryCfg
	if kind != KindDirectory {
		cfg.Probe = func() bool {
			waitForRelease(path, cfg.BaseDelay)
			return probeLockFree(path)
		}
	}

	return retry.Do(ctx, cfg, func() error {
		if kind == KindDirectory {
			return os.RemoveAll(path)
		}
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// verify re-lists the directories containing the targets and returns every
// file still matching a known database-file pattern.
func (r *Reconciler) verify(targets []CleanupTarget) []string {
	dirs := map[string]bool{}
	for _, target := range targets {
		if target.Kind == KindDirectory {
			dirs[target.Path] = true
		} else {
			dirs[filepath.Dir(target.Path)] = true
		}
	}

	var leftover []string
	for dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			for _, pattern := range dbFilePatterns {
				if ok, _ := filepath.Match(pattern, entry.Name()); ok {
					leftover = append(leftover, filepath.Join(dir, entry.Name()))
					break
				}
			}
		}
	}
	return leftover
}
