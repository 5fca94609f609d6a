package scheduler

import (
	"context"
	"fmt"
	"time"

	"harness/internal/report"
	"harness/pkg/logging"
)

// Scheduler executes test groups in dependency order against a live system.
// A single goroutine drives the whole run; the only concurrency during a
// run lives inside the supervised processes and their output readers.
type Scheduler struct {
	reg         *Registry
	agg         *report.Aggregator
	stopOnFirst bool

	// abort, when non-nil, is closed by the caller to stop the run
	// between tests, typically because a supervised process crashed.
	abort <-chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStopOnFirstFailure aborts the remaining groups at the first failing
// test. The default records failures and keeps going, so one run reports
// the true failure count.
func WithStopOnFirstFailure() Option {
	return func(s *Scheduler) { s.stopOnFirst = true }
}

// WithAbort wires an external abort signal, checked between tests.
func WithAbort(ch <-chan struct{}) Option {
	return func(s *Scheduler) { s.abort = ch }
}

func New(reg *Registry, agg *report.Aggregator, opts ...Option) *Scheduler {
	s := &Scheduler{reg: reg, agg: agg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Plan expands the selection into its dependency closure in execution
// order. Exposed separately from Run so the caller can size the expected
// test total before any test executes.
func (s *Scheduler) Plan(selected []string) ([]*Group, error) {
	return Closure(s.reg, selected)
}

// CountTests returns how many tests the planned groups declare.
func CountTests(groups []*Group) int {
	n := 0
	for _, g := range groups {
		n += len(g.Tests)
	}
	return n
}

// Run executes the planned groups. Test failures and suite-level failures
// land in the aggregator; the returned error covers only setup problems
// that prevented tests from running at all.
func (s *Scheduler) Run(ctx context.Context, rc *RunContext, plan []*Group, selected []string) error {
	var reqs Requirements
	for _, g := range plan {
		reqs = reqs.union(g.Requires)
	}
	if err := rc.ensure(ctx, reqs); err != nil {
		s.agg.SuiteFailure("setup", err.Error())
		s.skipAll(plan, 0, 0)
		return fmt.Errorf("one-time setup: %w", err)
	}

	explicit := make(map[string]bool, len(selected))
	for _, name := range selected {
		explicit[name] = true
	}
	// An empty selection means everything was selected explicitly.
	all := len(selected) == 0

	for gi, g := range plan {
		if s.halted(ctx) {
			s.skipAll(plan, gi, 0)
			return nil
		}

		if all || explicit[g.Name] {
			logging.Info("scheduler", "=== %s (%d tests) ===", g.Name, len(g.Tests))
		} else {
			logging.Debug("scheduler", "running dependency group %s", g.Name)
		}

		stop := s.runGroup(ctx, rc, g, func(ti int) {
			for ; ti < len(g.Tests); ti++ {
				s.agg.Skip(g.Name, g.Tests[ti].Name)
			}
		})
		if stop {
			s.skipAll(plan, gi+1, 0)
			return nil
		}
	}
	return nil
}

// runGroup runs one group's tests in declaration order. A panic anywhere in
// a test body is a suite-level failure: it is recorded apart from the
// per-test tallies and the rest of the group is skipped. The returned bool
// asks the caller to halt the remaining groups.
func (s *Scheduler) runGroup(ctx context.Context, rc *RunContext, g *Group, skipFrom func(ti int)) (stop bool) {
	ti := 0
	defer func() {
		if r := recover(); r != nil {
			s.agg.SuiteFailure(g.Name, fmt.Sprintf("group panicked: %v", r))
			skipFrom(ti + 1)
			stop = s.stopOnFirst
		}
	}()

	for ; ti < len(g.Tests); ti++ {
		if s.halted(ctx) {
			skipFrom(ti)
			return true
		}

		t := g.Tests[ti]
		start := time.Now()
		err := t.Fn(ctx, rc)
		elapsed := time.Since(start)

		if err == nil {
			s.agg.Pass(g.Name, t.Name, elapsed)
			logging.Debug("scheduler", "PASS %s/%s (%s)", g.Name, t.Name, elapsed.Round(time.Millisecond))
			continue
		}

		s.agg.Fail(g.Name, t.Name, elapsed, err)
		logging.Warn("scheduler", "FAIL %s/%s: %v", g.Name, t.Name, err)
		if s.stopOnFirst {
			skipFrom(ti + 1)
			return true
		}
	}
	return false
}

// skipAll marks as skipped every test from group index gi, test index ti
// onwards, so the report shows exactly what never ran.
func (s *Scheduler) skipAll(plan []*Group, gi, ti int) {
	for ; gi < len(plan); gi++ {
		for ; ti < len(plan[gi].Tests); ti++ {
			s.agg.Skip(plan[gi].Name, plan[gi].Tests[ti].Name)
		}
		ti = 0
	}
}

func (s *Scheduler) halted(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if s.abort == nil {
		return false
	}
	select {
	case <-s.abort:
		return true
	default:
		return false
	}
}
