package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"harness/internal/classify"
	"harness/pkg/logging"
)

// Aggregator collects outcomes as the scheduler produces them and freezes
// them into a RunReport exactly once. It is safe for concurrent Record
// calls, though the scheduler currently runs groups sequentially.
type Aggregator struct {
	mu            sync.Mutex
	runID         string
	startedAt     time.Time
	expectedTotal int
	outcomes      []TestOutcome
	suiteFailures []SuiteFailure

	finalizeOnce sync.Once
	report       *RunReport
}

// NewAggregator starts a run record. expectedTotal is the number of tests
// the selected groups declare; tests that never execute still count against
// the success rate.
func NewAggregator(expectedTotal int) *Aggregator {
	return &Aggregator{
		runID:         uuid.NewString(),
		startedAt:     time.Now(),
		expectedTotal: expectedTotal,
	}
}

// RunID identifies this run in artifacts and logs.
func (a *Aggregator) RunID() string { return a.runID }

// Pass records a passing test.
func (a *Aggregator) Pass(group, name string, d time.Duration) {
	a.record(TestOutcome{Group: group, Name: name, Status: StatusPassed, Duration: d})
}

// Fail records a failing test and classifies its error.
func (a *Aggregator) Fail(group, name string, d time.Duration, err error) {
	o := TestOutcome{
		Group:    group,
		Name:     name,
		Status:   StatusFailed,
		Duration: d,
		Err:      err,
	}
	if err != nil {
		c := classify.Classify(err)
		o.Error = err.Error()
		o.Source = string(c.Source)
		o.Category = c.Category
		o.FixLocation = c.FixLocation
	}
	a.record(o)
}

// Skip records a test that was selected but never ran, usually because an
// earlier failure stopped the run or its group's dependency failed.
func (a *Aggregator) Skip(group, name string) {
	a.record(TestOutcome{Group: group, Name: name, Status: StatusSkipped})
}

func (a *Aggregator) record(o TestOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.report != nil {
		logging.Warn("report", "outcome for %s/%s arrived after finalize, dropped", o.Group, o.Name)
		return
	}
	a.outcomes = append(a.outcomes, o)
}

// SuiteFailure records a failure of the run machinery itself.
func (a *Aggregator) SuiteFailure(group, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.report != nil {
		logging.Warn("report", "suite failure for %s arrived after finalize, dropped", group)
		return
	}
	a.suiteFailures = append(a.suiteFailures, SuiteFailure{Group: group, Reason: reason})
}

// Finalize freezes the collected outcomes into a RunReport. Repeated calls
// return the same report; the teardown path and the normal path may both
// call it without double-counting anything.
func (a *Aggregator) Finalize() *RunReport {
	a.finalizeOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		r := &RunReport{
			RunID:         a.runID,
			StartedAt:     a.startedAt,
			FinishedAt:    time.Now(),
			ExpectedTotal: a.expectedTotal,
			Outcomes:      a.outcomes,
			SuiteFailures: a.suiteFailures,
		}
		r.Duration = r.FinishedAt.Sub(r.StartedAt)

		for _, o := range a.outcomes {
			switch o.Status {
			case StatusPassed:
				r.Passed++
				r.Executed++
			case StatusFailed:
				r.Failed++
				r.Executed++
			case StatusSkipped:
				r.Skipped++
			}
		}
		if a.expectedTotal > 0 {
			r.SuccessRate = float64(r.Passed) / float64(a.expectedTotal)
		}
		a.report = r
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report
}
