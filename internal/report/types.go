package report

import (
	"time"

	"harness/internal/classify"
)

// Status is the outcome of one test.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// TestOutcome records one executed (or deliberately skipped) test.
type TestOutcome struct {
	Group    string        `json:"group"`
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`

	// Error and the classification fields are set for failed tests only.
	Error       string `json:"error,omitempty"`
	Source      string `json:"source,omitempty"`
	Category    string `json:"category,omitempty"`
	FixLocation string `json:"fixLocation,omitempty"`

	// Err is the original error, kept for callers that want to unwrap;
	// the JSON artifact carries the string form.
	Err error `json:"-"`
}

// SuiteFailure is a failure of the machinery around the tests, a panicking
// group or a setup step that blew up, as opposed to a test that asserted
// and lost. Suite failures fail the run even when every executed test
// passed.
type SuiteFailure struct {
	Group  string `json:"group"`
	Reason string `json:"reason"`
}

// RunReport is the finalized result of a run.
type RunReport struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`

	// ExpectedTotal is how many tests the selected groups declare.
	// SuccessRate divides by it, not by the executed count, so a run
	// that aborted halfway cannot report an inflated rate.
	ExpectedTotal int     `json:"expectedTotal"`
	Executed      int     `json:"executed"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	Skipped       int     `json:"skipped"`
	SuccessRate   float64 `json:"successRate"`

	Outcomes      []TestOutcome  `json:"outcomes"`
	SuiteFailures []SuiteFailure `json:"suiteFailures,omitempty"`
}

// Success reports whether the run passed: every expected test executed and
// passed, and no suite failure occurred. A skipped test means something cut
// the run short, so it can never count toward a green verdict.
func (r *RunReport) Success() bool {
	return r.Failed == 0 &&
		len(r.SuiteFailures) == 0 &&
		r.Passed == r.ExpectedTotal
}

// failuresBySource groups failed outcomes for the narrative report.
func (r *RunReport) failuresBySource() map[string][]TestOutcome {
	grouped := make(map[string][]TestOutcome)
	for _, o := range r.Outcomes {
		if o.Status != StatusFailed {
			continue
		}
		src := o.Source
		if src == "" {
			src = string(classify.SourceUnknown)
		}
		grouped[src] = append(grouped[src], o)
	}
	return grouped
}
