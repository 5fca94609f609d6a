package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harness/internal/client"
	"harness/internal/report"
)

func noop(ctx context.Context, rc *RunContext) error { return nil }

func failing(ctx context.Context, rc *RunContext) error { return errors.New("assertion failed") }

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{
		Name:  "alpha",
		Tests: []Test{{Name: "a1", Fn: noop}, {Name: "a2", Fn: noop}},
	}))
	require.NoError(t, reg.Register(Group{
		Name:  "beta",
		Deps:  []string{"alpha"},
		Tests: []Test{{Name: "b1", Fn: noop}},
	}))
	require.NoError(t, reg.Register(Group{
		Name:  "gamma",
		Tests: []Test{{Name: "g1", Fn: noop}},
	}))
	return reg
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{Name: "alpha"}))
	assert.Error(t, reg.Register(Group{Name: "alpha"}))
}

func TestClosurePullsInDependencies(t *testing.T) {
	reg := newTestRegistry(t)

	// Selecting only beta pulls alpha in; gamma is not reachable and must
	// not run.
	plan, err := Closure(reg, []string{"beta"})
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "alpha", plan[0].Name)
	assert.Equal(t, "beta", plan[1].Name)
}

func TestClosureEmptySelectionMeansEverything(t *testing.T) {
	reg := newTestRegistry(t)

	plan, err := Closure(reg, nil)
	require.NoError(t, err)
	names := make([]string, len(plan))
	for i, g := range plan {
		names[i] = g.Name
	}
	// Dependencies first, independents in registration order.
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)
}

func TestClosureUnknownGroup(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := Closure(reg, []string{"delta"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delta")
}

func TestClosureDetectsCycle(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{Name: "a", Deps: []string{"b"}}))
	require.NoError(t, reg.Register(Group{Name: "b", Deps: []string{"a"}}))

	_, err := Closure(reg, []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestRunContinueModeRunsEverything(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{
		Name: "first",
		Tests: []Test{
			{Name: "ok", Fn: noop},
			{Name: "bad", Fn: failing},
			{Name: "after-bad", Fn: noop},
		},
	}))
	require.NoError(t, reg.Register(Group{
		Name:  "second",
		Tests: []Test{{Name: "ok", Fn: noop}},
	}))

	agg := report.NewAggregator(4)
	s := New(reg, agg)
	plan, err := s.Plan(nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), NewRunContext(nil, "", ""), plan, nil))

	r := agg.Finalize()
	assert.Equal(t, 4, r.Executed)
	assert.Equal(t, 3, r.Passed)
	assert.Equal(t, 1, r.Failed)
	assert.Zero(t, r.Skipped)
}

func TestRunStopOnFirstFailure(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{
		Name: "first",
		Tests: []Test{
			{Name: "ok", Fn: noop},
			{Name: "bad", Fn: failing},
			{Name: "never", Fn: noop},
		},
	}))
	require.NoError(t, reg.Register(Group{
		Name:  "second",
		Tests: []Test{{Name: "never", Fn: noop}},
	}))

	agg := report.NewAggregator(4)
	s := New(reg, agg, WithStopOnFirstFailure())
	plan, err := s.Plan(nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), NewRunContext(nil, "", ""), plan, nil))

	r := agg.Finalize()
	// Execution halted at the failing test; executed covers exactly the
	// tests attempted up to and including it.
	assert.Equal(t, 2, r.Executed)
	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 2, r.Skipped)
	assert.False(t, r.Success())
}

func TestRunGroupPanicIsSuiteFailure(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{
		Name: "shaky",
		Tests: []Test{
			{Name: "ok", Fn: noop},
			{Name: "boom", Fn: func(ctx context.Context, rc *RunContext) error {
				panic("nil map write")
			}},
			{Name: "after-boom", Fn: noop},
		},
	}))
	require.NoError(t, reg.Register(Group{
		Name:  "steady",
		Tests: []Test{{Name: "ok", Fn: noop}},
	}))

	agg := report.NewAggregator(4)
	s := New(reg, agg)
	plan, err := s.Plan(nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), NewRunContext(nil, "", ""), plan, nil))

	r := agg.Finalize()
	require.Len(t, r.SuiteFailures, 1)
	assert.Equal(t, "shaky", r.SuiteFailures[0].Group)
	assert.Contains(t, r.SuiteFailures[0].Reason, "nil map write")
	// The panic is not a test failure; the interrupted test's siblings
	// are skipped and the next group still runs in continue mode.
	assert.Zero(t, r.Failed)
	assert.Equal(t, 2, r.Passed)
	assert.Equal(t, 1, r.Skipped)
	assert.False(t, r.Success())
}

func TestRunAbortBetweenTests(t *testing.T) {
	abort := make(chan struct{})
	close(abort)

	reg := newTestRegistry(t)
	agg := report.NewAggregator(4)
	s := New(reg, agg, WithAbort(abort))
	plan, err := s.Plan(nil)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background(), NewRunContext(nil, "", ""), plan, nil))

	r := agg.Finalize()
	assert.Zero(t, r.Executed)
	assert.Equal(t, 4, r.Skipped)
}

func TestRunSetupFailureIsSuiteFailure(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Group{
		Name:     "needs-auth",
		Requires: Requirements{Auth: true},
		Tests:    []Test{{Name: "whoami", Fn: noop}},
	}))

	// Nothing listens on port 9; login cannot succeed.
	c := client.New("http://127.0.0.1:9", time.Second)
	rc := NewRunContext(c, "admin@example.com", "admin")

	agg := report.NewAggregator(1)
	s := New(reg, agg)
	plan, err := s.Plan(nil)
	require.NoError(t, err)
	err = s.Run(context.Background(), rc, plan, nil)
	require.Error(t, err)

	r := agg.Finalize()
	require.Len(t, r.SuiteFailures, 1)
	assert.Equal(t, "setup", r.SuiteFailures[0].Group)
	assert.Equal(t, 1, r.Skipped)
	assert.Zero(t, r.Executed)
}

func TestEnsureSkipsSatisfiedRequirements(t *testing.T) {
	// A pre-authenticated context with a project and collection already
	// set must not touch the network at all; a client pointed at a dead
	// address proves it.
	c := client.New("http://127.0.0.1:9", time.Second)
	c.SetToken("preexisting-token")
	rc := NewRunContext(c, "admin@example.com", "admin")
	rc.ProjectID = "p-1"
	rc.CollectionID = "c-1"

	err := rc.ensure(context.Background(), Requirements{Auth: true, Project: true, Collection: true})
	assert.NoError(t, err)
	assert.Equal(t, "p-1", rc.ProjectID)
}

func TestRunContextStash(t *testing.T) {
	rc := NewRunContext(nil, "", "")
	_, ok := rc.Get("documentId")
	assert.False(t, ok)

	rc.Put("documentId", "doc-42")
	v, ok := rc.Get("documentId")
	assert.True(t, ok)
	assert.Equal(t, "doc-42", v)
}
