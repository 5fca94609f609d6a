package runner

import (
	"context"
	"fmt"
	"os"

	"harness/internal/client"
	"harness/internal/config"
	"harness/internal/groups"
	"harness/internal/reconcile"
	"harness/internal/report"
	"harness/internal/scheduler"
	"harness/internal/supervisor"
	"harness/pkg/logging"
)

// RunFailed means the run completed and produced a report, and the report
// says the run did not pass. It is not an operational error; it exists so
// the command layer can turn a red report into exit code 1.
type RunFailed struct {
	Report *report.RunReport
}

func (e *RunFailed) Error() string {
	return fmt.Sprintf("run failed: %d test failure(s), %d suite failure(s), %d skipped",
		e.Report.Failed, len(e.Report.SuiteFailures), e.Report.Skipped)
}

// Run drives one full harness run: clean state, live services, tests,
// report, teardown. Teardown always executes, whatever happened before it.
func Run(ctx context.Context, cfg config.Config, selected []string) error {
	reg := groups.Default()

	// Plan before touching anything so a typo in a group name costs
	// nothing.
	plan, err := scheduler.Closure(reg, selected)
	if err != nil {
		return err
	}

	rec := reconcile.New(reconcile.WithStrictClean(cfg.Run.StrictCleanAfter))
	targets := cleanupTargets(cfg.Cleanup)

	if cfg.Cleanup.StalePattern != "" {
		supervisor.CleanupStaleProcesses(cfg.Cleanup.StalePattern)
	}

	rep, err := rec.Reconcile(ctx, targets)
	if err != nil {
		return fmt.Errorf("baseline cleanup: %w", err)
	}
	if !rep.Clean() {
		logging.Warn("runner", "baseline cleanup left %d leftover(s)", len(rep.Leftover))
	}

	sup := supervisor.New(cfg.Run.Verbose)
	agg := report.NewAggregator(scheduler.CountTests(plan))

	// Everything from here on runs under guaranteed teardown: stop the
	// services, then reset on-disk state, no matter how the run ended.
	defer func() {
		sup.StopAll()
		if cfg.Run.KeepData {
			logging.Info("runner", "keeping data directories for inspection")
			return
		}
		if _, err := rec.Reconcile(context.Background(), targets); err != nil {
			logging.Warn("runner", "teardown cleanup: %v", err)
		}
	}()

	if err := sup.Start(ctx, serviceSpecs(cfg.Services)); err != nil {
		return err
	}
	if err := sup.AwaitReady(ctx); err != nil {
		return err
	}

	api := client.New(cfg.Target.BaseURL, cfg.Target.RequestTimeout)
	rc := scheduler.NewRunContext(api, cfg.Target.AdminEmail, cfg.Target.AdminPassword)

	opts := []scheduler.Option{scheduler.WithAbort(sup.Crashed())}
	if cfg.Run.StopOnFirstFailure {
		opts = append(opts, scheduler.WithStopOnFirstFailure())
	}
	sched := scheduler.New(reg, agg, opts...)

	if err := sched.Run(ctx, rc, plan, selected); err != nil {
		// Already recorded as a suite failure; the report below
		// carries it.
		logging.Warn("runner", "scheduler: %v", err)
	}

	r := agg.Finalize()
	persist(r, cfg.Report, sup)
	report.WriteConsole(r, os.Stdout)

	if crash := sup.Crash(); crash != nil {
		return crash
	}
	if !r.Success() {
		return &RunFailed{Report: r}
	}
	return nil
}

// persist writes the report artifacts. Failures to write are logged, not
// returned: the verdict of the run must not flip because a disk was full.
func persist(r *report.RunReport, cfg config.ReportConfig, sup *supervisor.Supervisor) {
	if _, err := report.WriteJSON(r, cfg.Dir); err != nil {
		logging.Error("runner", err, "could not write JSON report")
	}
	if _, err := report.WriteNarrative(r, cfg.Dir); err != nil {
		logging.Error("runner", err, "could not write narrative report")
	}
	if cfg.Transcript {
		if err := report.WriteTranscripts(sup.Transcripts(), r.StartedAt, cfg.Dir); err != nil {
			logging.Error("runner", err, "could not write transcripts")
		}
	}
}

func serviceSpecs(svcs []config.ServiceConfig) []supervisor.ServiceSpec {
	out := make([]supervisor.ServiceSpec, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, supervisor.ServiceSpec{
			Name:        s.Name,
			Command:     s.Command,
			Dir:         s.Dir,
			Env:         s.Env,
			Port:        s.Port,
			HealthURL:   s.HealthURL,
			GracePeriod: s.Grace,
		})
	}
	return out
}

func cleanupTargets(cfg config.CleanupConfig) []reconcile.CleanupTarget {
	var targets []reconcile.CleanupTarget
	if cfg.Database != "" {
		targets = append(targets, reconcile.CleanupTarget{
			Path: cfg.Database,
			Kind: reconcile.KindFileWithWAL,
		})
	}
	if cfg.BackupsDir != "" {
		targets = append(targets, reconcile.CleanupTarget{
			Path: cfg.BackupsDir,
			Kind: reconcile.KindDirectory,
		})
	}
	for _, p := range cfg.Extra {
		targets = append(targets, reconcile.CleanupTarget{
			Path: p,
			Kind: reconcile.KindFile,
		})
	}
	return targets
}
