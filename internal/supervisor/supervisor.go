package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/sync/errgroup"

	"harness/pkg/logging"
)

const (
	// defaultProbeInterval is the pause between health probes while a
	// service starts up.
	defaultProbeInterval = 2 * time.Second
	// defaultProbeAttempts bounds the startup wait; 60 probes at 2s gives
	// a slow CI runner two minutes per service.
	defaultProbeAttempts = 60
)

// Supervisor launches the services under test, watches their output for
// fatal signatures, and tears them down in reverse start order. It is not
// safe for concurrent Start/StopAll calls; run drives it from one goroutine.
type Supervisor struct {
	verbose bool
	client  *http.Client

	probeInterval time.Duration
	probeAttempts int

	mu    sync.Mutex
	procs []*ServiceProcess
	crash *ProcessCrash

	// crashed is closed once, on the first crash, so waiters can abort
	// early instead of burning their full probe budget.
	crashed   chan struct{}
	crashOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithProbeBudget overrides how often and how many times each service's
// health endpoint is probed before startup counts as failed.
func WithProbeBudget(interval time.Duration, attempts int) Option {
	return func(s *Supervisor) {
		s.probeInterval = interval
		s.probeAttempts = attempts
	}
}

// New returns a Supervisor. verbose echoes every captured output line
// through the harness log.
func New(verbose bool, opts ...Option) *Supervisor {
	s := &Supervisor{
		verbose:       verbose,
		client:        &http.Client{Timeout: 5 * time.Second},
		probeInterval: defaultProbeInterval,
		probeAttempts: defaultProbeAttempts,
		crashed:       make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start reaps stale listeners on each service's port, then launches every
// service. On the first launch failure it stops whatever already started and
// returns a SetupError.
func (s *Supervisor) Start(ctx context.Context, specs []ServiceSpec) error {
	for _, spec := range specs {
		if spec.Port > 0 {
			KillProcessOnPort(ctx, spec.Port)
		}

		proc, err := s.launch(spec)
		if err != nil {
			s.StopAll()
			return &SetupError{
				Service:     spec.Name,
				Reason:      err.Error(),
				Diagnostics: s.Diagnostics(),
			}
		}

		s.mu.Lock()
		s.procs = append(s.procs, proc)
		s.mu.Unlock()
		logging.Info("supervisor", "started %s (pid %d)", spec.Name, proc.PID())
	}
	return nil
}

func (s *Supervisor) launch(spec ServiceSpec) (*ServiceProcess, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("%s: empty command", spec.Name)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	configureProcAttr(cmd)

	proc := &ServiceProcess{Spec: spec, cmd: cmd, state: StateNotStarted}
	proc.capture = newOutputCapture(spec.Name, s.verbose, func(sig, line string) {
		s.recordCrash(proc, &ProcessCrash{Service: spec.Name, Signature: sig, Line: line})
	})

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout pipe: %w", spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stderr pipe: %w", spec.Name, err)
	}
	proc.capture.watch(stdout)
	proc.capture.watch(stderr)
	proc.capture.start()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: start %s: %w", spec.Name, spec.Command[0], err)
	}
	proc.setState(StateStarting)

	go s.reap(proc)
	return proc, nil
}

// reap waits for the process to exit and decides whether the exit was a
// crash. An exit while the state is Stopping or Stopped was asked for;
// anything else means the run lost a service it still needed.
func (s *Supervisor) reap(proc *ServiceProcess) {
	err := proc.cmd.Wait()
	proc.capture.wait()

	proc.mu.Lock()
	proc.exited = true
	requested := proc.state == StateStopping || proc.state == StateStopped
	if requested {
		proc.state = StateStopped
	}
	proc.mu.Unlock()

	if requested {
		return
	}
	proc.setState(StateCrashed)
	s.recordCrash(proc, &ProcessCrash{Service: proc.Spec.Name, ExitErr: err})
}

// recordCrash keeps the first crash and signals waiters. Later crashes are
// logged only; the first one is what aborted the run.
func (s *Supervisor) recordCrash(proc *ServiceProcess, crash *ProcessCrash) {
	proc.setState(StateCrashed)

	s.mu.Lock()
	first := s.crash == nil
	if first {
		s.crash = crash
	}
	s.mu.Unlock()

	if first {
		logging.Error("supervisor", crash, "crash detected in %s", crash.Service)
		s.crashOnce.Do(func() { close(s.crashed) })
		// A crashed environment must not keep serving tests: take every
		// service down now, not when the run eventually unwinds. Off
		// this goroutine because signature crashes arrive on the capture
		// reader, and stop waits for that reader to drain.
		go s.StopAll()
	} else {
		logging.Debug("supervisor", "secondary crash in %s: %v", crash.Service, crash)
	}
}

// Crash returns the first recorded crash, or nil.
func (s *Supervisor) Crash() *ProcessCrash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crash
}

// Crashed reports crashes to select loops; the channel is closed on the
// first crash.
func (s *Supervisor) Crashed() <-chan struct{} { return s.crashed }

// AwaitReady polls every service's health URL until all answer 2xx. It
// returns a SetupError carrying diagnostics for all services when any
// service exhausts its probe budget, and aborts immediately when a crash is
// detected mid-wait.
func (s *Supervisor) AwaitReady(ctx context.Context) error {
	s.mu.Lock()
	procs := make([]*ServiceProcess, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	var spin *spinner.Spinner
	if !s.verbose {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Suffix = " waiting for services..."
		spin.Start()
		defer spin.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, proc := range procs {
		proc := proc
		g.Go(func() error { return s.awaitOne(gctx, proc) })
	}
	return g.Wait()
}

func (s *Supervisor) awaitOne(ctx context.Context, proc *ServiceProcess) error {
	if proc.Spec.HealthURL == "" {
		proc.setState(StateReady)
		return nil
	}

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= s.probeAttempts; attempt++ {
		if s.probe(ctx, proc) {
			proc.setState(StateReady)
			logging.Info("supervisor", "%s is ready", proc.Spec.Name)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.crashed:
			crash := s.Crash()
			return &SetupError{
				Service:     crash.Service,
				Reason:      crash.Error(),
				Diagnostics: s.Diagnostics(),
			}
		case <-ticker.C:
		}
	}

	return &SetupError{
		Service: proc.Spec.Name,
		Reason: fmt.Sprintf("not healthy after %d probes of %s",
			s.probeAttempts, proc.Spec.HealthURL),
		Diagnostics: s.Diagnostics(),
	}
}

func (s *Supervisor) probe(ctx context.Context, proc *ServiceProcess) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, proc.Spec.HealthURL, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)

	probe := healthProbe{err: err, at: time.Now()}
	healthy := false
	if err == nil {
		probe.statusCode = resp.StatusCode
		healthy = resp.StatusCode >= 200 && resp.StatusCode < 300
		resp.Body.Close()
	}

	proc.mu.Lock()
	proc.lastCheck = probe
	proc.mu.Unlock()
	return healthy
}

// Diagnostics snapshots every supervised service for failure reports.
func (s *Supervisor) Diagnostics() []Diagnostic {
	s.mu.Lock()
	procs := make([]*ServiceProcess, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	out := make([]Diagnostic, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.diagnostic())
	}
	return out
}

// Transcripts returns each service's full captured output, keyed by service
// name, for the run transcript artifact.
func (s *Supervisor) Transcripts() map[string]string {
	s.mu.Lock()
	procs := make([]*ServiceProcess, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	out := make(map[string]string, len(procs))
	for _, p := range procs {
		out[p.Spec.Name] = p.Output()
	}
	return out
}

// StopAll shuts every service down in reverse start order: a termination
// request first, then a kill once the service's grace period elapses.
// Calling it again is a no-op, so it is safe both deferred and on the
// explicit teardown path.
func (s *Supervisor) StopAll() {
	s.stopOnce.Do(s.stopAll)
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	procs := make([]*ServiceProcess, len(s.procs))
	copy(procs, s.procs)
	s.mu.Unlock()

	for i := len(procs) - 1; i >= 0; i-- {
		s.stop(procs[i])
	}
}

func (s *Supervisor) stop(proc *ServiceProcess) {
	proc.mu.Lock()
	running := proc.cmd != nil && proc.cmd.Process != nil && !proc.exited
	if running {
		proc.state = StateStopping
	}
	proc.mu.Unlock()
	if !running {
		return
	}

	pid := proc.PID()
	logging.Info("supervisor", "stopping %s (pid %d)", proc.Spec.Name, pid)

	if err := signalProcessGroup(pid, terminateSignal); err != nil {
		logging.Debug("supervisor", "terminate %s: %v", proc.Spec.Name, err)
	}

	grace := proc.Spec.GracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	if s.waitExit(proc, grace) {
		logging.Debug("supervisor", "%s exited within grace", proc.Spec.Name)
		return
	}

	logging.Warn("supervisor", "%s ignored termination, killing", proc.Spec.Name)
	if err := signalProcessGroup(pid, killSignal); err != nil {
		logging.Warn("supervisor", "kill %s: %v", proc.Spec.Name, err)
	}
	if !s.waitExit(proc, 5*time.Second) {
		logging.Error("supervisor", fmt.Errorf("pid %d survived kill", pid), "failed to stop %s", proc.Spec.Name)
	}
}

// waitExit polls for process exit up to limit. The reap goroutine owns
// cmd.Wait, so this only watches the exited flag.
func (s *Supervisor) waitExit(proc *ServiceProcess, limit time.Duration) bool {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		proc.mu.Lock()
		exited := proc.exited
		proc.mu.Unlock()
		if exited {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
