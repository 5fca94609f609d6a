package supervisor

import (
	"os/exec"
	"sync"
	"time"
)

// ServiceState is the lifecycle state of one supervised process.
type ServiceState string

const (
	StateNotStarted ServiceState = "NotStarted"
	StateStarting   ServiceState = "Starting"
	StateReady      ServiceState = "Ready"
	StateStopping   ServiceState = "Stopping"
	StateStopped    ServiceState = "Stopped"
	StateCrashed    ServiceState = "Crashed"
)

// ServiceSpec describes one external process the supervisor launches.
type ServiceSpec struct {
	// Name identifies the service in logs and diagnostics.
	Name string
	// Command is the launch command and its arguments.
	Command []string
	// Dir is the working directory for the process.
	Dir string
	// Env holds extra environment entries in KEY=VALUE form, appended to the
	// parent environment.
	Env []string
	// Port is the TCP port the service binds; used by the port reaper
	// before startup.
	Port int
	// HealthURL is polled with GET until it answers 2xx.
	HealthURL string
	// GracePeriod is how long to wait after SIGTERM before escalating to
	// SIGKILL. The data-owning service gets a longer grace so it can flush
	// and close its storage handles.
	GracePeriod time.Duration
}

// ServiceProcess is one running supervised process. It is owned exclusively
// by the Supervisor and discarded once the process has exited and been
// reaped.
type ServiceProcess struct {
	Spec ServiceSpec

	cmd     *exec.Cmd
	capture *outputCapture

	mu        sync.Mutex
	state     ServiceState
	exited    bool
	lastCheck healthProbe
}

// healthProbe records the most recent health-check result for diagnostics.
type healthProbe struct {
	statusCode int
	err        error
	at         time.Time
}

// State returns the current lifecycle state.
func (p *ServiceProcess) State() ServiceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *ServiceProcess) setState(s ServiceState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Alive reports whether the underlying OS process is still running.
func (p *ServiceProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && p.cmd.Process != nil && !p.exited
}

// PID returns the process id, or 0 if the process never started.
func (p *ServiceProcess) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Output returns everything the process wrote so far.
func (p *ServiceProcess) Output() string {
	if p.capture == nil {
		return ""
	}
	return p.capture.contents()
}

// Diagnostic is the last-known snapshot of one service, embedded in the
// error raised when startup times out.
type Diagnostic struct {
	Service      string `json:"service"`
	State        string `json:"state"`
	Alive        bool   `json:"alive"`
	HealthStatus int    `json:"healthStatus"`
	HealthError  string `json:"healthError,omitempty"`
	LastOutput   string `json:"lastOutput,omitempty"`
}

func (p *ServiceProcess) diagnostic() Diagnostic {
	p.mu.Lock()
	probe := p.lastCheck
	state := p.state
	alive := p.cmd != nil && p.cmd.Process != nil && !p.exited
	p.mu.Unlock()

	d := Diagnostic{
		Service:      p.Spec.Name,
		State:        string(state),
		Alive:        alive,
		HealthStatus: probe.statusCode,
	}
	if probe.err != nil {
		d.HealthError = probe.err.Error()
	}
	if p.capture != nil {
		d.LastOutput = p.capture.tail(10)
	}
	return d
}
