package supervisor

import "fmt"

// SetupError means the environment could not be brought up: a service never
// became healthy within the startup budget. It carries a diagnostic snapshot
// of every supervised service so the failure can be investigated without a
// rerun.
type SetupError struct {
	Service     string
	Reason      string
	Diagnostics []Diagnostic
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed for %s: %s", e.Service, e.Reason)
}

// ProcessCrash means a supervised process exited, or wrote a fatal
// signature, while the run still needed it.
type ProcessCrash struct {
	Service string
	// Signature is the matched fatal output pattern, empty when the crash
	// was detected by process exit instead.
	Signature string
	// Line is the full output line that matched Signature.
	Line string
	// ExitErr is the wait error for exit-detected crashes.
	ExitErr error
}

func (e *ProcessCrash) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("%s crashed: matched %q in output: %s", e.Service, e.Signature, e.Line)
	}
	if e.ExitErr != nil {
		return fmt.Sprintf("%s exited unexpectedly: %v", e.Service, e.ExitErr)
	}
	return fmt.Sprintf("%s exited unexpectedly", e.Service)
}

func (e *ProcessCrash) Unwrap() error { return e.ExitErr }
