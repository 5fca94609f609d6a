// Package logging provides structured logging for the harness, built on
// Go's standard slog package.
//
// Every log entry carries a subsystem identifier so output from the
// supervisor, reconciler, scheduler and reporter can be told apart when the
// run is noisy. The level filter is configured once at startup from the
// harness verbosity settings.
//
// Usage:
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//	logging.Info("Supervisor", "Started %s (PID %d)", name, pid)
//	logging.Error("Reconcile", err, "Could not remove %s", path)
package logging
