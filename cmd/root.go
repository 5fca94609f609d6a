package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"harness/internal/runner"
	"harness/internal/supervisor"
)

// Exit codes. Scripts and CI only distinguish green from red, but the
// structured codes make log triage quicker.
const (
	// ExitCodeSuccess indicates the run completed with zero failures.
	ExitCodeSuccess = 0
	// ExitCodeError indicates test or suite failures, or a general error.
	ExitCodeError = 1
	// ExitCodeSetup indicates the environment never came up.
	ExitCodeSetup = 2
	// ExitCodeCrash indicates a supervised process died mid-run.
	ExitCodeCrash = 3
)

// rootCmd is the entry point when the binary is called without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "harness",
	Short: "Integration-test harness for the document service",
	Long: `harness brings the backend and frontend up from a clean state,
runs black-box test groups against the live system over HTTP,
and writes a machine- and human-readable verdict.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors the application already reports itself.
	SilenceUsage: true,
}

// SetVersion injects the build version from main.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the CLI and exits the process with a semantic exit code.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "harness version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types to exit codes.
func getExitCode(err error) int {
	var setup *supervisor.SetupError
	if errors.As(err, &setup) {
		return ExitCodeSetup
	}
	var crash *supervisor.ProcessCrash
	if errors.As(err, &crash) {
		return ExitCodeCrash
	}
	var failed *runner.RunFailed
	if errors.As(err, &failed) {
		return ExitCodeError
	}
	return ExitCodeError
}
