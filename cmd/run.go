package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"harness/internal/config"
	"harness/internal/runner"
	"harness/pkg/logging"
)

var (
	runConfigPath         string
	runStopOnFirstFailure bool
	runVerbose            bool
	runKeepData           bool
	runReportDir          string
	runTranscript         bool
	runStrictCleanAfter   int
)

var runCmd = &cobra.Command{
	Use:   "run [group...]",
	Short: "Run test groups against a freshly started system",
	Long: `Run resets on-disk state, starts the services, waits until they are
healthy, and executes the named test groups (all groups when none are
named). Dependencies of named groups are pulled in automatically.

Exit code 0 means every selected test passed and teardown left a clean
state; anything else is non-zero.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.LevelInfo, os.Stderr)

		cfg, err := config.Load(runConfigPath)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("stop-on-first-failure") {
			cfg.Run.StopOnFirstFailure = runStopOnFirstFailure
		}
		if cmd.Flags().Changed("verbose") {
			cfg.Run.Verbose = runVerbose
		}
		if cmd.Flags().Changed("keep-data") {
			cfg.Run.KeepData = runKeepData
		}
		if cmd.Flags().Changed("report-dir") {
			cfg.Report.Dir = runReportDir
		}
		if cmd.Flags().Changed("transcript") {
			cfg.Report.Transcript = runTranscript
		}
		if cmd.Flags().Changed("strict-clean") {
			cfg.Run.StrictCleanAfter = runStrictCleanAfter
		}

		if cfg.Run.Verbose {
			logging.Init(logging.LevelDebug, os.Stderr)
		}

		return runner.Run(cmd.Context(), cfg, args)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "path to harness.yaml (default ./harness.yaml)")
	runCmd.Flags().BoolVar(&runStopOnFirstFailure, "stop-on-first-failure", false, "abort remaining groups at the first failing test")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "debug logging plus raw service output")
	runCmd.Flags().BoolVar(&runKeepData, "keep-data", false, "skip the teardown cleanup so state can be inspected")
	runCmd.Flags().StringVar(&runReportDir, "report-dir", "", "directory for report artifacts")
	runCmd.Flags().BoolVar(&runTranscript, "transcript", false, "also write each service's captured output")
	runCmd.Flags().IntVar(&runStrictCleanAfter, "strict-clean", 0, "fail cleanup after N consecutive passes with leftovers (0 disables)")

	rootCmd.AddCommand(runCmd)
}
