// Package config loads the harness run configuration: the target backend,
// the services to supervise, the on-disk state to reset between runs, and
// report output. Defaults are overlaid by an optional harness.yaml, then by
// HARNESS_* environment variables.
package config
