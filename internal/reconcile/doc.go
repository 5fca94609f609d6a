// Package reconcile brings the system under test's persistent state
// (database files, backup repositories, working directories) back to a
// known-clean baseline before a run and after teardown.
//
// Deletion is retried with exponential backoff because another process can
// still hold locks while it shuts down. After all targets are processed a
// verification pass re-lists the target directories; files still matching a
// database pattern are reported as warnings rather than failures, so a
// transient lock never aborts the run.
package reconcile
