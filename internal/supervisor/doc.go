// Package supervisor launches and tears down the backend and frontend
// processes a run exercises.
//
// Each service goes through a small lifecycle: NotStarted, Starting once the
// process is spawned, Ready once its health endpoint answers 2xx, then
// Stopping/Stopped on teardown. A process that exits on its own, or whose
// output contains a known fatal signature, becomes Crashed; the first crash
// is recorded and aborts the run.
//
// Teardown is a termination request followed, after a per-service grace
// period, by an unconditional kill of the whole process group. The package
// also houses the port reaper, which frees TCP ports held by leftovers of
// earlier runs before new processes are launched.
package supervisor
