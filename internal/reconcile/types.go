package reconcile

import (
	"fmt"
	"time"
)

// TargetKind classifies a cleanup target so the reconciler knows which
// sibling files to remove along with it.
type TargetKind int

const (
	// KindFile is a single regular file.
	KindFile TargetKind = iota
	// KindFileWithWAL is a database file whose write-ahead-log siblings
	// (-wal, -shm) must be removed together with it.
	KindFileWithWAL
	// KindDirectory is a directory removed recursively and recreated empty.
	KindDirectory
)

func (k TargetKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindFileWithWAL:
		return "file+wal"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// CleanupTarget is one path scheduled for removal during a reconciliation
// pass. Targets are constructed per pass and never persisted.
type CleanupTarget struct {
	Path string
	Kind TargetKind
}

// Paths expands the target into the concrete filesystem paths to remove.
func (t CleanupTarget) Paths() []string {
	if t.Kind == KindFileWithWAL {
		return []string{t.Path, t.Path + "-wal", t.Path + "-shm"}
	}
	return []string{t.Path}
}

// Report summarizes one reconciliation pass. Leftovers are warnings, not
// failures: a file that survives a pass gets retried on the next run.
type Report struct {
	Removed  []string
	Failed   []string
	Leftover []string
	Duration time.Duration
}

// Clean reports whether the pass left nothing behind.
func (r Report) Clean() bool {
	return len(r.Failed) == 0 && len(r.Leftover) == 0
}

// CleanupWarning marks a resource that could not be removed after
// exhausting retries. It never propagates past the reconciler's caller; the
// run proceeds and the next run retries.
type CleanupWarning struct {
	Path string
	Err  error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("cleanup left %s behind: %v", w.Path, w.Err)
}

func (w *CleanupWarning) Unwrap() error {
	return w.Err
}
