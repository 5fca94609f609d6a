package reconcile

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"harness/pkg/logging"
)

// probeLockFree checks whether a file can currently be opened for writing.
// On platforms where file locks linger after a process exits, an open that
// succeeds means the next deletion attempt is worth making right away.
func probeLockFree(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			// Already gone: nothing left to contend over.
			return true
		}
		return false
	}
	f.Close()
	return true
}

// waitForRelease watches the parent directory of path for up to maxWait,
// returning as soon as any event touches the path. A write, chmod or remove
// event usually means the lock holder let go, so the caller can reprobe
// instead of sleeping out its full backoff.
func waitForRelease(path string, maxWait time.Duration) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		time.Sleep(maxWait)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		time.Sleep(maxWait)
		return
	}

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name == path {
				logging.Debug("Reconcile", "Observed %s on %s while waiting for lock release", event.Op, path)
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Debug("Reconcile", "Watcher error while waiting on %s: %v", path, err)
		case <-timer.C:
			return
		}
	}
}
