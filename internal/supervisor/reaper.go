package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"harness/internal/retry"
	"harness/pkg/logging"
)

// KillProcessOnPort frees a TCP port held over from an earlier run. It is
// best-effort throughout: every probe and kill failure is logged and
// swallowed, because a missing lsof or an already-free port must never stop
// a run from starting.
func KillProcessOnPort(ctx context.Context, port int) {
	pids := listeningPIDs(ctx, port)
	if len(pids) == 0 {
		return
	}

	self := os.Getpid()
	for _, pid := range pids {
		if pid == self || pid <= 0 {
			continue
		}
		logging.Info("reaper", "killing pid %d holding port %d", pid, port)
		if err := killPID(pid); err != nil {
			logging.Debug("reaper", "kill pid %d: %v", pid, err)
		}
	}

	// The socket lingers briefly after the holder dies; poll until the
	// port actually accepts a bind.
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
	}, func() error {
		return probeBind(port)
	})
	if err != nil {
		logging.Warn("reaper", "port %d still busy after reaping: %v", port, err)
	}
}

// listeningPIDs finds the processes bound to port, trying each discovery
// tool in turn and merging their answers. Duplicate PIDs are collapsed so a
// process reported by both lsof and fuser is only signalled once.
func listeningPIDs(ctx context.Context, port int) []int {
	seen := make(map[int]bool)
	var pids []int
	add := func(found []int) {
		for _, pid := range found {
			if !seen[pid] {
				seen[pid] = true
				pids = append(pids, pid)
			}
		}
	}

	if runtime.GOOS == "windows" {
		add(pidsFromNetstat(ctx, port))
		return pids
	}
	add(pidsFromLsof(ctx, port))
	add(pidsFromFuser(ctx, port))
	return pids
}

func pidsFromLsof(ctx context.Context, port int) []int {
	out, err := exec.CommandContext(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port)).Output()
	if err != nil {
		// Exit code 1 means no match; anything else means lsof is
		// unavailable or unhappy. Either way there is nothing to kill.
		return nil
	}
	return parsePIDLines(string(out))
}

func pidsFromFuser(ctx context.Context, port int) []int {
	out, err := exec.CommandContext(ctx, "fuser", fmt.Sprintf("%d/tcp", port)).Output()
	if err != nil {
		return nil
	}
	// fuser prints space-separated PIDs on one line.
	return parsePIDLines(strings.ReplaceAll(string(out), " ", "\n"))
}

// pidsFromNetstat parses `netstat -ano` output, keeping rows whose local
// address ends in :port and whose state is LISTENING.
func pidsFromNetstat(ctx context.Context, port int) []int {
	out, err := exec.CommandContext(ctx, "netstat", "-ano").Output()
	if err != nil {
		return nil
	}
	return parseNetstat(string(out), port)
}

func parseNetstat(out string, port int) []int {
	suffix := fmt.Sprintf(":%d", port)
	var pids []int
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "TCP" {
			continue
		}
		if !strings.HasSuffix(fields[1], suffix) || fields[3] != "LISTENING" {
			continue
		}
		if pid, err := strconv.Atoi(fields[4]); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

func parsePIDLines(out string) []int {
	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pid, err := strconv.Atoi(line); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

func killPID(pid int) error {
	if runtime.GOOS == "windows" {
		return exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid)).Run()
	}
	return signalProcessGroup(pid, killSignal)
}

// probeBind checks that port is actually free by binding it.
func probeBind(port int) error {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return err
	}
	return l.Close()
}

// CleanupStaleProcesses kills leftover service processes from earlier runs,
// matched by a command-line pattern. Best-effort: it logs and moves on, a
// failed sweep must not block the run.
func CleanupStaleProcesses(pattern string) {
	if runtime.GOOS == "windows" {
		return
	}

	out, err := exec.Command("pgrep", "-f", pattern).Output()
	if err != nil {
		// pgrep exits 1 when nothing matches.
		return
	}

	self := os.Getpid()
	killed := 0
	for _, pid := range parsePIDLines(string(out)) {
		if pid == self {
			continue
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			logging.Debug("reaper", "signal stale pid %d: %v", pid, err)
			continue
		}
		killed++
	}
	if killed > 0 {
		logging.Info("reaper", "cleaned up %d stale process(es) matching %q", killed, pattern)
	}
}
