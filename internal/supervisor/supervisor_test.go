package supervisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchFatal(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "uncaught exception",
			line: "2024-01-01 Uncaught exception: TypeError",
			want: "Uncaught exception",
		},
		{
			name: "unhandled rejection",
			line: "(node:12) UnhandledPromiseRejectionWarning",
			want: "UnhandledPromiseRejection",
		},
		{
			name: "missing module",
			line: "Error: Cannot find module 'express'",
			want: "Cannot find module",
		},
		{
			name: "constraint violation",
			line: "SqliteError: UNIQUE constraint failed: projects.name",
			want: "UNIQUE constraint failed",
		},
		{
			name: "port taken",
			line: "Error: listen EADDRINUSE: address already in use :::3000",
			want: "EADDRINUSE",
		},
		{
			name: "go panic",
			line: "panic: runtime error: index out of range",
			want: "panic:",
		},
		{
			name: "ordinary log line",
			line: "GET /api/health 200 2ms",
			want: "",
		},
		{
			name: "case sensitive",
			line: "fatal error in lowercase is someone else's convention",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchFatal(tt.line))
		})
	}
}

func TestOutputCaptureCollectsBothStreams(t *testing.T) {
	c := newOutputCapture("backend", false, nil)
	c.watch(strings.NewReader("out line 1\nout line 2\n"))
	c.watch(strings.NewReader("err line 1\n"))
	c.start()
	c.wait()

	got := c.contents()
	assert.Contains(t, got, "out line 1\n")
	assert.Contains(t, got, "out line 2\n")
	assert.Contains(t, got, "err line 1\n")
}

func TestOutputCaptureFatalCallback(t *testing.T) {
	var gotSig, gotLine string
	c := newOutputCapture("backend", false, func(sig, line string) {
		gotSig, gotLine = sig, line
	})
	c.watch(strings.NewReader("starting up\nFATAL ERROR: heap out of memory\n"))
	c.start()
	c.wait()

	assert.Equal(t, "FATAL ERROR", gotSig)
	assert.Equal(t, "FATAL ERROR: heap out of memory", gotLine)
}

func TestOutputCaptureTail(t *testing.T) {
	c := newOutputCapture("backend", false, nil)
	c.watch(strings.NewReader("one\ntwo\nthree\nfour\n"))
	c.start()
	c.wait()

	assert.Equal(t, "three\nfour", c.tail(2))
	assert.Equal(t, "one\ntwo\nthree\nfour", c.tail(10))
}

func TestParsePIDLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{name: "lsof style", in: "1234\n5678\n", want: []int{1234, 5678}},
		{name: "empty", in: "", want: nil},
		{name: "whitespace and junk", in: "  1234 \n\nabc\n99\n", want: []int{1234, 99}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parsePIDLines(tt.in))
		})
	}
}

func TestParseNetstat(t *testing.T) {
	out := `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:3000           0.0.0.0:0              LISTENING       4321
  TCP    0.0.0.0:3001           0.0.0.0:0              LISTENING       8765
  TCP    127.0.0.1:3000         127.0.0.1:52000        ESTABLISHED     4321
  UDP    0.0.0.0:3000           *:*                                    1111
`
	assert.Equal(t, []int{4321}, parseNetstat(out, 3000))
	assert.Equal(t, []int{8765}, parseNetstat(out, 3001))
	assert.Empty(t, parseNetstat(out, 9999))
}

func TestKillProcessOnPortFreePort(t *testing.T) {
	// Nothing listens on the port, so there is nothing to reap and the
	// call must come back without error or delay.
	done := make(chan struct{})
	go func() {
		KillProcessOnPort(context.Background(), 59871)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("reaper did not return")
	}
}

func TestSupervisorStartStop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix shell")
	}

	s := New(false)
	err := s.Start(context.Background(), []ServiceSpec{{
		Name:        "sleeper",
		Command:     []string{"sleep", "60"},
		GracePeriod: 2 * time.Second,
	}})
	require.NoError(t, err)

	require.Len(t, s.procs, 1)
	proc := s.procs[0]
	assert.True(t, proc.Alive())
	assert.Greater(t, proc.PID(), 0)

	// No health URL means the service is considered ready immediately.
	require.NoError(t, s.AwaitReady(context.Background()))
	assert.Equal(t, StateReady, proc.State())

	s.StopAll()
	assert.Equal(t, StateStopped, proc.State())
	assert.False(t, proc.Alive())
	assert.Nil(t, s.Crash())

	// Second teardown is a no-op.
	s.StopAll()
	assert.Equal(t, StateStopped, proc.State())
}

func TestSupervisorDetectsExitCrash(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix shell")
	}

	s := New(false)
	err := s.Start(context.Background(), []ServiceSpec{{
		Name:    "flaky",
		Command: []string{"sh", "-c", "exit 3"},
	}})
	require.NoError(t, err)

	select {
	case <-s.Crashed():
	case <-time.After(10 * time.Second):
		t.Fatal("crash was not detected")
	}

	crash := s.Crash()
	require.NotNil(t, crash)
	assert.Equal(t, "flaky", crash.Service)
	assert.Contains(t, crash.Error(), "exited unexpectedly")
}

func TestCrashTerminatesAllProcesses(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix shell")
	}

	// A fatal signature in one service must take the whole environment
	// down right away, healthy siblings included.
	s := New(false)
	err := s.Start(context.Background(), []ServiceSpec{
		{
			Name:        "sleeper",
			Command:     []string{"sleep", "60"},
			GracePeriod: 2 * time.Second,
		},
		{
			Name:        "screamer",
			Command:     []string{"sh", "-c", "echo 'FATAL ERROR: boom'; sleep 60"},
			GracePeriod: 2 * time.Second,
		},
	})
	require.NoError(t, err)
	defer s.StopAll()

	select {
	case <-s.Crashed():
	case <-time.After(10 * time.Second):
		t.Fatal("fatal signature was not detected")
	}

	require.Len(t, s.procs, 2)
	sleeper, screamer := s.procs[0], s.procs[1]
	assert.Eventually(t, func() bool { return !screamer.Alive() },
		15*time.Second, 100*time.Millisecond,
		"crashed service still running after crash detection")
	assert.Eventually(t, func() bool { return !sleeper.Alive() },
		15*time.Second, 100*time.Millisecond,
		"sibling service still running after crash detection")
}

func TestAwaitReadyTimeoutRaisesSetupError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix shell")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := New(false, WithProbeBudget(10*time.Millisecond, 3))
	err := s.Start(context.Background(), []ServiceSpec{{
		Name:        "backend",
		Command:     []string{"sleep", "60"},
		HealthURL:   srv.URL + "/api/health",
		GracePeriod: 2 * time.Second,
	}})
	require.NoError(t, err)
	defer s.StopAll()

	err = s.AwaitReady(context.Background())
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "backend", setupErr.Service)
	assert.Contains(t, setupErr.Reason, "3 probes")

	// The diagnostics carry the last observed health status per service.
	require.Len(t, setupErr.Diagnostics, 1)
	assert.Equal(t, "backend", setupErr.Diagnostics[0].Service)
	assert.Equal(t, http.StatusServiceUnavailable, setupErr.Diagnostics[0].HealthStatus)
	assert.True(t, setupErr.Diagnostics[0].Alive)
}

func TestSupervisorDetectsFatalSignature(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix shell")
	}

	s := New(false)
	err := s.Start(context.Background(), []ServiceSpec{{
		Name:        "screamer",
		Command:     []string{"sh", "-c", "echo 'FATAL ERROR: boom'; sleep 60"},
		GracePeriod: 2 * time.Second,
	}})
	require.NoError(t, err)
	defer s.StopAll()

	select {
	case <-s.Crashed():
	case <-time.After(10 * time.Second):
		t.Fatal("fatal signature was not detected")
	}

	crash := s.Crash()
	require.NotNil(t, crash)
	assert.Equal(t, "screamer", crash.Service)
}

func TestSetupErrorCarriesDiagnostics(t *testing.T) {
	err := &SetupError{
		Service: "backend",
		Reason:  "not healthy after 60 probes of http://localhost:3000/api/health",
		Diagnostics: []Diagnostic{
			{Service: "backend", State: "Starting", Alive: true},
			{Service: "frontend", State: "Ready", Alive: true},
		},
	}
	assert.Contains(t, err.Error(), "backend")
	assert.Contains(t, err.Error(), "60 probes")
	assert.Len(t, err.Diagnostics, 2)
}
