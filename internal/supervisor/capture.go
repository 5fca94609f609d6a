package supervisor

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"harness/pkg/logging"
)

// fatalSignatures are substrings that, when they appear in a service's
// output, mean the process is no longer trustworthy even if it is still
// running. Matching is case-sensitive and happens on whole lines.
var fatalSignatures = []string{
	"Uncaught exception",
	"UnhandledPromiseRejection",
	"Cannot find module",
	"UNIQUE constraint failed",
	"FATAL ERROR",
	"panic:",
	"EADDRINUSE",
}

// matchFatal returns the first fatal signature contained in line, or "".
func matchFatal(line string) string {
	for _, sig := range fatalSignatures {
		if strings.Contains(line, sig) {
			return sig
		}
	}
	return ""
}

// lineBufferCap bounds the channel between the per-stream scanner
// goroutines and the single reader loop. The reader does nothing but append
// and substring-match, so it keeps ahead of any realistic output rate; the
// bound exists so a wedged reader cannot grow memory without limit.
const lineBufferCap = 4096

// outputCapture collects stdout and stderr of one process. One scanner
// goroutine per stream splits the pipe into lines and sends them to a shared
// channel; a single reader goroutine appends each line to the transcript and
// scans it for fatal signatures. Keeping the scan on one goroutine means
// signature matching never races the transcript and never blocks the
// writing process.
type outputCapture struct {
	service string
	verbose bool
	onFatal func(signature, line string)

	lines chan string

	mu  sync.Mutex
	buf strings.Builder

	scanners sync.WaitGroup
	readerWG sync.WaitGroup
}

func newOutputCapture(service string, verbose bool, onFatal func(signature, line string)) *outputCapture {
	return &outputCapture{
		service: service,
		verbose: verbose,
		onFatal: onFatal,
		lines:   make(chan string, lineBufferCap),
	}
}

// watch consumes one stream until EOF. It must be called before start for
// every stream so the channel is not closed early.
func (c *outputCapture) watch(r io.Reader) {
	c.scanners.Add(1)
	go func() {
		defer c.scanners.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
}

// start launches the reader loop and arranges for the line channel to close
// once every watched stream hits EOF.
func (c *outputCapture) start() {
	go func() {
		c.scanners.Wait()
		close(c.lines)
	}()

	c.readerWG.Add(1)
	go func() {
		defer c.readerWG.Done()
		for line := range c.lines {
			c.mu.Lock()
			c.buf.WriteString(line)
			c.buf.WriteByte('\n')
			c.mu.Unlock()

			if c.verbose {
				logging.Debug("supervisor", "[%s] %s", c.service, line)
			}
			if sig := matchFatal(line); sig != "" && c.onFatal != nil {
				c.onFatal(sig, line)
			}
		}
	}()
}

// wait blocks until both streams reached EOF and the reader drained the
// channel. Call after the process has exited.
func (c *outputCapture) wait() {
	c.readerWG.Wait()
}

// contents returns the full transcript captured so far.
func (c *outputCapture) contents() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// tail returns the last n lines of the transcript.
func (c *outputCapture) tail(n int) string {
	all := strings.TrimRight(c.contents(), "\n")
	if all == "" {
		return ""
	}
	parts := strings.Split(all, "\n")
	if len(parts) > n {
		parts = parts[len(parts)-n:]
	}
	return strings.Join(parts, "\n")
}
