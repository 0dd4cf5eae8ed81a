package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"isoconvert/internal/logging"
	"isoconvert/internal/services"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineBuffer     = 1024 * 1024
	lineQueueSize     = 64

	// drainGrace bounds how long output is read after the process has been
	// reaped. A descendant that escaped the process group can hold the pipes
	// open indefinitely; once the grace expires the read ends are closed.
	drainGrace = 2 * time.Second
	// killDrainGrace replaces drainGrace after a timeout or cancellation.
	killDrainGrace = 250 * time.Millisecond
)

// Stream identifies which pipe a line arrived on.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one line of tool output without its terminator.
type Line struct {
	Stream Stream
	Text   string
}

// Options tunes a single invocation.
type Options struct {
	// Capture streams stdout and stderr to OnLine; otherwise output is discarded.
	Capture bool
	// Timeout kills the process group once elapsed. Zero disables it.
	Timeout time.Duration
	// OnLine receives lines in arrival order per stream. It is never invoked
	// concurrently and must not block for long.
	OnLine func(Line)
	// Dir is the working directory; empty inherits the caller's.
	Dir string
}

// Outcome describes how a process ended. ExitCode is -1 when the process was
// terminated by a signal.
type Outcome struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Success reports a clean zero exit.
func (o Outcome) Success() bool {
	return !o.TimedOut && o.ExitCode == 0
}

// Runner launches external programs.
type Runner interface {
	Run(ctx context.Context, executable string, args []string, opts Options) (Outcome, error)
}

// Exec is the os/exec backed Runner.
type Exec struct {
	logger *slog.Logger
}

// New constructs an Exec runner that logs lifecycle events and tool output at debug.
func New(logger *slog.Logger) *Exec {
	return &Exec{logger: logging.NewComponentLogger(logger, "process")}
}

// Run starts executable and blocks until it exits, is killed by the timeout,
// or ctx is cancelled. The returned error is non-nil only when the process
// could not be started (ErrLaunch), output could not be collected (ErrIO), or
// ctx ended first; exit codes and timeouts are reported through Outcome.
func (r *Exec) Run(ctx context.Context, executable string, args []string, opts Options) (Outcome, error) {
	logger := logging.WithContext(ctx, r.logger)
	if err := ctx.Err(); err != nil {
		return Outcome{ExitCode: -1}, err
	}
	if strings.TrimSpace(executable) == "" {
		return Outcome{ExitCode: -1}, services.Wrap(services.ErrLaunch, "process", "start", "no executable", nil)
	}

	cmd := exec.Command(executable, args...) //nolint:gosec
	cmd.Dir = opts.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var pipes []namedPipe
	if opts.Capture {
		var err error
		pipes, err = attachPipes(cmd)
		if err != nil {
			return Outcome{ExitCode: -1}, services.Wrap(services.ErrLaunch, "process", "pipe", executable, err)
		}
	}
	defer closeReaders(pipes)

	start := time.Now()
	err := cmd.Start()
	// The child owns its copies of the write ends; ours must go so readers
	// see EOF once every holder has exited.
	closeWriters(pipes)
	if err != nil {
		return Outcome{ExitCode: -1}, services.Wrap(services.ErrLaunch, "process", "start", executable, err)
	}
	logger.Debug("process started",
		logging.String("executable", executable),
		logging.String("args", strings.Join(args, " ")),
		logging.Int("pid", cmd.Process.Pid),
	)

	lines := make(chan Line, lineQueueSize)
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for line := range lines {
			logger.Debug("tool output", logging.String("stream", line.Stream.String()), logging.String("line", line.Text))
			if opts.OnLine != nil {
				opts.OnLine(line)
			}
		}
	}()

	var readers sync.WaitGroup
	for _, p := range pipes {
		readers.Add(1)
		go func(p namedPipe) {
			defer readers.Done()
			readLines(p, lines, logger)
		}(p)
	}
	drained := make(chan struct{})
	go func() {
		readers.Wait()
		close(lines)
		close(drained)
	}()

	// Stdout and Stderr are *os.File, so Wait does not depend on the pipes.
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var timer <-chan time.Time
	if opts.Timeout > 0 {
		t := time.NewTimer(opts.Timeout)
		defer t.Stop()
		timer = t.C
	}

	var (
		waitErr  error
		timedOut bool
		ctxErr   error
	)
	grace := drainGrace
	select {
	case waitErr = <-exited:
	case <-timer:
		timedOut = true
		grace = killDrainGrace
		r.killGroup(logger, cmd)
		waitErr = <-exited
	case <-ctx.Done():
		ctxErr = ctx.Err()
		grace = killDrainGrace
		r.killGroup(logger, cmd)
		waitErr = <-exited
	}

	graceTimer := time.NewTimer(grace)
	select {
	case <-drained:
		graceTimer.Stop()
	case <-graceTimer.C:
		logger.Warn("tool output still open after exit; closing pipes",
			logging.String("executable", executable),
			logging.Duration("grace", grace),
			logging.String(logging.FieldEventType, "output_drain_cut"),
			logging.String(logging.FieldImpact, "later output from detached child processes is ignored"),
		)
		closeReaders(pipes)
	}
	<-dispatched

	outcome := Outcome{ExitCode: 0, TimedOut: timedOut, Duration: time.Since(start)}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			outcome.ExitCode = -1
			return outcome, services.Wrap(services.ErrIO, "process", "wait", executable, waitErr)
		}
		outcome.ExitCode = exitErr.ExitCode()
	}

	logger.Debug("process exited",
		logging.String("executable", executable),
		logging.Int("exit_code", outcome.ExitCode),
		logging.Bool("timed_out", outcome.TimedOut),
		logging.Duration("duration", outcome.Duration),
	)
	if ctxErr != nil {
		return outcome, ctxErr
	}
	return outcome, nil
}

// killGroup terminates the process and everything it spawned. Failures are
// logged and otherwise ignored: the process may already have exited.
func (r *Exec) killGroup(logger *slog.Logger, cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		logger.Debug("process group kill failed",
			logging.Int("pid", pid),
			logging.Error(err),
		)
		_ = cmd.Process.Kill()
	}
}

type namedPipe struct {
	stream Stream
	reader *os.File
	writer *os.File
}

// attachPipes wires fresh pipes to cmd's stdout and stderr.
func attachPipes(cmd *exec.Cmd) ([]namedPipe, error) {
	var pipes []namedPipe
	for _, stream := range []Stream{Stdout, Stderr} {
		r, w, err := os.Pipe()
		if err != nil {
			closeWriters(pipes)
			closeReaders(pipes)
			return nil, err
		}
		pipes = append(pipes, namedPipe{stream: stream, reader: r, writer: w})
	}
	cmd.Stdout = pipes[0].writer
	cmd.Stderr = pipes[1].writer
	return pipes, nil
}

func closeWriters(pipes []namedPipe) {
	for _, p := range pipes {
		_ = p.writer.Close()
	}
}

// closeReaders unblocks any reader still waiting on the pipes. Closing twice
// is harmless.
func closeReaders(pipes []namedPipe) {
	for _, p := range pipes {
		_ = p.reader.Close()
	}
}

func readLines(p namedPipe, out chan<- Line, logger *slog.Logger) {
	splitter := &lineSplitter{
		limit: maxLineBuffer,
		onDrop: func(n int) {
			logging.WarnWithContext(logger, "oversized output line dropped", "output_line_dropped",
				logging.String("stream", p.stream.String()),
				logging.Int("bytes_dropped", n),
				logging.String(logging.FieldImpact, "progress or title markers on that line are lost"),
			)
		},
	}
	scanner := bufio.NewScanner(p.reader)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)
	scanner.Split(splitter.split)
	for scanner.Scan() {
		out <- Line{Stream: p.stream, Text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Warn("output scan aborted; discarding remainder",
			logging.String("stream", p.stream.String()),
			logging.Error(err),
		)
		_, _ = io.Copy(io.Discard, p.reader)
	}
}

// lineSplitter wraps splitLines so a line longer than limit is skipped up
// to its terminator instead of ending the scan.
type lineSplitter struct {
	limit    int
	skipping bool
	skipped  int
	onDrop   func(bytes int)
}

func (s *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := splitLines(data, atEOF)
	if err != nil {
		return advance, token, err
	}
	if advance > 0 {
		if !s.skipping {
			return advance, token, nil
		}
		s.skipping = false
		s.drop(len(token))
		return advance, nil, nil
	}
	if len(data) >= s.limit {
		// No terminator in a full buffer: swallow what we have, keep a byte
		// back in case it is a "\r" that pairs with a following "\n".
		n := len(data)
		if data[n-1] == '\r' {
			n--
		}
		s.skipping = true
		s.skipped += n
		return n, nil, nil
	}
	return 0, nil, nil
}

func (s *lineSplitter) drop(tail int) {
	total := s.skipped + tail
	s.skipped = 0
	if s.onDrop != nil {
		s.onDrop(total)
	}
}

// splitLines is a bufio.SplitFunc that ends a line at "\n", "\r" or "\r\n".
// Encoders redraw progress lines with bare carriage returns.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		switch b {
		case '\n':
			return i + 1, data[:i], nil
		case '\r':
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if atEOF {
				return i + 1, data[:i], nil
			}
			// Need one more byte to tell "\r" from "\r\n".
			return 0, nil, nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
