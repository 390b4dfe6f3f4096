package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var commandContext = exec.CommandContext

const lineBuffer = 1024

// State is the lifecycle position of a media process.
type State int

const (
	StateRunning State = iota
	StateExited
	StateTimedOut
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateTimedOut:
		return "timed_out"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Process is a handle on one running media tool invocation. Output from
// stdout and stderr is merged into a single line stream. The reaper goroutine
// collects the exit status, so a Process never outlives its Done channel.
type Process struct {
	argv    []string
	pid     int
	started time.Time

	cmd   *exec.Cmd
	lines chan string
	done  chan struct{}
	tail  *tailBuffer

	mu       sync.Mutex
	state    State
	exitCode int
	waitErr  error
	stopping bool
	killed   bool
	cause    string
	dropped  int
	ended    time.Time
}

// Start launches binary with args. The process is placed in its own process
// group and is stopped only through terminate; ctx governs nothing beyond
// the launch itself.
func Start(ctx context.Context, binary string, args []string, tailLines int) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := commandContext(context.WithoutCancel(ctx), binary, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	p := &Process{
		argv:    append([]string{binary}, args...),
		pid:     cmd.Process.Pid,
		started: time.Now(),
		cmd:     cmd,
		lines:   make(chan string, lineBuffer),
		done:    make(chan struct{}),
		tail:    newTailBuffer(tailLines),
		state:   StateRunning,
	}
	go p.reap(stdout)
	return p, nil
}

func (p *Process) reap(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.tail.Add(line)
		select {
		case p.lines <- line:
		default:
			// A slow reader must not stall ffmpeg on a full pipe.
			p.mu.Lock()
			p.dropped++
			p.mu.Unlock()
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep the pipe drained so the child cannot block on write.
		_, _ = io.Copy(io.Discard, stdout)
	}
	close(p.lines)

	err := p.cmd.Wait()
	p.mu.Lock()
	p.waitErr = err
	p.exitCode = exitCode(err)
	p.ended = time.Now()
	switch {
	case p.killed:
		p.state = StateKilled
	case p.stopping:
		p.state = StateTimedOut
	default:
		p.state = StateExited
	}
	p.mu.Unlock()
	close(p.done)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Argv returns the full command line including the binary.
func (p *Process) Argv() []string { return append([]string(nil), p.argv...) }

// PID returns the operating system process id.
func (p *Process) PID() int { return p.pid }

// Started returns the launch time.
func (p *Process) Started() time.Time { return p.started }

// Lines streams merged output. The channel closes when output ends.
func (p *Process) Lines() <-chan string { return p.lines }

// Done closes once the process has been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Tail returns the most recent output lines, oldest first.
func (p *Process) Tail() []string { return p.tail.Lines() }

// Exited reports whether the process has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// State returns the current state and, once reaped, the exit code.
func (p *Process) State() (State, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.exitCode
}

// terminate asks the process group to stop and escalates to SIGKILL after
// grace. It blocks until the process is reaped.
func (p *Process) terminate(grace time.Duration, cause string) {
	if p.Exited() {
		return
	}
	p.mu.Lock()
	p.stopping = true
	if p.cause == "" {
		p.cause = cause
	}
	p.mu.Unlock()

	_ = p.signal(unix.SIGTERM)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return
	case <-timer.C:
	}

	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	_ = p.signal(unix.SIGKILL)
	<-p.done
}

func (p *Process) signal(sig syscall.Signal) error {
	if err := unix.Kill(-p.pid, sig); err == nil {
		return nil
	}
	return p.cmd.Process.Signal(sig)
}

func (p *Process) result() Result {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return Result{
		State:    p.state,
		ExitCode: p.exitCode,
		Duration: p.ended.Sub(p.started),
		Cause:    p.cause,
		Tail:     p.tail.Lines(),
		Dropped:  p.dropped,
	}
}

type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newTailBuffer(size int) *tailBuffer {
	if size <= 0 {
		size = 10
	}
	return &tailBuffer{lines: make([]string, size)}
}

func (t *tailBuffer) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

func (t *tailBuffer) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]string(nil), t.lines[:t.next]...)
	}
	out := make([]string, 0, len(t.lines))
	out = append(out, t.lines[t.next:]...)
	return append(out, t.lines[:t.next]...)
}
