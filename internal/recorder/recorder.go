// Package recorder owns the external recording process: spawning the
// capture tool, watching its exit, and driving a bounded graceful-then-forced
// shutdown protocol.
//
// Recording tools flush and close their output file on graceful termination
// but not necessarily on a hard kill, and some platforms release the
// underlying file handle only after a delay. The entire [Supervisor.Stop]
// protocol must therefore complete before any consumer opens the file.
package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// OutputPlaceholder is the literal token a custom recording command must
// contain. Every occurrence is substituted with the quoted absolute output
// path before the command is handed to the shell.
const OutputPlaceholder = "{output}"

// DefaultTool is the recording tool used when no custom command is
// configured.
const DefaultTool = "sox"

const (
	// graceTimeout is the upper bound on waiting for the recorder to exit
	// after the interrupt signal.
	graceTimeout = 5 * time.Second

	// settleDelay is the fixed wait after termination that lets the OS
	// finish flushing and releasing the output file.
	settleDelay = 1 * time.Second

	// windowsSettleDelay is the additional wait on Windows, which releases
	// file handles of exited processes late.
	windowsSettleDelay = 2 * time.Second
)

// ErrMissingPlaceholder is returned when a custom command template lacks the
// {output} token. Without it the recorder would write nowhere we can read.
var ErrMissingPlaceholder = fmt.Errorf("recorder: custom command must contain the %s placeholder", OutputPlaceholder)

// ErrAlreadyRecording is returned by Start while a recorder process handle
// is still held.
var ErrAlreadyRecording = errors.New("recorder: a recording process is already running")

// ErrToolNotFound is returned by [Supervisor.Start] when the capture tool
// is not on PATH.
var ErrToolNotFound = errors.New("recorder: recording tool not found")

// Option is a functional option for configuring a Supervisor.
type Option func(*Supervisor)

// WithCommandTemplate replaces the default capture tool with a user-supplied
// shell command template. The template must contain [OutputPlaceholder].
func WithCommandTemplate(template string) Option {
	return func(s *Supervisor) {
		s.template = template
	}
}

// Supervisor spawns and stops one external recording process at a time.
// All exported methods are safe for concurrent use.
type Supervisor struct {
	template string

	// Timing knobs default to the fixed protocol constants; tests shorten
	// them to keep the suite fast.
	grace        time.Duration
	settle       time.Duration
	extraSettle  time.Duration
	goos         string

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// New creates a Supervisor. Without options it records through the default
// tool (sox, default audio device, mono, 16-bit signed PCM, 16 kHz).
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		grace:       graceTimeout,
		settle:      settleDelay,
		extraSettle: windowsSettleDelay,
		goos:        runtime.GOOS,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start spawns the recording process writing into outputPath. A custom
// command template is rejected before spawning when it lacks the output
// placeholder. A missing capture tool is surfaced with installation
// guidance.
func (s *Supervisor) Start(outputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return ErrAlreadyRecording
	}

	cmd, err := s.buildCommand(outputPath)
	if err != nil {
		return err
	}
	cmd.Stderr = &stderrLogger{}
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s is not installed; install it first (e.g. apt install sox, brew install sox)", ErrToolNotFound, DefaultTool)
		}
		return fmt.Errorf("recorder: spawn: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Recording tools commonly exit non-zero on a benign interrupt;
			// log it and move on.
			slog.Debug("recorder exited non-zero", "code", exitErr.ExitCode())
		}
	}()

	s.cmd = cmd
	s.exited = exited
	slog.Info("recorder started", "path", outputPath, "pid", cmd.Process.Pid)
	return nil
}

// Stop terminates the recording process. It never fails; calling it with no
// process handle held is a no-op.
//
// Protocol, in order: interrupt the process, race its exit against the
// grace timeout, kill it if still alive, then sleep the fixed settle period
// (plus the extra Windows settle period). Only after Stop returns may the
// output file be read.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	s.cmd, s.exited = nil, nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := interrupt(cmd.Process); err != nil {
		slog.Debug("recorder interrupt failed", "err", err)
	}

	select {
	case <-exited:
	case <-time.After(s.grace):
		slog.Warn("recorder did not exit within grace period, killing", "pid", cmd.Process.Pid)
		if err := cmd.Process.Kill(); err != nil {
			slog.Debug("recorder kill failed", "err", err)
		}
		<-exited
	}

	time.Sleep(s.settle)
	if s.goos == "windows" {
		time.Sleep(s.extraSettle)
	}
	slog.Info("recorder stopped")
}

// Running reports whether a recorder process handle is currently held.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// buildCommand constructs the exec.Cmd for outputPath, using either the
// default tool argument list or the custom template run through the
// platform shell. Custom commands go through a shell because arbitrary
// syntax (globs, pipes) must remain interpretable.
func (s *Supervisor) buildCommand(outputPath string) (*exec.Cmd, error) {
	if s.template == "" {
		return exec.Command(DefaultTool, defaultArgs(outputPath)...), nil
	}
	if !strings.Contains(s.template, OutputPlaceholder) {
		return nil, ErrMissingPlaceholder
	}
	line := strings.ReplaceAll(s.template, OutputPlaceholder, `"`+outputPath+`"`)
	if s.goos == "windows" {
		return exec.Command("cmd", "/C", line), nil
	}
	return exec.Command("sh", "-c", line), nil
}

// defaultArgs is the fixed argument list for the default tool: default audio
// device, mono, 16-bit signed PCM, 16 kHz.
func defaultArgs(outputPath string) []string {
	return []string{
		"-q",
		"-d",
		"-c", "1",
		"-b", "16",
		"-e", "signed-integer",
		"-r", "16000",
		outputPath,
	}
}

// stderrLogger logs recorder diagnostics line by line. The first line is the
// tool's device-configuration report and is logged at a higher level so
// misconfigured inputs show up without -v.
type stderrLogger struct {
	mu      sync.Mutex
	pending []byte
	logged  bool
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			return len(p), nil
		}
		line := strings.TrimSpace(string(w.pending[:idx]))
		w.pending = w.pending[idx+1:]
		if line == "" {
			continue
		}
		if !w.logged {
			slog.Info("recorder device configuration", "output", line)
			w.logged = true
			continue
		}
		slog.Debug("recorder stderr", "output", line)
	}
}
