// Package command runs external tools and captures or streams their output.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// DefaultExtraPath lists directories appended to PATH so Homebrew installs are found
// even when the caller's shell profile was not loaded.
var DefaultExtraPath = []string{"/opt/homebrew/bin", "/usr/local/bin"}

// ErrNotInstalled is returned when the executable cannot be found.
var ErrNotInstalled = errors.New("command not installed")

// waitDelay bounds how long a cancelled command may keep its pipes open.
const waitDelay = 5 * time.Second

// Options controls a single invocation.
type Options struct {
	Args []string
	// IgnoreCode treats a non-zero exit status as success.
	IgnoreCode bool
	// NoCapture streams output to the callbacks without buffering it.
	NoCapture bool
	OnStdout  func(string)
	OnStderr  func(string)
}

// Runner executes commands. Exec is the production implementation.
type Runner interface {
	Run(ctx context.Context, name string, opts Options) (string, error)
}

// ExitError reports a command that exited unsuccessfully.
type ExitError struct {
	Name   string
	Args   []string
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s %s exited with code %d", e.Name, strings.Join(e.Args, " "), e.Code)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// Exec runs commands with os/exec.
type Exec struct {
	extraPath []string
	logger    *slog.Logger
}

// New creates a runner that appends extraPath to PATH.
func New(logger *slog.Logger, extraPath ...string) *Exec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exec{extraPath: extraPath, logger: logger}
}

// Run executes name and returns its stdout, or its stderr when stdout is empty.
// Cancelling ctx sends SIGTERM to the process.
func (e *Exec) Run(ctx context.Context, name string, opts Options) (string, error) {
	path, err := e.LookPath(name)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, path, opts.Args...) // #nosec G204 - callers pass fixed tool names
	cmd.Env = e.env()
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = waitDelay

	stdout := &streamWriter{capture: !opts.NoCapture, fn: opts.OnStdout}
	stderr := &streamWriter{capture: true, fn: opts.OnStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Debug("running command", "name", name, "args", opts.Args)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run %s: %w", name, err)
		}
		if !opts.IgnoreCode {
			output := stderr.String()
			if output == "" {
				output = stdout.String()
			}
			return "", &ExitError{Name: name, Args: opts.Args, Code: exitErr.ExitCode(), Output: output}
		}
	}

	if opts.NoCapture {
		return "", nil
	}
	if out := stdout.String(); out != "" {
		return out, nil
	}
	return stderr.String(), nil
}

// LookPath finds name on PATH, then in the extra directories.
func (e *Exec) LookPath(name string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if !strings.Contains(name, "/") {
		for _, dir := range e.extraPath {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotInstalled, name)
}

func (e *Exec) env() []string {
	env := os.Environ()
	if len(e.extraPath) == 0 {
		return env
	}
	extra := strings.Join(e.extraPath, string(os.PathListSeparator))
	for i, kv := range env {
		if strings.HasPrefix(kv, "PATH=") {
			env[i] = kv + string(os.PathListSeparator) + extra
			return env
		}
	}
	return append(env, "PATH="+extra)
}

type streamWriter struct {
	buf     bytes.Buffer
	capture bool
	fn      func(string)
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if w.capture {
		w.buf.Write(p)
	}
	if w.fn != nil {
		w.fn(string(p))
	}
	return len(p), nil
}

func (w *streamWriter) String() string {
	return w.buf.String()
}
