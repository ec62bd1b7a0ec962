// Package dns flushes the operating system's resolver cache so hosts file
// changes take effect immediately.
package dns

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/lukaszraczylo/localserve/internal/command"
)

// FlushMethod defines the DNS flush method to use.
type FlushMethod string

const (
	FlushMethodAuto        FlushMethod = "auto"
	FlushMethodDscacheutil FlushMethod = "dscacheutil"
	FlushMethodKillall     FlushMethod = "killall"
	FlushMethodBoth        FlushMethod = "both"
	FlushMethodSystemd     FlushMethod = "systemd"
	FlushMethodNscd        FlushMethod = "nscd"
	FlushMethodNone        FlushMethod = "none"
)

// Methods lists every accepted flush method.
func Methods() []FlushMethod {
	return []FlushMethod{
		FlushMethodAuto, FlushMethodDscacheutil, FlushMethodKillall,
		FlushMethodBoth, FlushMethodSystemd, FlushMethodNscd, FlushMethodNone,
	}
}

// Flusher flushes the DNS cache.
type Flusher struct {
	method   FlushMethod
	runner   command.Runner
	goos     string
	lookPath func(string) (string, error)
	// sudo prefixes commands that need root. Empty runs them directly.
	sudo string
}

// NewFlusher creates a flusher running commands through runner. Commands that
// need root are prefixed with sudo when it is non-empty.
func NewFlusher(method FlushMethod, runner command.Runner, sudo string) *Flusher {
	return &Flusher{
		method:   method,
		runner:   runner,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		sudo:     sudo,
	}
}

// Method returns the configured method.
func (f *Flusher) Method() FlushMethod {
	return f.method
}

// Flush flushes the DNS cache using the configured method.
func (f *Flusher) Flush(ctx context.Context) error {
	method := f.method
	if method == FlushMethodNone {
		return nil
	}
	if method == FlushMethodAuto || method == "" {
		method = f.detectMethod()
	}

	switch f.goos {
	case "darwin":
		return f.flushDarwin(ctx, method)
	case "linux":
		return f.flushLinux(ctx, method)
	default:
		return fmt.Errorf("unsupported operating system: %s", f.goos)
	}
}

func (f *Flusher) detectMethod() FlushMethod {
	switch f.goos {
	case "darwin":
		return FlushMethodBoth
	case "linux":
		if _, err := f.lookPath("resolvectl"); err == nil {
			return FlushMethodSystemd
		}
		if _, err := f.lookPath("systemd-resolve"); err == nil {
			return FlushMethodSystemd
		}
		if _, err := f.lookPath("nscd"); err == nil {
			return FlushMethodNscd
		}
		return FlushMethodAuto
	default:
		return FlushMethodAuto
	}
}

func (f *Flusher) flushDarwin(ctx context.Context, method FlushMethod) error {
	switch method {
	case FlushMethodDscacheutil:
		if err := f.run(ctx, "dscacheutil", "-flushcache"); err != nil {
			return fmt.Errorf("dscacheutil failed: %w", err)
		}
	case FlushMethodKillall:
		if err := f.run(ctx, "killall", "-HUP", "mDNSResponder"); err != nil {
			return fmt.Errorf("killall mDNSResponder failed: %w", err)
		}
	case FlushMethodBoth:
		var errs []error
		if err := f.run(ctx, "dscacheutil", "-flushcache"); err != nil {
			errs = append(errs, fmt.Errorf("dscacheutil failed: %w", err))
		}
		if err := f.run(ctx, "killall", "-HUP", "mDNSResponder"); err != nil {
			errs = append(errs, fmt.Errorf("killall mDNSResponder failed: %w", err))
		}
		if len(errs) == 2 {
			return fmt.Errorf("all DNS flush methods failed: %w", errors.Join(errs...))
		}
	default:
		_ = f.run(ctx, "dscacheutil", "-flushcache")
		_ = f.run(ctx, "killall", "-HUP", "mDNSResponder")
	}

	return nil
}

func (f *Flusher) flushLinux(ctx context.Context, method FlushMethod) error {
	switch method {
	case FlushMethodSystemd:
		// resolvectl is the newer name for systemd-resolve
		if err := f.run(ctx, "resolvectl", "flush-caches"); err != nil {
			if err := f.run(ctx, "systemd-resolve", "--flush-caches"); err != nil {
				return fmt.Errorf("systemd DNS flush failed: %w", err)
			}
		}
	case FlushMethodNscd:
		if err := f.run(ctx, "nscd", "-i", "hosts"); err != nil {
			return fmt.Errorf("nscd flush failed: %w", err)
		}
	default:
		if err := f.run(ctx, "resolvectl", "flush-caches"); err == nil {
			return nil
		}
		if err := f.run(ctx, "systemd-resolve", "--flush-caches"); err == nil {
			return nil
		}
		if err := f.run(ctx, "nscd", "-i", "hosts"); err == nil {
			return nil
		}
		// Without a caching resolver /etc/hosts is read directly.
	}

	return nil
}

func (f *Flusher) run(ctx context.Context, name string, args ...string) error {
	if f.sudo != "" {
		args = append([]string{name}, args...)
		name = f.sudo
	}
	_, err := f.runner.Run(ctx, name, command.Options{Args: args})
	return err
}
