package dns

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukaszraczylo/localserve/internal/command"
)

type recordingRunner struct {
	commands []string
	fail     map[string]bool
}

func (r *recordingRunner) Run(_ context.Context, name string, opts command.Options) (string, error) {
	cmd := strings.Join(append([]string{name}, opts.Args...), " ")
	r.commands = append(r.commands, cmd)
	if r.fail[name] || (len(opts.Args) > 0 && r.fail[opts.Args[0]]) {
		return "", errors.New("failed")
	}
	return "", nil
}

func newTestFlusher(method FlushMethod, goos string, runner *recordingRunner, installed ...string) *Flusher {
	f := NewFlusher(method, runner, "")
	f.goos = goos
	f.lookPath = func(name string) (string, error) {
		for _, i := range installed {
			if i == name {
				return "/usr/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
	return f
}

func TestFlusher_DetectMethod(t *testing.T) {
	tests := []struct {
		name      string
		goos      string
		installed []string
		expected  FlushMethod
	}{
		{"darwin", "darwin", nil, FlushMethodBoth},
		{"linux resolvectl", "linux", []string{"resolvectl"}, FlushMethodSystemd},
		{"linux systemd-resolve", "linux", []string{"systemd-resolve"}, FlushMethodSystemd},
		{"linux nscd", "linux", []string{"nscd"}, FlushMethodNscd},
		{"linux nothing", "linux", nil, FlushMethodAuto},
		{"other", "freebsd", nil, FlushMethodAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFlusher(FlushMethodAuto, tt.goos, &recordingRunner{}, tt.installed...)
			assert.Equal(t, tt.expected, f.detectMethod())
		})
	}
}

func TestFlusher_FlushDarwin(t *testing.T) {
	tests := []struct {
		method   FlushMethod
		expected []string
	}{
		{FlushMethodDscacheutil, []string{"dscacheutil -flushcache"}},
		{FlushMethodKillall, []string{"killall -HUP mDNSResponder"}},
		{FlushMethodBoth, []string{"dscacheutil -flushcache", "killall -HUP mDNSResponder"}},
		{FlushMethodAuto, []string{"dscacheutil -flushcache", "killall -HUP mDNSResponder"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			runner := &recordingRunner{}
			require.NoError(t, newTestFlusher(tt.method, "darwin", runner).Flush(context.Background()))
			assert.Equal(t, tt.expected, runner.commands)
		})
	}
}

func TestFlusher_FlushDarwinBothFailing(t *testing.T) {
	runner := &recordingRunner{fail: map[string]bool{"dscacheutil": true, "killall": true}}
	err := newTestFlusher(FlushMethodBoth, "darwin", runner).Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all DNS flush methods failed")

	runner = &recordingRunner{fail: map[string]bool{"dscacheutil": true}}
	assert.NoError(t, newTestFlusher(FlushMethodBoth, "darwin", runner).Flush(context.Background()))
}

func TestFlusher_FlushLinux(t *testing.T) {
	t.Run("systemd falls back to systemd-resolve", func(t *testing.T) {
		runner := &recordingRunner{fail: map[string]bool{"resolvectl": true}}
		require.NoError(t, newTestFlusher(FlushMethodSystemd, "linux", runner).Flush(context.Background()))
		assert.Equal(t, []string{"resolvectl flush-caches", "systemd-resolve --flush-caches"}, runner.commands)
	})

	t.Run("nscd failure", func(t *testing.T) {
		runner := &recordingRunner{fail: map[string]bool{"nscd": true}}
		assert.Error(t, newTestFlusher(FlushMethodNscd, "linux", runner).Flush(context.Background()))
	})

	t.Run("auto with nothing installed succeeds", func(t *testing.T) {
		runner := &recordingRunner{fail: map[string]bool{"resolvectl": true, "systemd-resolve": true, "nscd": true}}
		require.NoError(t, newTestFlusher(FlushMethodAuto, "linux", runner).Flush(context.Background()))
		assert.Len(t, runner.commands, 3)
	})
}

func TestFlusher_Sudo(t *testing.T) {
	runner := &recordingRunner{}
	f := newTestFlusher(FlushMethodKillall, "darwin", runner)
	f.sudo = "sudo"

	require.NoError(t, f.Flush(context.Background()))
	assert.Equal(t, []string{"sudo killall -HUP mDNSResponder"}, runner.commands)
}

func TestFlusher_None(t *testing.T) {
	runner := &recordingRunner{}
	require.NoError(t, newTestFlusher(FlushMethodNone, "darwin", runner).Flush(context.Background()))
	assert.Empty(t, runner.commands)
}

func TestFlusher_UnsupportedOS(t *testing.T) {
	err := newTestFlusher(FlushMethodAuto, "plan9", &recordingRunner{}).Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operating system")
}

func TestMethods(t *testing.T) {
	methods := Methods()
	assert.Contains(t, methods, FlushMethodAuto)
	assert.Contains(t, methods, FlushMethodNone)
	assert.Len(t, methods, 7)
}
