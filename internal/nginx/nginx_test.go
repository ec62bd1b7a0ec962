package nginx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukaszraczylo/localserve/internal/command"
)

type fakeRunner struct {
	out   string
	err   error
	calls []command.Options
	name  string
}

func (f *fakeRunner) Run(_ context.Context, name string, opts command.Options) (string, error) {
	f.name = name
	f.calls = append(f.calls, opts)
	return f.out, f.err
}

const testOutput = `nginx: the configuration file /opt/homebrew/etc/nginx/nginx.conf syntax is ok
nginx: configuration file /opt/homebrew/etc/nginx/nginx.conf test is successful
`

func TestServer_ConfigRoot(t *testing.T) {
	runner := &fakeRunner{out: testOutput}
	server := New(runner, "", "")

	root, err := server.ConfigRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/homebrew/etc/nginx", root)
	assert.Equal(t, "nginx", runner.name)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"-t"}, runner.calls[0].Args)
	assert.True(t, runner.calls[0].IgnoreCode)
}

func TestServer_ConfigRootFromFailedTest(t *testing.T) {
	runner := &fakeRunner{out: "nginx: [emerg] unexpected \"}\" in /usr/local/etc/nginx/servers/blog:12\nnginx: configuration file /usr/local/etc/nginx/nginx.conf test failed\n"}

	root, err := New(runner, "", "").ConfigRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/etc/nginx", root)
}

func TestServer_ConfigRootConfigured(t *testing.T) {
	runner := &fakeRunner{}

	root, err := New(runner, "", "/etc/nginx").ConfigRoot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/etc/nginx", root)
	assert.Empty(t, runner.calls)
}

func TestServer_ConfigRootErrors(t *testing.T) {
	_, err := New(&fakeRunner{out: "something unexpected"}, "", "").ConfigRoot(context.Background())
	assert.ErrorIs(t, err, ErrConfigRootNotFound)

	_, err = New(&fakeRunner{err: command.ErrNotInstalled}, "", "").ConfigRoot(context.Background())
	assert.ErrorIs(t, err, command.ErrNotInstalled)
}

func TestServer_Test(t *testing.T) {
	runner := &fakeRunner{}
	server := New(runner, "/usr/sbin/nginx", "")

	require.NoError(t, server.Test(context.Background()))
	assert.Equal(t, "/usr/sbin/nginx", runner.name)
	assert.False(t, runner.calls[0].IgnoreCode)

	runner.err = &command.ExitError{Name: "nginx", Args: []string{"-t"}, Code: 1}
	err := server.Test(context.Background())
	var exitErr *command.ExitError
	assert.True(t, errors.As(err, &exitErr))
}

func TestServer_Version(t *testing.T) {
	tests := []struct {
		out      string
		expected string
	}{
		{"nginx version: nginx/1.25.3\n", "1.25.3"},
		{"nginx version: nginx/1.18.0 (Ubuntu)\n", "1.18.0"},
		{"openresty/1.21\n", "openresty/1.21"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			version, err := New(&fakeRunner{out: tt.out}, "", "").Version(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, version)
		})
	}
}
