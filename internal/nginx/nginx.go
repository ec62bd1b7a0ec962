// Package nginx talks to the local nginx binary: it locates the config root
// and validates the configuration.
package nginx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lukaszraczylo/localserve/internal/command"
)

// DefaultBinary is the nginx executable name.
const DefaultBinary = "nginx"

// ErrConfigRootNotFound is returned when `nginx -t` names no config file.
var ErrConfigRootNotFound = errors.New("could not determine nginx config root")

// Server wraps an nginx binary.
type Server struct {
	runner     command.Runner
	binary     string
	configRoot string
}

// New creates a Server. A non-empty configRoot skips detection.
func New(runner command.Runner, binary, configRoot string) *Server {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Server{runner: runner, binary: binary, configRoot: configRoot}
}

// ConfigRoot returns the directory holding nginx.conf, read from the output
// of `nginx -t` unless one was configured.
func (s *Server) ConfigRoot(ctx context.Context) (string, error) {
	if s.configRoot != "" {
		return s.configRoot, nil
	}

	out, err := s.runner.Run(ctx, s.binary, command.Options{Args: []string{"-t"}, IgnoreCode: true})
	if err != nil {
		return "", err
	}

	file := configFile(out)
	if file == "" {
		return "", ErrConfigRootNotFound
	}
	return filepath.Dir(file), nil
}

// configFile returns the first absolute .conf path mentioned in out.
func configFile(out string) string {
	for _, field := range strings.Fields(out) {
		if strings.HasPrefix(field, "/") && strings.HasSuffix(field, ".conf") {
			return field
		}
	}
	return ""
}

// Test runs `nginx -t`.
func (s *Server) Test(ctx context.Context) error {
	if _, err := s.runner.Run(ctx, s.binary, command.Options{Args: []string{"-t"}}); err != nil {
		return fmt.Errorf("nginx configuration test failed: %w", err)
	}
	return nil
}

// Version returns the version reported by `nginx -v`, e.g. "1.25.3".
func (s *Server) Version(ctx context.Context) (string, error) {
	out, err := s.runner.Run(ctx, s.binary, command.Options{Args: []string{"-v"}})
	if err != nil {
		return "", err
	}

	out = strings.TrimSpace(out)
	if _, after, ok := strings.Cut(out, "nginx/"); ok {
		if fields := strings.Fields(after); len(fields) > 0 {
			return fields[0], nil
		}
	}
	return out, nil
}
