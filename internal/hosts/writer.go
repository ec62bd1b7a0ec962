package hosts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lukaszraczylo/localserve/internal/command"
)

// Writer persists the full hosts file content. Writing the system hosts file
// usually needs elevated privileges, which implementations obtain on their own.
type Writer interface {
	WriteHosts(ctx context.Context, path string, content []byte) error
}

// FileWriter replaces the file directly through a temp file and rename.
type FileWriter struct{}

// WriteHosts writes content atomically.
func (FileWriter) WriteHosts(_ context.Context, path string, content []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, content, mode); err != nil {
		return err
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return nil
}

// SudoWriter stages the content in a temp file and copies it into place with sudo.
type SudoWriter struct {
	Runner command.Runner
	// StagingDir defaults to os.TempDir().
	StagingDir string
	// Sudo defaults to "sudo".
	Sudo string
}

// WriteHosts stages content and runs "sudo cp staged path".
func (w SudoWriter) WriteHosts(ctx context.Context, path string, content []byte) error {
	dir := w.StagingDir
	if dir == "" {
		dir = os.TempDir()
	}

	staged, err := os.CreateTemp(dir, "hosts-*")
	if err != nil {
		return fmt.Errorf("failed to stage hosts file: %w", err)
	}
	defer os.Remove(staged.Name())

	if _, err := staged.Write(content); err != nil {
		staged.Close()
		return fmt.Errorf("failed to stage hosts file: %w", err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("failed to stage hosts file: %w", err)
	}

	sudo := w.Sudo
	if sudo == "" {
		sudo = "sudo"
	}

	if _, err := w.Runner.Run(ctx, sudo, command.Options{
		Args: []string{"cp", filepath.Clean(staged.Name()), path},
	}); err != nil {
		return fmt.Errorf("failed to copy hosts file into place: %w", err)
	}

	return nil
}
