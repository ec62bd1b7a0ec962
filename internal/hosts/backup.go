package hosts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxBackups is the number of backups kept when none is configured.
const DefaultMaxBackups = 10

// BackupInfo holds information about a backup file.
type BackupInfo struct {
	Name      string
	Timestamp int64
	Size      int64
}

// Backups keeps timestamped copies of the hosts file.
type Backups struct {
	dir string
	max int
	now func() time.Time
}

// NewBackups creates a backup store in dir keeping at most max copies.
func NewBackups(dir string, max int) *Backups {
	if max <= 0 {
		max = DefaultMaxBackups
	}
	return &Backups{dir: dir, max: max, now: time.Now}
}

// Dir returns the backup directory.
func (b *Backups) Dir() string {
	return b.dir
}

// Create stores content as a new backup and prunes old ones.
func (b *Backups) Create(content []byte) (string, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := b.uniqueName()
	if err := os.WriteFile(filepath.Join(b.dir, name), content, 0644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if err := b.cleanup(); err != nil {
		return name, fmt.Errorf("failed to cleanup backups: %w", err)
	}

	return name, nil
}

// uniqueName avoids clobbering a backup taken within the same second.
func (b *Backups) uniqueName() string {
	base := "hosts." + b.now().Format("20060102-150405")
	name := base + ".bak"
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(b.dir, name)); os.IsNotExist(err) {
			return name
		}
		name = fmt.Sprintf("%s-%d.bak", base, i)
	}
}

func (b *Backups) cleanup() error {
	names, err := b.names()
	if err != nil {
		return err
	}
	if len(names) <= b.max {
		return nil
	}

	sort.Slice(names, func(i, j int) bool { return newerBackup(names[i], names[j]) })
	for _, name := range names[b.max:] {
		if err := os.Remove(filepath.Join(b.dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (b *Backups) names() ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && isBackupName(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// newerBackup orders backup names newest first. Names are
// hosts.<timestamp>[-<n>].bak, where n counts backups taken within the same
// second, so the timestamp is compared first and then n.
func newerBackup(a, b string) bool {
	aStamp, aSeq := splitBackupName(a)
	bStamp, bSeq := splitBackupName(b)
	if aStamp != bStamp {
		return aStamp > bStamp
	}
	return aSeq > bSeq
}

func splitBackupName(name string) (string, int) {
	stem := strings.TrimSuffix(strings.TrimPrefix(name, "hosts."), ".bak")
	// The timestamp itself contains one dash (20060102-150405).
	if i := strings.LastIndexByte(stem, '-'); i > strings.IndexByte(stem, '-') {
		if seq, err := strconv.Atoi(stem[i+1:]); err == nil {
			return stem[:i], seq
		}
	}
	return stem, 0
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, "hosts.") && strings.HasSuffix(name, ".bak") && len(name) > len("hosts..bak")
}

// List returns available backups, newest first.
func (b *Backups) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !isBackupName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      entry.Name(),
			Timestamp: info.ModTime().Unix(),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return newerBackup(backups[i].Name, backups[j].Name)
	})

	return backups, nil
}

// Read returns the content of the named backup.
func (b *Backups) Read(name string) ([]byte, error) {
	if filepath.Base(name) != name || !isBackupName(name) {
		return nil, fmt.Errorf("invalid backup name: %q", name)
	}
	content, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	return content, nil
}

// Restore replaces the registry's hosts file with the named backup. The current
// content is backed up first.
func (r *Registry) Restore(ctx context.Context, name string) error {
	if r.backups == nil {
		return fmt.Errorf("backups are not configured")
	}
	content, err := r.backups.Read(name)
	if err != nil {
		return err
	}
	return r.writeContent(ctx, content)
}
