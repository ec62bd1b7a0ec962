package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukaszraczylo/localserve/internal/hosts"
)

func testBackups() []hosts.BackupInfo {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local).Unix()
	return []hosts.BackupInfo{
		{Name: "hosts.20240501-120002.bak", Timestamp: base + 2, Size: 2048},
		{Name: "hosts.20240501-120001.bak", Timestamp: base + 1, Size: 100},
	}
}

func TestBackupPicker_Navigation(t *testing.T) {
	b := NewBackupPicker("/etc/hosts")
	assert.Nil(t, b.Selected())
	assert.False(t, b.MoveDown())

	b.SetBackups(testBackups())
	assert.Equal(t, 2, b.Len())
	require.NotNil(t, b.Selected())
	assert.Equal(t, "hosts.20240501-120002.bak", b.Selected().Name)

	assert.False(t, b.MoveUp())
	assert.True(t, b.MoveDown())
	assert.Equal(t, "hosts.20240501-120001.bak", b.Selected().Name)
	assert.False(t, b.MoveDown())
}

func TestBackupPicker_Restore(t *testing.T) {
	b := NewBackupPicker("/etc/hosts")

	// Nothing to restore.
	b.InitRestore()
	assert.Equal(t, BackupModeSelect, b.Mode())

	b.SetBackups(testBackups())
	b.InitRestore()
	assert.Equal(t, BackupModeConfirmRestore, b.Mode())
	assert.Contains(t, b.View(), "Restore /etc/hosts from backup '2024-05-01 12:00:02'?")

	b.Cancel()
	assert.Equal(t, BackupModeSelect, b.Mode())
}

func TestBackupPicker_View(t *testing.T) {
	b := NewBackupPicker("/etc/hosts")
	assert.Contains(t, b.View(), "No backups available.")

	b.SetSize(120, 40)
	b.SetBackups(testBackups())
	view := b.View()
	assert.Contains(t, view, "2 backup(s)")
	assert.Contains(t, view, "Loading...")
	assert.Contains(t, view, "2.0 KB")

	b.SetPreview("127.0.0.1 localhost\n## LibToServe ##\n")
	assert.Contains(t, b.View(), "## LibToServe ##")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
