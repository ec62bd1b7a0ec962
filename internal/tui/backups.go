package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lukaszraczylo/localserve/internal/hosts"
)

// BackupMode represents the backup view mode.
type BackupMode int

const (
	BackupModeSelect BackupMode = iota
	BackupModeConfirmRestore
)

// BackupPicker lists hosts file backups with a preview of the selected one.
type BackupPicker struct {
	backups       []hosts.BackupInfo
	cursor        int
	width         int
	height        int
	mode          BackupMode
	preview       string
	previewScroll int
	hostsPath     string
}

// NewBackupPicker creates a picker restoring into hostsPath.
func NewBackupPicker(hostsPath string) *BackupPicker {
	return &BackupPicker{hostsPath: hostsPath}
}

// SetBackups replaces the listed backups.
func (b *BackupPicker) SetBackups(backups []hosts.BackupInfo) {
	b.backups = backups
	if b.cursor >= len(backups) {
		b.cursor = max(0, len(backups)-1)
	}
	b.preview = ""
	b.previewScroll = 0
}

// SetSize sets the picker dimensions.
func (b *BackupPicker) SetSize(width, height int) {
	b.width = width
	b.height = height
}

// MoveUp moves the cursor up and reports whether it moved.
func (b *BackupPicker) MoveUp() bool {
	if b.cursor == 0 {
		return false
	}
	b.cursor--
	b.preview = ""
	b.previewScroll = 0
	return true
}

// MoveDown moves the cursor down and reports whether it moved.
func (b *BackupPicker) MoveDown() bool {
	if b.cursor >= len(b.backups)-1 {
		return false
	}
	b.cursor++
	b.preview = ""
	b.previewScroll = 0
	return true
}

// SetPreview sets the preview content for the selected backup.
func (b *BackupPicker) SetPreview(content string) {
	b.preview = content
	b.previewScroll = 0
}

// ScrollPreviewUp scrolls the preview up.
func (b *BackupPicker) ScrollPreviewUp() {
	if b.previewScroll > 0 {
		b.previewScroll--
	}
}

// ScrollPreviewDown scrolls the preview down.
func (b *BackupPicker) ScrollPreviewDown() {
	b.previewScroll++
}

// Selected returns the selected backup, or nil.
func (b *BackupPicker) Selected() *hosts.BackupInfo {
	if b.cursor >= 0 && b.cursor < len(b.backups) {
		return &b.backups[b.cursor]
	}
	return nil
}

// Len returns the number of backups.
func (b *BackupPicker) Len() int {
	return len(b.backups)
}

// Mode returns the current mode.
func (b *BackupPicker) Mode() BackupMode {
	return b.mode
}

// InitRestore asks for restore confirmation.
func (b *BackupPicker) InitRestore() {
	if b.Selected() != nil {
		b.mode = BackupModeConfirmRestore
	}
}

// Cancel returns to selection.
func (b *BackupPicker) Cancel() {
	b.mode = BackupModeSelect
}

// View renders the picker.
func (b *BackupPicker) View() string {
	if b.mode == BackupModeConfirmRestore {
		return b.restoreView()
	}
	return b.selectView()
}

func (b *BackupPicker) selectView() string {
	if len(b.backups) == 0 {
		var sb strings.Builder
		sb.WriteString(titleStyle.Render("Backups"))
		sb.WriteString("\n\n")
		sb.WriteString(helpDescStyle.Render("No backups available."))
		sb.WriteString("\n\n")
		sb.WriteString(helpDescStyle.Render("A backup is taken before every hosts file change."))
		sb.WriteString("\n\n")
		sb.WriteString(helpDescStyle.Render("Esc cancel"))
		return dialogStyle.Render(sb.String())
	}

	var left strings.Builder
	left.WriteString(titleStyle.Render("Backups"))
	left.WriteString("\n\n")
	left.WriteString(helpDescStyle.Render(fmt.Sprintf("%d backup(s)", len(b.backups))))
	left.WriteString("\n\n")

	for i, backup := range b.backups {
		line := fmt.Sprintf("%s  (%s)", formatTimestamp(backup.Timestamp), formatSize(backup.Size))
		if i == b.cursor {
			left.WriteString(pickerSelectedStyle.Render("▸ " + line))
		} else {
			left.WriteString(pickerItemStyle.Render("  " + line))
		}
		left.WriteString("\n")
	}
	left.WriteString("\n")
	left.WriteString(helpDescStyle.Render("↑↓ navigate • Enter restore • Esc cancel"))

	leftWidth := 45
	rightWidth := max(30, b.width-leftWidth-10)

	leftPanel := lipgloss.NewStyle().
		Width(leftWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Render(left.String())

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(1, 2).
		Render(b.previewView(rightWidth - 6))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
}

func (b *BackupPicker) previewView(width int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Preview"))
	sb.WriteString("\n\n")

	if b.preview == "" {
		sb.WriteString(helpDescStyle.Render("Loading..."))
		return sb.String()
	}

	lines := strings.Split(strings.TrimSuffix(b.preview, "\n"), "\n")
	visible := max(5, b.height-12)

	b.previewScroll = min(b.previewScroll, max(0, len(lines)-visible))
	end := min(len(lines), b.previewScroll+visible)

	for _, line := range lines[b.previewScroll:end] {
		sb.WriteString(helpDescStyle.Render(truncate(line, max(10, width))))
		sb.WriteString("\n")
	}

	if len(lines) > visible {
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render(fmt.Sprintf("Lines %d-%d of %d (Shift+↑↓ scroll)", b.previewScroll+1, end, len(lines))))
	}
	return sb.String()
}

func (b *BackupPicker) restoreView() string {
	var sb strings.Builder

	timestamp := ""
	if backup := b.Selected(); backup != nil {
		timestamp = formatTimestamp(backup.Timestamp)
	}

	sb.WriteString(titleStyle.Render("Restore Backup"))
	sb.WriteString("\n\n")
	sb.WriteString(errorMsgStyle.Render(fmt.Sprintf("Restore %s from backup '%s'?", b.hostsPath, timestamp)))
	sb.WriteString("\n\n")
	sb.WriteString(helpDescStyle.Render("The current hosts file is backed up first."))
	sb.WriteString("\n\n")
	sb.WriteString(helpDescStyle.Render("y confirm • n/Esc cancel"))

	return dialogStyle.Render(sb.String())
}

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

// formatSize formats bytes in human readable form.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
