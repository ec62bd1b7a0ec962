package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukaszraczylo/localserve/internal/manager"
)

// ServerItem is a displayable server row.
type ServerItem struct {
	Server   manager.Server
	Pending  bool
	HasError bool
}

// Key identifies the row. Orphaned entries have no site and are keyed by hostname.
func (i ServerItem) Key() string {
	if i.Server.Site != "" {
		return i.Server.Site
	}
	return "@" + i.Server.Hostname
}

// ListView handles the list of servers.
type ListView struct {
	items  []ServerItem
	cursor int
	width  int
	height int
}

// NewListView creates a new list view.
func NewListView() *ListView {
	return &ListView{}
}

// SetItems replaces the rows, keeping pending and error marks of rows that
// are still present.
func (l *ListView) SetItems(servers []manager.Server) {
	previous := make(map[string]ServerItem, len(l.items))
	for _, item := range l.items {
		previous[item.Key()] = item
	}

	l.items = make([]ServerItem, len(servers))
	for i, s := range servers {
		item := ServerItem{Server: s}
		if old, ok := previous[item.Key()]; ok {
			item.HasError = old.HasError && old.Server.State() == s.State()
		}
		l.items[i] = item
	}

	if l.cursor >= len(l.items) {
		l.cursor = max(0, len(l.items)-1)
	}
}

// SetSize sets the view dimensions.
func (l *ListView) SetSize(width, height int) {
	l.width = width
	l.height = height
}

// MoveUp moves the cursor up.
func (l *ListView) MoveUp() {
	if l.cursor > 0 {
		l.cursor--
	}
}

// MoveDown moves the cursor down.
func (l *ListView) MoveDown() {
	if l.cursor < len(l.items)-1 {
		l.cursor++
	}
}

// Selected returns the currently selected item.
func (l *ListView) Selected() *ServerItem {
	if l.cursor >= 0 && l.cursor < len(l.items) {
		return &l.items[l.cursor]
	}
	return nil
}

// SetPending marks the row with key as pending.
func (l *ListView) SetPending(key string, pending bool) {
	if item := l.find(key); item != nil {
		item.Pending = pending
	}
}

// SetError marks the row with key as failed.
func (l *ListView) SetError(key string, hasError bool) {
	if item := l.find(key); item != nil {
		item.HasError = hasError
		item.Pending = false
	}
}

func (l *ListView) find(key string) *ServerItem {
	for i := range l.items {
		if l.items[i].Key() == key {
			return &l.items[i]
		}
	}
	return nil
}

// Len returns the number of rows.
func (l *ListView) Len() int {
	return len(l.items)
}

// CountState returns the number of rows in state.
func (l *ListView) CountState(state manager.State) int {
	count := 0
	for _, item := range l.items {
		if item.Server.State() == state {
			count++
		}
	}
	return count
}

// Filter returns the rows whose site, hostname, address or status contains term.
func (l *ListView) Filter(term string) []ServerItem {
	if term == "" {
		return l.items
	}

	term = strings.ToLower(term)
	var filtered []ServerItem
	for _, item := range l.items {
		s := item.Server
		if strings.Contains(strings.ToLower(s.Site), term) ||
			strings.Contains(strings.ToLower(s.Hostname), term) ||
			strings.Contains(s.Address(), term) ||
			strings.Contains(s.State().String(), term) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// View renders every row with the cursor highlighted.
func (l *ListView) View() string {
	if len(l.items) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(colorMuted)
		return "\n" + emptyStyle.Render("  No sites configured. Press 'n' to create one.") + "\n"
	}
	return l.render(l.items, true)
}

// ViewFiltered renders the rows matching searchTerm.
func (l *ListView) ViewFiltered(searchTerm string) string {
	if searchTerm == "" {
		return l.View()
	}

	filtered := l.Filter(searchTerm)
	if len(filtered) == 0 {
		emptyStyle := lipgloss.NewStyle().Foreground(colorMuted)
		return "\n" + emptyStyle.Render(fmt.Sprintf("  No results for '%s'. Press Esc to clear search.", searchTerm)) + "\n"
	}

	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().
		Foreground(colorWarning).
		Bold(true).
		Render(fmt.Sprintf("  Search: %s (%d results)", searchTerm, len(filtered))))
	sb.WriteString("\n")
	sb.WriteString(l.render(filtered, false))
	return sb.String()
}

func (l *ListView) render(items []ServerItem, highlight bool) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		hostname := item.Server.Hostname
		if hostname == "" {
			hostname = "-"
		}
		site := item.Server.Site
		if site == "" {
			site = "-"
		}
		rows = append(rows, []string{
			truncate(site, 30),
			truncate(hostname, 40),
			truncate(item.Server.Address(), 39),
			StatusText(item.Server.State(), item.Pending, item.HasError),
		})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("SITE", "HOSTNAME", "ADDRESS", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().
					Bold(true).
					Foreground(colorHeader).
					Padding(0, 1)
			}

			base := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(items) {
				return base
			}
			item := items[row]

			if highlight && row == l.cursor {
				return base.Background(colorSelectedBg).Foreground(colorSelectedFg)
			}

			if col == 3 {
				switch {
				case item.HasError:
					return base.Foreground(colorError)
				case item.Pending:
					return base.Foreground(colorWarning)
				case item.Server.State() == manager.Linked:
					return base.Foreground(colorSuccess)
				case item.Server.State() == manager.HostOnly:
					return base.Foreground(colorError)
				}
			}

			if item.Server.State() != manager.Linked && !item.Pending && !item.HasError {
				return base.Foreground(colorMuted)
			}
			return base
		})

	return t.Render() + "\n"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
