package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukaszraczylo/localserve/internal/audit"
	"github.com/lukaszraczylo/localserve/internal/config"
	"github.com/lukaszraczylo/localserve/internal/hosts"
	"github.com/lukaszraczylo/localserve/internal/manager"
	"github.com/lukaszraczylo/localserve/internal/version"
	"github.com/lukaszraczylo/localserve/internal/watch"
)

// ViewMode represents the current view mode.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewForm
	ViewBackups
	ViewHelp
	ViewSearch
	ViewConfirmDestroy
)

const (
	messageTTL     = 3 * time.Second
	requestTimeout = 30 * time.Second
)

// Service is the server management surface the UI drives.
type Service interface {
	List(ctx context.Context) ([]manager.Server, error)
	Orphans(ctx context.Context) ([]hosts.Entry, error)
	Create(ctx context.Context, typ, name, hostname string, props map[string]string) (manager.Event, error)
	Enable(ctx context.Context, server manager.Server) (manager.Event, error)
	Disable(ctx context.Context, server manager.Server) (manager.Event, error)
	Destroy(ctx context.Context, server manager.Server) (manager.Event, error)
}

// BackupStore lists hosts file backups.
type BackupStore interface {
	List() ([]hosts.BackupInfo, error)
	Read(name string) ([]byte, error)
}

// Restorer replaces the hosts file with a backup.
type Restorer interface {
	Path() string
	Restore(ctx context.Context, name string) error
}

// Option configures a Model.
type Option func(*Model)

// WithBackups enables the backup view.
func WithBackups(b BackupStore, r Restorer) Option {
	return func(m *Model) {
		m.backups = b
		m.restorer = r
		m.backupPicker = NewBackupPicker(r.Path())
	}
}

// WithTemplates sets the template types offered when creating a site.
func WithTemplates(types []string) Option {
	return func(m *Model) { m.form.SetTypes(types) }
}

// WithChanges refreshes the list whenever a change arrives on ch.
func WithChanges(ch <-chan watch.Change) Option {
	return func(m *Model) { m.changes = ch }
}

// WithAudit records every action in the audit log.
func WithAudit(a *audit.Logger) Option {
	return func(m *Model) { m.audit = a }
}

// WithUpdateCheck looks for a newer release on startup.
func WithUpdateCheck(c *version.Checker) Option {
	return func(m *Model) { m.checker = c }
}

// Model is the main Bubble Tea model.
type Model struct {
	svc      Service
	backups  BackupStore
	restorer Restorer
	changes  <-chan watch.Change
	audit    *audit.Logger
	checker  *version.Checker

	mode         ViewMode
	list         *ListView
	form         *Form
	backupPicker *BackupPicker
	searchInput  textinput.Model

	width         int
	height        int
	message       string
	messageStyle  string // "error" or "success"
	messageTime   time.Time
	searchTerm    string
	pendingTarget *ServerItem
	needsRestart  bool

	updateVersion string
}

// Message types
type (
	refreshMsg struct {
		servers []manager.Server
		err     error
	}
	actionMsg struct {
		key   string
		event manager.Event
		err   error
	}
	refreshBackupsMsg struct {
		backups []hosts.BackupInfo
		err     error
	}
	backupContentMsg struct {
		name    string
		content string
		err     error
	}
	restoreMsg struct {
		name string
		err  error
	}
	changeMsg   watch.Change
	clearMsgMsg struct{}
	updateMsg   struct{ version string }
)

// NewModel creates a new TUI model.
func NewModel(svc Service, opts ...Option) *Model {
	searchInput := textinput.New()
	searchInput.Placeholder = "Search..."
	searchInput.CharLimit = 100
	searchInput.Width = 50

	m := &Model{
		svc:         svc,
		list:        NewListView(),
		form:        NewForm(nil),
		searchInput: searchInput,
		mode:        ViewList,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("localserve"),
		m.refresh(),
		m.waitForChange(),
		m.checkForUpdate(),
	)
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		servers, err := m.svc.List(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		orphans, err := m.svc.Orphans(ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		for i := range orphans {
			entry := orphans[i]
			servers = append(servers, manager.Server{Hostname: entry.Hostname, Entry: &entry})
		}
		return refreshMsg{servers: servers}
	}
}

// run performs a server action off the UI goroutine.
func (m *Model) run(key string, action func(context.Context) (manager.Event, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		event, err := action(ctx)
		m.audit.Log(string(event.Kind), event.Site, event.Hostname, event, err)
		return actionMsg{key: key, event: event, err: err}
	}
}

func (m *Model) toggle(item ServerItem) tea.Cmd {
	server := item.Server
	if server.Entry != nil {
		return m.run(item.Key(), func(ctx context.Context) (manager.Event, error) {
			return m.svc.Disable(ctx, server)
		})
	}
	return m.run(item.Key(), func(ctx context.Context) (manager.Event, error) {
		return m.svc.Enable(ctx, server)
	})
}

func (m *Model) destroy(item ServerItem) tea.Cmd {
	server := item.Server
	if server.Site == "" {
		// Orphans have no config to remove.
		return m.run(item.Key(), func(ctx context.Context) (manager.Event, error) {
			return m.svc.Disable(ctx, server)
		})
	}
	return m.run(item.Key(), func(ctx context.Context) (manager.Event, error) {
		return m.svc.Destroy(ctx, server)
	})
}

func (m *Model) create(typ, name, hostname string) tea.Cmd {
	return m.run(name, func(ctx context.Context) (manager.Event, error) {
		return m.svc.Create(ctx, typ, name, hostname, nil)
	})
}

func (m *Model) refreshBackups() tea.Cmd {
	if m.backups == nil {
		return nil
	}
	return func() tea.Msg {
		backups, err := m.backups.List()
		return refreshBackupsMsg{backups: backups, err: err}
	}
}

func (m *Model) fetchBackupContent(name string) tea.Cmd {
	return func() tea.Msg {
		content, err := m.backups.Read(name)
		return backupContentMsg{name: name, content: string(content), err: err}
	}
}

func (m *Model) restore(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err := m.restorer.Restore(ctx, name)
		m.audit.Log("restore", "", "", map[string]string{"backup": name}, err)
		return restoreMsg{name: name, err: err}
	}
}

func (m *Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		change, ok := <-ch
		if !ok {
			return nil
		}
		return changeMsg(change)
	}
}

func (m *Model) clearMsg() tea.Cmd {
	return tea.Tick(messageTTL, func(time.Time) tea.Msg {
		return clearMsgMsg{}
	})
}

func (m *Model) checkForUpdate() tea.Cmd {
	if m.checker == nil {
		return nil
	}
	checker := m.checker
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Update checks fail silently.
		update, err := checker.Check(ctx)
		if err != nil || update == nil {
			return nil
		}
		return updateMsg{version: update.Latest}
	}
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-10)
		m.form.SetSize(msg.Width, msg.Height)
		if m.backupPicker != nil {
			m.backupPicker.SetSize(msg.Width, msg.Height)
		}
		m.searchInput.Width = min(60, msg.Width-20)

	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}

	case refreshMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Refresh failed: %v", msg.err))
			cmds = append(cmds, m.clearMsg())
		} else {
			m.list.SetItems(msg.servers)
		}

	case actionMsg:
		if msg.err != nil {
			m.list.SetError(msg.key, true)
			m.setError(fmt.Sprintf("%s failed: %v", actionTitle(msg.event.Kind), msg.err))
		} else {
			m.list.SetPending(msg.key, false)
			if msg.event.ConfigChanged {
				m.needsRestart = true
			}
			m.setSuccess(msg.event.String())
		}
		if m.mode == ViewForm && msg.event.Kind == manager.EventCreated && msg.err == nil {
			m.mode = ViewList
		}
		cmds = append(cmds, m.refresh(), m.clearMsg())

	case refreshBackupsMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Listing backups failed: %v", msg.err))
			cmds = append(cmds, m.clearMsg())
			break
		}
		m.backupPicker.SetBackups(msg.backups)
		if selected := m.backupPicker.Selected(); selected != nil {
			cmds = append(cmds, m.fetchBackupContent(selected.Name))
		}

	case backupContentMsg:
		selected := m.backupPicker.Selected()
		if selected == nil || selected.Name != msg.name {
			break
		}
		if msg.err != nil {
			m.backupPicker.SetPreview(fmt.Sprintf("failed to read backup: %v", msg.err))
		} else {
			m.backupPicker.SetPreview(msg.content)
		}

	case restoreMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("Restore failed: %v", msg.err))
		} else {
			m.setSuccess(fmt.Sprintf("Restored hosts file from %s", msg.name))
		}
		m.backupPicker.Cancel()
		m.mode = ViewList
		cmds = append(cmds, m.refresh(), m.clearMsg())

	case changeMsg:
		cmds = append(cmds, m.refresh(), m.waitForChange())

	case clearMsgMsg:
		if time.Since(m.messageTime) >= messageTTL {
			m.message = ""
		}

	case updateMsg:
		m.updateVersion = msg.version
	}

	return m, tea.Batch(cmds...)
}

func actionTitle(kind manager.EventKind) string {
	switch kind {
	case manager.EventCreated:
		return "Create"
	case manager.EventEnabled:
		return "Enable"
	case manager.EventDisabled:
		return "Disable"
	case manager.EventDestroyed:
		return "Destroy"
	default:
		return "Action"
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}

	switch m.mode {
	case ViewList:
		return m.handleListKey(msg)
	case ViewForm:
		return m.handleFormKey(msg)
	case ViewBackups:
		return m.handleBackupKey(msg)
	case ViewHelp:
		return m.handleHelpKey(msg)
	case ViewSearch:
		return m.handleSearchKey(msg)
	case ViewConfirmDestroy:
		return m.handleConfirmDestroyKey(msg)
	}
	return nil
}

func (m *Model) handleListKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit
	case "esc":
		if m.searchTerm != "" {
			m.searchTerm = ""
			m.searchInput.Reset()
		}
	case "up", "k":
		m.list.MoveUp()
	case "down", "j":
		m.list.MoveDown()
	case " ", "enter":
		return m.toggleSelected()
	case "n":
		m.mode = ViewForm
		m.form.Init()
	case "d":
		if item := m.list.Selected(); item != nil {
			target := *item
			m.pendingTarget = &target
			m.mode = ViewConfirmDestroy
		}
	case "b":
		if m.backupPicker == nil {
			return nil
		}
		m.mode = ViewBackups
		return m.refreshBackups()
	case "/":
		m.mode = ViewSearch
		m.searchInput.Focus()
	case "?":
		m.mode = ViewHelp
	case "r":
		return m.refresh()
	}
	return nil
}

func (m *Model) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = ViewList
		return nil
	case "enter":
		if errMsg := m.form.Validate(); errMsg != "" {
			m.setError(errMsg)
			return m.clearMsg()
		}
		typ, name, hostname := m.form.Values()
		return m.create(typ, name, hostname)
	}
	return m.form.Update(msg)
}

func (m *Model) handleBackupKey(msg tea.KeyMsg) tea.Cmd {
	if m.backupPicker.Mode() == BackupModeConfirmRestore {
		switch msg.String() {
		case "y", "Y":
			if backup := m.backupPicker.Selected(); backup != nil {
				return m.restore(backup.Name)
			}
			m.backupPicker.Cancel()
		case "n", "N", "esc":
			m.backupPicker.Cancel()
		}
		return nil
	}

	switch msg.String() {
	case "esc", "q":
		m.mode = ViewList
	case "up", "k":
		if m.backupPicker.MoveUp() {
			return m.fetchBackupContent(m.backupPicker.Selected().Name)
		}
	case "down", "j":
		if m.backupPicker.MoveDown() {
			return m.fetchBackupContent(m.backupPicker.Selected().Name)
		}
	case "shift+up", "K":
		m.backupPicker.ScrollPreviewUp()
	case "shift+down", "J":
		m.backupPicker.ScrollPreviewDown()
	case "enter":
		m.backupPicker.InitRestore()
	case "r":
		return m.refreshBackups()
	}
	return nil
}

func (m *Model) handleHelpKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "q", "?":
		m.mode = ViewList
	}
	return nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = ViewList
		m.searchTerm = ""
		m.searchInput.Reset()
		return nil
	case "enter":
		m.searchTerm = m.searchInput.Value()
		m.mode = ViewList
		return nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return cmd
}

func (m *Model) handleConfirmDestroyKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "y", "Y":
		target := m.pendingTarget
		m.pendingTarget = nil
		m.mode = ViewList
		if target == nil {
			return nil
		}
		m.list.SetPending(target.Key(), true)
		return m.destroy(*target)
	case "n", "N", "esc":
		m.pendingTarget = nil
		m.mode = ViewList
	}
	return nil
}

func (m *Model) toggleSelected() tea.Cmd {
	item := m.list.Selected()
	if item == nil || item.Pending {
		return nil
	}
	if item.Server.Site != "" && item.Server.Entry == nil && item.Server.Hostname == "" {
		m.setError(fmt.Sprintf("Site %s does not declare a server_name", item.Server.Site))
		return m.clearMsg()
	}

	m.list.SetPending(item.Key(), true)
	return m.toggle(*item)
}

func (m *Model) setError(msg string) {
	m.message = msg
	m.messageStyle = "error"
	m.messageTime = time.Now()
}

func (m *Model) setSuccess(msg string) {
	m.message = msg
	m.messageStyle = "success"
	m.messageTime = time.Now()
}

// View renders the UI.
func (m *Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("localserve - Local Sites"))
	if m.updateVersion != "" {
		sb.WriteString("  ")
		sb.WriteString(updateStyle.Render(fmt.Sprintf("Update available: v%s", m.updateVersion)))
	}
	sb.WriteString("\n\n")

	switch m.mode {
	case ViewList:
		sb.WriteString(m.list.ViewFiltered(m.searchTerm))
	case ViewForm:
		sb.WriteString(m.form.View())
	case ViewBackups:
		sb.WriteString(m.backupPicker.View())
	case ViewHelp:
		sb.WriteString(m.helpView())
	case ViewSearch:
		sb.WriteString(m.searchView())
	case ViewConfirmDestroy:
		sb.WriteString(m.confirmDestroyView())
	}

	if m.message != "" {
		sb.WriteString("\n")
		if m.messageStyle == "error" {
			sb.WriteString(errorMsgStyle.Render(m.message))
		} else {
			sb.WriteString(successMsgStyle.Render(m.message))
		}
	}

	currentLines := strings.Count(sb.String(), "\n") + 1

	footerHeight := 2
	var helpBarContent string
	if m.mode == ViewList {
		helpBarContent = m.helpBar()
		footerHeight += strings.Count(helpBarContent, "\n") + 2
	}

	if remaining := m.height - currentLines - footerHeight; remaining > 0 {
		sb.WriteString(strings.Repeat("\n", remaining))
	}

	if m.mode == ViewList {
		sb.WriteString("\n")
		sb.WriteString(helpBarContent)
	}
	sb.WriteString("\n")
	sb.WriteString(m.statusBar())

	return sb.String()
}

func (m *Model) helpBar() string {
	items := []struct{ key, desc string }{
		{"↑↓/jk", "Navigate"},
		{"Space", "Enable/Disable"},
		{"n", "New"},
		{"d", "Destroy"},
		{"b", "Backups"},
		{"/", "Search"},
		{"?", "Help"},
		{"q", "Quit"},
	}

	const separator = "  "
	var lines []string
	var current string
	currentWidth := 0

	for _, item := range items {
		rendered := helpKeyStyle.Render(item.key) + ": " + item.desc
		width := lipgloss.Width(item.key + ": " + item.desc)

		if m.width > 0 && currentWidth > 0 && currentWidth+len(separator)+width > m.width {
			lines = append(lines, current)
			current, currentWidth = "", 0
		}
		if currentWidth > 0 {
			current += separator
			currentWidth += len(separator)
		}
		current += rendered
		currentWidth += width
	}
	if current != "" {
		lines = append(lines, current)
	}

	return helpBarStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) statusBar() string {
	parts := []string{
		fmt.Sprintf("%d enabled", m.list.CountState(manager.Linked)),
		fmt.Sprintf("%d total", m.list.Len()),
	}
	if orphans := m.list.CountState(manager.HostOnly); orphans > 0 {
		parts = append(parts, fmt.Sprintf("%d orphaned", orphans))
	}
	if m.needsRestart {
		parts = append(parts, pendingStyle.Render("restart nginx to apply config changes"))
	}
	return statusBarStyle.Render(strings.Join(parts, "  |  "))
}

func (m *Model) helpView() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Help"))
	sb.WriteString("\n\n")

	help := []struct{ key, desc string }{
		{"↑/↓ or j/k", "Navigate up/down"},
		{"Space/Enter", "Enable or disable the selected site"},
		{"n", "Create a site from a template"},
		{"d", "Destroy the selected site"},
		{"b", "Browse and restore hosts backups"},
		{"/", "Search"},
		{"r", "Refresh list"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	}

	for _, h := range help {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			helpKeyStyle.Width(15).Render(h.key),
			helpDescStyle.Render(h.desc)))
	}

	sb.WriteString("\n")
	sb.WriteString(inputLabelStyle.Render("Protected hostnames:"))
	sb.WriteString("\n")
	sb.WriteString(WrapHelpText(strings.Join(config.GetBlockedDomains(), " • "), m.width-10))
	sb.WriteString("\n\n")
	sb.WriteString(helpDescStyle.Render("Press ? or Esc to close"))

	return dialogStyle.Render(sb.String())
}

func (m *Model) searchView() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Search"))
	sb.WriteString("\n\n")
	sb.WriteString(inputFocusStyle.Render(m.searchInput.View()))
	sb.WriteString("\n\n")
	sb.WriteString(helpDescStyle.Render("Enter to search • Esc to cancel"))

	return dialogStyle.Render(sb.String())
}

func (m *Model) confirmDestroyView() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Confirm Destroy"))
	sb.WriteString("\n\n")

	target := m.pendingTarget
	if target == nil {
		return dialogStyle.Render(sb.String())
	}
	server := target.Server

	warningStyle := lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	if server.Site == "" {
		sb.WriteString(warningStyle.Render("Remove this orphaned host entry?"))
	} else {
		sb.WriteString(warningStyle.Render("Remove this site's config and host entry?"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Site:     %s\n", helpKeyStyle.Render(orDash(server.Site))))
	sb.WriteString(fmt.Sprintf("  Hostname: %s\n", helpDescStyle.Render(orDash(server.Hostname))))
	sb.WriteString(fmt.Sprintf("  Status:   %s %s\n", Indicator(server.State(), false, false), helpDescStyle.Render(server.State().String())))

	sb.WriteString("\n")
	sb.WriteString(helpDescStyle.Render("y confirm • n/Esc cancel"))

	return dialogStyle.Render(sb.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Run starts the TUI application.
func Run(svc Service, opts ...Option) error {
	p := tea.NewProgram(NewModel(svc, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
