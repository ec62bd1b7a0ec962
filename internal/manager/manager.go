// Package manager keeps site configs and managed host entries in step. It
// derives servers by joining the two and moves them between states.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lukaszraczylo/localserve/internal/hosts"
	"github.com/lukaszraczylo/localserve/internal/sites"
)

const (
	// DefaultSection is the managed hosts section.
	DefaultSection = "LibToServe"
	// DefaultAddress is the address every managed hostname maps to.
	DefaultAddress = "127.0.0.1"
)

var (
	// ErrMissingHostname is returned by Enable for servers without a declared hostname.
	ErrMissingHostname = errors.New("could not identify a valid hostname")
	// ErrMissingIdentity is returned by Disable for servers without a host entry.
	ErrMissingIdentity = errors.New("could not identify a unique identifier")
	// ErrServerNotFound is returned by Find.
	ErrServerNotFound = errors.New("server not found")
)

// Flusher clears resolver caches after the hosts file changed.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Manager coordinates a hosts registry and a site config store.
type Manager struct {
	registry *hosts.Registry
	store    *sites.Store
	section  string
	address  string
	flusher  Flusher
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithSection sets the managed hosts section name.
func WithSection(name string) Option {
	return func(m *Manager) { m.section = name }
}

// WithAddress sets the address managed hostnames map to.
func WithAddress(address string) Option {
	return func(m *Manager) { m.address = address }
}

// WithFlusher sets a hook run after every hosts change.
func WithFlusher(f Flusher) Option {
	return func(m *Manager) { m.flusher = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New creates a manager.
func New(registry *hosts.Registry, store *sites.Store, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		store:    store,
		section:  DefaultSection,
		address:  DefaultAddress,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Section returns the managed section name.
func (m *Manager) Section() string {
	return m.section
}

// Create writes a site config for name from the typ template and maps hostname
// to the managed address. An existing mapping counts as success. If the
// config was written but the host mapping fails, the config is left in place
// and the returned event says so.
func (m *Manager) Create(ctx context.Context, typ, name, hostname string, props map[string]string) (Event, error) {
	event := Event{Kind: EventCreated, Site: name, Hostname: hostname}
	if hostname == "" {
		return event, ErrMissingHostname
	}
	// Reject what the host mapping would refuse before any config is written.
	if !hosts.ValidHostname(hostname) {
		return event, fmt.Errorf("%w: %q", hosts.ErrInvalidHostname, hostname)
	}
	if !hosts.ValidAddress(m.address) {
		return event, fmt.Errorf("%w: %q", hosts.ErrInvalidAddress, m.address)
	}

	merged := make(map[string]string, len(props)+1)
	for k, v := range props {
		merged[k] = v
	}
	merged["hostName"] = hostname

	if err := m.store.Write(ctx, typ, name, merged); err != nil {
		return event, fmt.Errorf("failed to write site %s: %w", name, err)
	}
	event.ConfigChanged = true

	added, err := m.registry.Add(ctx, m.address, hostname, name, m.section)
	if err != nil {
		return event, fmt.Errorf("site %s written but host mapping failed: %w", name, err)
	}
	event.HostsChanged = added

	m.afterHostsChange(ctx, event)
	m.logger.Info("created server", "site", name, "hostname", hostname, "type", typ, "hostAdded", added)
	return event, nil
}

// List returns one server per site config, joined to the managed entry whose
// hostname the config declares.
func (m *Manager) List(ctx context.Context) ([]Server, error) {
	names, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := m.managedEntries()
	if err != nil {
		return nil, err
	}

	servers := make([]Server, 0, len(names))
	for _, name := range names {
		body, err := m.store.Read(ctx, name)
		if err != nil {
			if errors.Is(err, sites.ErrNotFound) {
				m.logger.Warn("site disappeared while listing", "site", name)
				continue
			}
			return nil, err
		}

		server := Server{Site: name, Hostname: sites.DeclaredHostname(body)}
		if server.Hostname != "" {
			for i := range entries {
				if entries[i].Hostname == server.Hostname {
					entry := entries[i]
					server.Entry = &entry
					break
				}
			}
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// Orphans returns the managed entries that no site config declares.
func (m *Manager) Orphans(ctx context.Context) ([]hosts.Entry, error) {
	servers, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := m.managedEntries()
	if err != nil {
		return nil, err
	}

	declared := make(map[string]bool, len(servers))
	for _, s := range servers {
		declared[s.Hostname] = true
	}

	var orphans []hosts.Entry
	for _, e := range entries {
		if !declared[e.Hostname] {
			orphans = append(orphans, e)
		}
	}
	return orphans, nil
}

// Find returns the server for site.
func (m *Manager) Find(ctx context.Context, site string) (Server, error) {
	servers, err := m.List(ctx)
	if err != nil {
		return Server{}, err
	}
	for _, s := range servers {
		if s.Site == site {
			return s, nil
		}
	}
	return Server{}, fmt.Errorf("%w: %s", ErrServerNotFound, site)
}

// Enable maps the server's hostname under the managed section.
func (m *Manager) Enable(ctx context.Context, server Server) (Event, error) {
	event := Event{Kind: EventEnabled, Site: server.Site, Hostname: server.Hostname}
	if server.Hostname == "" {
		return event, fmt.Errorf("%w: site %s", ErrMissingHostname, server.Site)
	}

	added, err := m.registry.Add(ctx, m.address, server.Hostname, server.Site, m.section)
	if err != nil {
		return event, err
	}
	event.HostsChanged = added

	m.afterHostsChange(ctx, event)
	return event, nil
}

// Disable removes the server's managed entries by their comment, so a server
// whose hostname changed since creation can still be disabled. An entry
// without a comment is removed by its address and hostname.
func (m *Manager) Disable(ctx context.Context, server Server) (Event, error) {
	event := Event{Kind: EventDisabled, Site: server.Site, Hostname: server.Hostname}
	if server.Entry == nil {
		return event, fmt.Errorf("%w: site %s", ErrMissingIdentity, server.Site)
	}

	var (
		removed bool
		err     error
	)
	if server.Entry.Comment != "" {
		removed, err = m.registry.RemoveByCommentIn(ctx, m.section, server.Entry.Comment)
	} else {
		removed, err = m.registry.RemoveIn(ctx, m.section, server.Entry.Address, server.Entry.Hostname)
	}
	if err != nil {
		return event, err
	}
	event.HostsChanged = removed

	m.afterHostsChange(ctx, event)
	return event, nil
}

// Destroy disables the server when it has a host entry, then removes its
// site config. The config removal is attempted even when disabling was
// skipped or failed; both errors are returned joined. Emptied section markers
// stay in the hosts file.
func (m *Manager) Destroy(ctx context.Context, server Server) (Event, error) {
	event := Event{Kind: EventDestroyed, Site: server.Site, Hostname: server.Hostname}

	var disableErr error
	if server.Entry != nil {
		disabled, err := m.Disable(ctx, server)
		if err != nil {
			disableErr = fmt.Errorf("failed to disable %s: %w", server.Site, err)
		}
		event.HostsChanged = disabled.HostsChanged
	}

	removed, err := m.store.Remove(ctx, server.Site)
	event.ConfigChanged = removed
	if err != nil || disableErr != nil {
		return event, errors.Join(disableErr, err)
	}

	m.logger.Info("destroyed server", "site", server.Site, "hostname", server.Hostname)
	return event, nil
}

func (m *Manager) managedEntries() ([]hosts.Entry, error) {
	entries, err := m.registry.Entries(m.section)
	if errors.Is(err, hosts.ErrSectionNotFound) {
		return nil, nil
	}
	return entries, err
}

func (m *Manager) afterHostsChange(ctx context.Context, event Event) {
	if !event.HostsChanged || m.flusher == nil {
		return
	}
	if err := m.flusher.Flush(ctx); err != nil {
		m.logger.Warn("failed to flush DNS cache", "event", string(event.Kind), "site", event.Site, "error", err)
	}
}
