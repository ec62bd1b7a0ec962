package manager

import "github.com/lukaszraczylo/localserve/internal/hosts"

// State describes how far a server has been set up.
type State int

const (
	// Unconfigured servers have neither a site config nor a host entry.
	Unconfigured State = iota
	// ConfigOnly servers have a site config but no managed host entry.
	ConfigOnly
	// HostOnly servers have a managed host entry but no site config.
	HostOnly
	// Linked servers have both.
	Linked
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case ConfigOnly:
		return "disabled"
	case HostOnly:
		return "orphaned"
	case Linked:
		return "enabled"
	default:
		return "unknown"
	}
}

// Server joins a site config to its managed host entry. It is derived on
// every List and never stored.
type Server struct {
	// Site is the config file name.
	Site string
	// Hostname is the name declared by the site config, if any.
	Hostname string
	// Entry is the managed host entry for Hostname, if any.
	Entry *hosts.Entry
}

// Valid reports whether the server has both a site config and a host entry.
func (s Server) Valid() bool {
	return s.Site != "" && s.Entry != nil
}

// State derives the server's state.
func (s Server) State() State {
	switch {
	case s.Site != "" && s.Entry != nil:
		return Linked
	case s.Site != "":
		return ConfigOnly
	case s.Entry != nil:
		return HostOnly
	default:
		return Unconfigured
	}
}

// Address returns the mapped address, or "" when there is no host entry.
func (s Server) Address() string {
	if s.Entry == nil {
		return ""
	}
	return s.Entry.Address
}
