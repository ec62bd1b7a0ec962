package manager

import (
	"fmt"
	"strings"
)

// EventKind names the operation that produced an Event.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventEnabled   EventKind = "enabled"
	EventDisabled  EventKind = "disabled"
	EventDestroyed EventKind = "destroyed"
)

// Event reports what a mutating call changed. Callers that need to react to
// changes inspect the returned value instead of subscribing to anything.
type Event struct {
	Kind          EventKind
	Site          string
	Hostname      string
	HostsChanged  bool
	ConfigChanged bool
}

// Changed reports whether any artifact was modified.
func (e Event) Changed() bool {
	return e.HostsChanged || e.ConfigChanged
}

func (e Event) String() string {
	var changed []string
	if e.ConfigChanged {
		changed = append(changed, "config")
	}
	if e.HostsChanged {
		changed = append(changed, "hosts")
	}
	if len(changed) == 0 {
		changed = append(changed, "nothing")
	}
	return fmt.Sprintf("%s %s (%s): changed %s", e.Kind, e.Site, e.Hostname, strings.Join(changed, ", "))
}
