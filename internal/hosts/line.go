// Package hosts reads and rewrites the system hosts file.
//
// The file is modelled as an ordered sequence of lines, each either a structured
// Entry or an opaque Raw line. Mutations transform that sequence and persist it by
// replacing the whole file.
package hosts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedEntry is returned when a non-comment line has fewer than two fields.
var ErrMalformedEntry = errors.New("malformed hosts entry")

// MalformedEntryError carries the offending line.
type MalformedEntryError struct {
	Line string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("malformed hosts entry: %q", e.Line)
}

// Unwrap lets errors.Is match ErrMalformedEntry.
func (e *MalformedEntryError) Unwrap() error {
	return ErrMalformedEntry
}

// Line is one line of the hosts file. It is implemented by Entry and Raw only.
type Line interface {
	isLine()
}

// Entry is an address-to-hostname mapping.
type Entry struct {
	Address  string
	Hostname string
	Aliases  []string
	// Comment is the payload without the leading '#'. Empty means no comment.
	Comment string
}

// Raw is any line that is not an entry: comments, blank lines, section markers.
type Raw struct {
	Text string
}

func (Entry) isLine() {}
func (Raw) isLine()   {}

// NewEntry builds an entry, normalising the comment to its payload.
func NewEntry(address, hostname, comment string) Entry {
	return Entry{
		Address:  address,
		Hostname: hostname,
		Comment:  normalizeComment(comment),
	}
}

func normalizeComment(comment string) string {
	comment = strings.TrimSpace(comment)
	comment = strings.TrimPrefix(comment, "#")
	return strings.TrimSpace(comment)
}

// ParseLine parses a single hosts file line.
//
// Blank lines and lines starting with '#' become Raw. Everything else must have at
// least an address and a hostname. Fields after the hostname and before the first
// field starting with '#' are aliases; the rest is the comment.
func ParseLine(raw string) (Line, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Raw{Text: raw}, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return nil, &MalformedEntryError{Line: raw}
	}

	entry := Entry{
		Address:  fields[0],
		Hostname: fields[1],
	}

	rest := fields[2:]
	for i, f := range rest {
		if strings.HasPrefix(f, "#") {
			entry.Comment = normalizeComment(strings.Join(rest[i:], " "))
			break
		}
		entry.Aliases = append(entry.Aliases, f)
	}

	return entry, nil
}

// Serialize renders a line back to text. Raw lines are returned verbatim.
func Serialize(line Line) string {
	switch l := line.(type) {
	case Raw:
		return l.Text
	case Entry:
		return l.String()
	default:
		panic(fmt.Sprintf("hosts: unknown line type %T", line))
	}
}

// String renders the entry as "address hostname [aliases...] [#comment]".
func (e Entry) String() string {
	var sb strings.Builder
	sb.WriteString(e.Address)
	sb.WriteByte(' ')
	sb.WriteString(e.Hostname)
	for _, alias := range e.Aliases {
		sb.WriteByte(' ')
		sb.WriteString(alias)
	}
	if e.Comment != "" {
		sb.WriteString(" #")
		sb.WriteString(e.Comment)
	}
	return sb.String()
}

// Equal reports whether two entries carry the same values.
func (e Entry) Equal(other Entry) bool {
	if e.Address != other.Address || e.Hostname != other.Hostname || e.Comment != other.Comment {
		return false
	}
	if len(e.Aliases) != len(other.Aliases) {
		return false
	}
	for i := range e.Aliases {
		if e.Aliases[i] != other.Aliases[i] {
			return false
		}
	}
	return true
}

// Matches reports whether the entry maps address to hostname.
func (e Entry) Matches(address, hostname string) bool {
	return e.Address == address && e.Hostname == hostname
}
