package hosts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"regexp"
	"strings"
)

// DefaultPath is the path to the system hosts file.
const DefaultPath = "/etc/hosts"

var (
	// ErrArtifactUnavailable is returned when the hosts file cannot be read.
	ErrArtifactUnavailable = errors.New("hosts file unavailable")
	// ErrInvalidAddress is returned for addresses that are not IP literals.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidHostname is returned for hostnames that are not RFC 1123 names.
	ErrInvalidHostname = errors.New("invalid hostname")
)

var hostnameRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)

// ValidAddress reports whether address is an IPv4 or IPv6 literal.
func ValidAddress(address string) bool {
	_, err := netip.ParseAddr(address)
	return err == nil
}

// ValidHostname reports whether hostname can be written to the hosts file.
func ValidHostname(hostname string) bool {
	return len(hostname) <= 253 && hostnameRegex.MatchString(hostname)
}

// Registry adds and removes host mappings in a hosts file. It holds no state
// between calls: every operation re-reads the file and writes it back whole.
type Registry struct {
	path    string
	writer  Writer
	backups *Backups
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithWriter sets how the file is persisted.
func WithWriter(w Writer) Option {
	return func(r *Registry) { r.writer = w }
}

// WithBackups enables a backup before every write.
func WithBackups(b *Backups) Option {
	return func(r *Registry) { r.backups = b }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates a registry for the hosts file at path.
func NewRegistry(path string, opts ...Option) *Registry {
	r := &Registry{
		path:   path,
		writer: FileWriter{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the hosts file path.
func (r *Registry) Path() string {
	return r.path
}

// Backups returns the backup store, or nil when backups are disabled.
func (r *Registry) Backups() *Backups {
	return r.backups
}

// List returns every line of the file, or when section is set the lines from the
// start marker up to but excluding the end marker.
func (r *Registry) List(section string) ([]Line, error) {
	lines, err := r.read()
	if err != nil {
		return nil, err
	}
	if section == "" {
		return lines, nil
	}

	span, err := FindSection(lines, section)
	if err != nil {
		return nil, err
	}
	return lines[span.Start:span.End], nil
}

// Entries returns only the entries of List(section).
func (r *Registry) Entries(section string) ([]Entry, error) {
	lines, err := r.List(section)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, line := range lines {
		if e, ok := line.(Entry); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Add maps address to hostname. When section is set the entry goes inside that
// managed section, which is created if missing. It returns false without writing
// when the same address and hostname pair already exists anywhere in the file.
func (r *Registry) Add(ctx context.Context, address, hostname, comment, section string) (bool, error) {
	if !ValidAddress(address) {
		return false, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if !ValidHostname(hostname) {
		return false, fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}

	lines, err := r.read()
	if err != nil {
		return false, err
	}

	for _, line := range lines {
		if e, ok := line.(Entry); ok && e.Matches(address, hostname) {
			r.logger.Debug("host entry already present", "address", address, "hostname", hostname)
			return false, nil
		}
	}

	entry := NewEntry(address, hostname, comment)

	var updated []Line
	if section != "" {
		updated, err = InsertInSection(lines, section, entry)
		if err != nil {
			return false, err
		}
	} else {
		updated = append(lines[:len(lines):len(lines)], entry)
	}

	if err := r.WriteAll(ctx, updated); err != nil {
		return false, err
	}

	r.logger.Info("added host entry", "address", address, "hostname", hostname, "section", section)
	return true, nil
}

// Remove deletes every entry mapping address to hostname.
func (r *Registry) Remove(ctx context.Context, address, hostname string) (bool, error) {
	return r.RemoveIn(ctx, "", address, hostname)
}

// RemoveIn is Remove restricted to the entries inside section. A missing
// section has nothing to remove.
func (r *Registry) RemoveIn(ctx context.Context, section, address, hostname string) (bool, error) {
	removed, err := r.removeWhere(ctx, section, func(e Entry) bool {
		return e.Matches(address, hostname)
	})
	if section != "" && errors.Is(err, ErrSectionNotFound) {
		return false, nil
	}
	return removed, err
}

// RemoveByComment deletes every entry whose comment equals comment. An empty
// comment matches nothing.
func (r *Registry) RemoveByComment(ctx context.Context, comment string) (bool, error) {
	return r.RemoveByCommentIn(ctx, "", comment)
}

// RemoveByCommentIn is RemoveByComment restricted to the entries inside
// section. A missing section has nothing to remove.
func (r *Registry) RemoveByCommentIn(ctx context.Context, section, comment string) (bool, error) {
	comment = normalizeComment(comment)
	if comment == "" {
		return false, nil
	}
	removed, err := r.removeWhere(ctx, section, func(e Entry) bool {
		return e.Comment == comment
	})
	if errors.Is(err, ErrSectionNotFound) {
		return false, nil
	}
	return removed, err
}

func (r *Registry) removeWhere(ctx context.Context, section string, match func(Entry) bool) (bool, error) {
	lines, err := r.read()
	if err != nil {
		return false, err
	}

	span := Span{Start: -1, End: len(lines)}
	if section != "" {
		if span, err = FindSection(lines, section); err != nil {
			return false, err
		}
	}

	kept := make([]Line, 0, len(lines))
	for i, line := range lines {
		switch l := line.(type) {
		case Raw:
			kept = append(kept, l)
		case Entry:
			if i > span.Start && i < span.End && match(l) {
				r.logger.Info("removing host entry", "address", l.Address, "hostname", l.Hostname, "comment", l.Comment)
				continue
			}
			kept = append(kept, l)
		}
	}

	if len(kept) == len(lines) {
		return false, nil
	}

	if err := r.WriteAll(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// WriteAll replaces the hosts file with lines.
func (r *Registry) WriteAll(ctx context.Context, lines []Line) error {
	return r.writeContent(ctx, Format(lines))
}

func (r *Registry) writeContent(ctx context.Context, content []byte) error {
	if r.backups != nil {
		current, err := os.ReadFile(r.path)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
		}
		name, err := r.backups.Create(current)
		if err != nil {
			if name == "" {
				return fmt.Errorf("failed to create backup: %w", err)
			}
			r.logger.Warn("backup created but pruning failed", "backup", name, "error", err)
		}
	}

	if err := r.writer.WriteHosts(ctx, r.path, content); err != nil {
		return fmt.Errorf("failed to write hosts file: %w", err)
	}
	return nil
}

func (r *Registry) read() ([]Line, error) {
	content, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}
	return r.parse(string(content)), nil
}

// parse keeps malformed lines as Raw so a rewrite never drops them.
func (r *Registry) parse(content string) []Line {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}

	texts := strings.Split(content, "\n")
	lines := make([]Line, 0, len(texts))
	for i, text := range texts {
		text = strings.TrimSuffix(text, "\r")
		line, err := ParseLine(text)
		if err != nil {
			r.logger.Warn("keeping malformed hosts line unchanged", "path", r.path, "line", i+1, "error", err)
			line = Raw{Text: text}
		}
		lines = append(lines, line)
	}
	return lines
}

// Format serializes lines as file content ending in a single newline.
func Format(lines []Line) []byte {
	if len(lines) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(Serialize(line))
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}
