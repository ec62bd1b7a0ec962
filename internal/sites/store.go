// Package sites manages the per-site web server configuration files kept in
// the servers directory under the web server's config root.
package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultServersDir is the directory below the config root holding site files.
const DefaultServersDir = "servers"

var (
	// ErrTemplateNotFound is returned when a site type names no known template.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrUnresolvedPlaceholder is wrapped by UnresolvedPlaceholderError.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")
	// ErrValidationFailed is returned when the web server rejects the written config.
	ErrValidationFailed = errors.New("config validation failed")
	// ErrNotFound is returned when a site file does not exist.
	ErrNotFound = errors.New("site not found")
	// ErrConfigDirUnavailable is returned when the config root cannot be resolved.
	ErrConfigDirUnavailable = errors.New("config directory unavailable")
	// ErrInvalidName is returned for site names that are not plain file names.
	ErrInvalidName = errors.New("invalid site name")
	// ErrInvalidProperty is returned for property keys or values that cannot be
	// recorded in the footer.
	ErrInvalidProperty = errors.New("invalid property")
)

// UnresolvedPlaceholderError names the first placeholder a template still
// contained after substitution.
type UnresolvedPlaceholderError struct {
	Site string
	Key  string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("site %q: no value for placeholder {{%s}}", e.Site, e.Key)
}

func (e *UnresolvedPlaceholderError) Unwrap() error {
	return ErrUnresolvedPlaceholder
}

// RootResolver locates the web server's configuration root.
type RootResolver interface {
	ConfigRoot(ctx context.Context) (string, error)
}

// Validator checks the web server's whole configuration.
type Validator interface {
	Test(ctx context.Context) error
}

// Store reads and writes site configuration files.
type Store struct {
	root       RootResolver
	validator  Validator
	serversDir string
	catalog    Catalog
	defaults   map[string]string
	sitesRoot  string
	ignore     []string
	logger     *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithServersDir sets the directory below the config root holding site files.
func WithServersDir(dir string) StoreOption {
	return func(s *Store) { s.serversDir = dir }
}

// WithCatalog replaces the builtin templates.
func WithCatalog(c Catalog) StoreOption {
	return func(s *Store) { s.catalog = c }
}

// WithDefaults sets properties applied beneath caller-supplied ones.
func WithDefaults(defaults map[string]string) StoreOption {
	return func(s *Store) { s.defaults = defaults }
}

// WithSitesRoot sets the directory a site's location defaults into.
func WithSitesRoot(dir string) StoreOption {
	return func(s *Store) { s.sitesRoot = dir }
}

// WithIgnore sets the doublestar globs for files List skips.
func WithIgnore(patterns []string) StoreOption {
	return func(s *Store) { s.ignore = patterns }
}

// WithStoreLogger sets the logger.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// DefaultProperties returns the properties every site starts from.
func DefaultProperties() map[string]string {
	return map[string]string{
		"phpfpmPort": "9000",
		"proxyHost":  "127.0.0.1",
	}
}

// DefaultIgnore returns the globs for hidden, editor and backup files.
func DefaultIgnore() []string {
	return []string{".*", "*~", "*.bak", "*.default"}
}

// NewStore creates a store using root to find the config directory and
// validator to check configs after each write.
func NewStore(root RootResolver, validator Validator, opts ...StoreOption) *Store {
	s := &Store{
		root:       root,
		validator:  validator,
		serversDir: DefaultServersDir,
		catalog:    Builtin(),
		defaults:   DefaultProperties(),
		ignore:     DefaultIgnore(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the store's templates.
func (s *Store) Catalog() Catalog {
	return s.catalog
}

// Dir resolves the servers directory.
func (s *Store) Dir(ctx context.Context) (string, error) {
	root, err := s.root.ConfigRoot(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConfigDirUnavailable, err)
	}
	if root == "" {
		return "", ErrConfigDirUnavailable
	}
	return filepath.Join(root, s.serversDir), nil
}

// List returns the site names in the servers directory, sorted. A missing
// directory has no sites.
func (s *Store) List(ctx context.Context) ([]string, error) {
	dir, err := s.Dir(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("servers directory does not exist", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrConfigDirUnavailable, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || s.ignored(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ignored(name string) bool {
	for _, pattern := range s.ignore {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Write renders the typ template with props, writes it as the site name and
// validates the web server configuration. On validation failure the previous
// state of the file is put back: a new file is removed and an overwritten one
// restored. If ctx is cancelled before validation finishes, the file is left
// in place.
func (s *Store) Write(ctx context.Context, typ, name string, props map[string]string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := validateProperties(props); err != nil {
		return err
	}

	tmpl, err := s.catalog.Resolve(typ)
	if err != nil {
		return err
	}

	values := make(map[string]string, len(s.defaults)+len(props)+3)
	for k, v := range s.defaults {
		values[k] = v
	}
	if s.sitesRoot != "" {
		values["location"] = filepath.Join(s.sitesRoot, name)
	}
	for k, v := range props {
		values[k] = v
	}
	values["name"] = name
	values["type"] = typ

	rendered, err := Render(name, tmpl, values)
	if err != nil {
		return err
	}
	body := rendered + "\n\n" + newMetadata(typ, name, props).Footer() + "\n"

	dir, err := s.Dir(ctx)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create servers directory: %w", err)
	}

	path := filepath.Join(dir, name)
	previous, readErr := os.ReadFile(path)
	existed := readErr == nil

	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write site config: %w", err)
	}
	s.logger.Info("wrote site config", "site", name, "type", typ, "path", path)

	if err := s.validator.Test(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("validation of %s interrupted: %w", name, ctxErr)
		}

		if existed {
			if rErr := os.WriteFile(path, previous, 0644); rErr != nil {
				s.logger.Error("failed to restore previous site config", "site", name, "error", rErr)
			}
		} else if rErr := os.Remove(path); rErr != nil {
			s.logger.Error("failed to remove rejected site config", "site", name, "error", rErr)
		}
		return fmt.Errorf("%w: %s: %w", ErrValidationFailed, name, err)
	}
	return nil
}

// Remove deletes the site file. It returns false when there was none.
func (s *Store) Remove(ctx context.Context, name string) (bool, error) {
	path, err := s.path(ctx, name)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove site config: %w", err)
	}
	s.logger.Info("removed site config", "site", name, "path", path)
	return true, nil
}

// Read returns the site file's content.
func (s *Store) Read(ctx context.Context, name string) (string, error) {
	path, err := s.path(ctx, name)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to read site config: %w", err)
	}
	return string(content), nil
}

// ReadMetadata returns the footer properties of the site file.
func (s *Store) ReadMetadata(ctx context.Context, name string) (Metadata, error) {
	body, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(body), nil
}

func (s *Store) path(ctx context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir, err := s.Dir(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ValidateName checks that name can be used as a file in the servers directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, name)
	case strings.ContainsAny(name, " \t\r\n"):
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidName, name)
	}
	return nil
}

func validateProperties(props map[string]string) error {
	for k, v := range props {
		if k == "" || strings.ContainsAny(k, ": \t\r\n") {
			return fmt.Errorf("%w: key %q", ErrInvalidProperty, k)
		}
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%w: value for %q spans lines", ErrInvalidProperty, k)
		}
	}
	return nil
}
