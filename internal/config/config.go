// Package config handles YAML configuration parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/lukaszraczylo/localserve/internal/dns"
)

// DefaultConfigDir returns the default config directory path for users.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "localserve")
}

// DefaultConfigPath returns the default config file path for users.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// WriteMode selects how the hosts file is written.
type WriteMode string

const (
	// WriteModeSudo stages the file and copies it into place with sudo.
	WriteModeSudo WriteMode = "sudo"
	// WriteModeDirect writes the file from this process.
	WriteModeDirect WriteMode = "direct"
)

// Settings holds global configuration settings.
type Settings struct {
	FlushMethod dns.FlushMethod `yaml:"flushMethod"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Hosts configures the hosts file and its managed section.
type Hosts struct {
	Path       string    `yaml:"path"`
	Section    string    `yaml:"section"`
	Address    string    `yaml:"address"`
	WriteMode  WriteMode `yaml:"writeMode"`
	Sudo       string    `yaml:"sudo"`
	BackupDir  string    `yaml:"backupDir"`
	MaxBackups int       `yaml:"maxBackups"`
}

// WebServer configures the nginx collaborator.
type WebServer struct {
	Binary string `yaml:"binary"`
	// ConfigRoot overrides detection from `nginx -t` when set.
	ConfigRoot string `yaml:"configRoot"`
	ServersDir string `yaml:"serversDir"`
}

// Sites configures the site config store.
type Sites struct {
	Root     string            `yaml:"root"`
	Ignore   []string          `yaml:"ignore"`
	Defaults map[string]string `yaml:"defaults"`
}

// Config represents the complete configuration.
type Config struct {
	Settings  Settings  `yaml:"settings"`
	Log       Log       `yaml:"log"`
	Hosts     Hosts     `yaml:"hosts"`
	WebServer WebServer `yaml:"webServer"`
	Sites     Sites     `yaml:"sites"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Settings: Settings{FlushMethod: dns.FlushMethodAuto},
		Log:      Log{Level: "info", Format: "text"},
		Hosts: Hosts{
			Path:       "/etc/hosts",
			Section:    "LibToServe",
			Address:    "127.0.0.1",
			WriteMode:  WriteModeSudo,
			Sudo:       "sudo",
			BackupDir:  "~/.config/localserve/backups",
			MaxBackups: 10,
		},
		WebServer: WebServer{
			Binary:     "nginx",
			ServersDir: "servers",
		},
		Sites: Sites{
			Root:   "~/Sites",
			Ignore: []string{".*", "*~", "*.bak", "*.default"},
			Defaults: map[string]string{
				"phpfpmPort": "9000",
				"proxyHost":  "127.0.0.1",
			},
		},
	}
}

// Manager handles configuration loading and saving.
type Manager struct {
	path   string
	config *Config
	mu     sync.RWMutex
}

// NewManager creates a new config manager.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the config file path.
func (m *Manager) Path() string {
	return m.path
}

// Load reads and parses the configuration file. Keys missing from the file
// keep their default values.
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return m.set(cfg)
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func (m *Manager) LoadOrDefault() error {
	err := m.Load()
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return m.set(Default())
}

func (m *Manager) set(cfg *Config) error {
	if err := cfg.expandPaths(); err != nil {
		return err
	}
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Save writes the configuration to the file.
func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if cfg == nil {
		return fmt.Errorf("no config loaded")
	}

	return write(m.path, cfg)
}

// CreateDefault creates a default configuration file. It refuses to overwrite
// an existing one.
func CreateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	return write(path, Default())
}

func write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Hosts.Path, &c.Hosts.BackupDir, &c.WebServer.ConfigRoot, &c.Sites.Root} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
