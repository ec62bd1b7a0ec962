package config

import (
	"fmt"
	"net/netip"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lukaszraczylo/localserve/internal/dns"
)

// propertyKeyRegex validates template property keys.
var propertyKeyRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// blockedDomains contains domains that must never be redirected locally.
var blockedDomains = map[string]bool{
	"apple.com":          true,
	"icloud.com":         true,
	"icloud-content.com": true,
	"apple-dns.cn":       true,
	"apple-dns.net":      true,
	"mzstatic.com":       true,
	"itunes.apple.com":   true,
	"updates.apple.com":  true,
}

var logLevels = []string{"debug", "info", "warn", "error"}

var logFormats = []string{"text", "json"}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig validates the entire configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return &ValidationError{Field: "config", Message: "config is nil"}
	}

	if err := validateSettings(&cfg.Settings); err != nil {
		return err
	}
	if err := validateLog(&cfg.Log); err != nil {
		return err
	}
	if err := validateHosts(&cfg.Hosts); err != nil {
		return err
	}
	if err := validateWebServer(&cfg.WebServer); err != nil {
		return err
	}
	return validateSites(&cfg.Sites)
}

func validateSettings(s *Settings) error {
	if s.FlushMethod == "" || slices.Contains(dns.Methods(), s.FlushMethod) {
		return nil
	}
	return &ValidationError{
		Field:   "settings.flushMethod",
		Message: fmt.Sprintf("invalid flush method: %s", s.FlushMethod),
	}
}

func validateLog(l *Log) error {
	if !slices.Contains(logLevels, strings.ToLower(l.Level)) {
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("invalid log level: %s", l.Level)}
	}
	if !slices.Contains(logFormats, strings.ToLower(l.Format)) {
		return &ValidationError{Field: "log.format", Message: fmt.Sprintf("invalid log format: %s", l.Format)}
	}
	return nil
}

func validateHosts(h *Hosts) error {
	if strings.TrimSpace(h.Path) == "" {
		return &ValidationError{Field: "hosts.path", Message: "hosts file path is required"}
	}

	if err := ValidateSectionName(h.Section); err != nil {
		return &ValidationError{Field: "hosts.section", Message: err.Error()}
	}

	if !ValidateIP(h.Address) {
		return &ValidationError{
			Field:   "hosts.address",
			Message: fmt.Sprintf("invalid IP address: %s", h.Address),
		}
	}

	switch h.WriteMode {
	case WriteModeSudo:
		if strings.TrimSpace(h.Sudo) == "" {
			return &ValidationError{Field: "hosts.sudo", Message: "sudo command is required in sudo write mode"}
		}
	case WriteModeDirect:
	default:
		return &ValidationError{
			Field:   "hosts.writeMode",
			Message: fmt.Sprintf("invalid write mode: %s", h.WriteMode),
		}
	}

	if h.MaxBackups < 0 {
		return &ValidationError{Field: "hosts.maxBackups", Message: "must not be negative"}
	}
	return nil
}

func validateWebServer(w *WebServer) error {
	if strings.TrimSpace(w.Binary) == "" {
		return &ValidationError{Field: "webServer.binary", Message: "binary is required"}
	}
	if w.ServersDir == "" || strings.Contains(w.ServersDir, "..") {
		return &ValidationError{
			Field:   "webServer.serversDir",
			Message: fmt.Sprintf("invalid servers directory: %q", w.ServersDir),
		}
	}
	return nil
}

func validateSites(s *Sites) error {
	for i, pattern := range s.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return &ValidationError{
				Field:   fmt.Sprintf("sites.ignore[%d]", i),
				Message: fmt.Sprintf("invalid glob pattern: %s", pattern),
			}
		}
	}

	for key, value := range s.Defaults {
		if !propertyKeyRegex.MatchString(key) {
			return &ValidationError{
				Field:   "sites.defaults." + key,
				Message: "property keys must be identifiers",
			}
		}
		if strings.ContainsAny(value, "\r\n") {
			return &ValidationError{
				Field:   "sites.defaults." + key,
				Message: "property values must fit on one line",
			}
		}
	}
	return nil
}

// ValidateSectionName checks a managed section name can be written as a marker.
func ValidateSectionName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("section name is required")
	case strings.Contains(name, "#"):
		return fmt.Errorf("section name must not contain '#': %s", name)
	case strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("section name must fit on one line")
	case strings.HasSuffix(name, " - End"):
		return fmt.Errorf("section name must not end with \" - End\": %s", name)
	}
	return nil
}

// ValidateIP checks if an IP address is valid (IPv4 or IPv6).
func ValidateIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}

// IsBlockedDomain checks if a domain is in the blocklist.
func IsBlockedDomain(domain string) bool {
	domain = strings.ToLower(domain)

	if blockedDomains[domain] {
		return true
	}

	for blocked := range blockedDomains {
		if strings.HasSuffix(domain, "."+blocked) {
			return true
		}
	}

	return false
}

// GetBlockedDomains returns a copy of the blocked domains list.
func GetBlockedDomains() []string {
	domains := make([]string, 0, len(blockedDomains))
	for d := range blockedDomains {
		domains = append(domains, d)
	}
	slices.Sort(domains)
	return domains
}
