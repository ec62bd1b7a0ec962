package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukaszraczylo/localserve/internal/dns"
)

func TestValidateIP(t *testing.T) {
	tests := []struct {
		ip    string
		valid bool
	}{
		// Valid IPv4
		{"127.0.0.1", true},
		{"192.168.1.1", true},
		{"0.0.0.0", true},
		{"255.255.255.255", true},

		// Valid IPv6
		{"::1", true},
		{"2001:db8::1", true},
		{"fe80::1", true},
		{"::ffff:192.168.1.1", true},

		// Invalid
		{"", false},
		{"256.0.0.1", false},
		{"192.168.1", false},
		{"not-an-ip", false},
		{"192.168.1.1.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			result := ValidateIP(tt.ip)
			assert.Equal(t, tt.valid, result, "ip: %s", tt.ip)
		})
	}
}

func TestIsBlockedDomain(t *testing.T) {
	tests := []struct {
		domain  string
		blocked bool
	}{
		// Blocked domains
		{"apple.com", true},
		{"icloud.com", true},
		{"sub.apple.com", true},
		{"deep.sub.icloud.com", true},
		{"APPLE.COM", true}, // Case insensitive

		// Allowed domains
		{"blog.local", false},
		{"myapp.test", false},
		{"applestore.com", false}, // Not a subdomain
		{"notapple.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			result := IsBlockedDomain(tt.domain)
			assert.Equal(t, tt.blocked, result, "domain: %s", tt.domain)
		})
	}
}

func TestGetBlockedDomains(t *testing.T) {
	domains := GetBlockedDomains()
	assert.NotEmpty(t, domains)
	assert.Contains(t, domains, "apple.com")
	assert.Contains(t, domains, "icloud.com")
	assert.IsNonDecreasing(t, domains)
}

func TestValidateSectionName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"LibToServe", false},
		{"My Sites", false},
		{"", true},
		{"   ", true},
		{"has#hash", true},
		{"two\nlines", true},
		{"Sites - End", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSectionName(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		assert.NoError(t, ValidateConfig(Default()))
	})

	t.Run("nil config", func(t *testing.T) {
		err := ValidateConfig(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config is nil")
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"invalid flush method", func(c *Config) { c.Settings.FlushMethod = "magic" }, "settings.flushMethod"},
		{"invalid log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"invalid log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty hosts path", func(c *Config) { c.Hosts.Path = "" }, "hosts.path"},
		{"empty section", func(c *Config) { c.Hosts.Section = "" }, "hosts.section"},
		{"section with hash", func(c *Config) { c.Hosts.Section = "a#b" }, "hosts.section"},
		{"invalid address", func(c *Config) { c.Hosts.Address = "localhost" }, "hosts.address"},
		{"invalid write mode", func(c *Config) { c.Hosts.WriteMode = "magic" }, "hosts.writeMode"},
		{"sudo mode without sudo", func(c *Config) { c.Hosts.Sudo = "" }, "hosts.sudo"},
		{"negative backups", func(c *Config) { c.Hosts.MaxBackups = -1 }, "hosts.maxBackups"},
		{"empty binary", func(c *Config) { c.WebServer.Binary = "" }, "webServer.binary"},
		{"escaping servers dir", func(c *Config) { c.WebServer.ServersDir = "../servers" }, "webServer.serversDir"},
		{"invalid ignore glob", func(c *Config) { c.Sites.Ignore = []string{"[unterminated"} }, "sites.ignore[0]"},
		{"invalid default key", func(c *Config) { c.Sites.Defaults = map[string]string{"bad key": "x"} }, "sites.defaults.bad key"},
		{"multiline default", func(c *Config) { c.Sites.Defaults = map[string]string{"k": "a\nb"} }, "sites.defaults.k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}

	t.Run("direct mode without sudo", func(t *testing.T) {
		cfg := Default()
		cfg.Hosts.WriteMode = WriteModeDirect
		cfg.Hosts.Sudo = ""
		assert.NoError(t, ValidateConfig(cfg))
	})
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "test.field", Message: "test message"}
	assert.Equal(t, "test.field: test message", err.Error())
}

func TestValidateSettings(t *testing.T) {
	for _, method := range dns.Methods() {
		t.Run(string(method), func(t *testing.T) {
			assert.NoError(t, validateSettings(&Settings{FlushMethod: method}))
		})
	}

	assert.NoError(t, validateSettings(&Settings{}))
	assert.Error(t, validateSettings(&Settings{FlushMethod: "invalid"}))
}

// Matrix testing for IP validation
func TestValidateIP_Matrix(t *testing.T) {
	octets := []string{"0", "127", "192", "255"}

	for _, o1 := range octets {
		for _, o2 := range octets {
			for _, o3 := range octets {
				for _, o4 := range octets {
					ip := o1 + "." + o2 + "." + o3 + "." + o4
					t.Run(ip, func(t *testing.T) {
						result := ValidateIP(ip)
						assert.True(t, result, "expected %s to be valid", ip)
					})
				}
			}
		}
	}
}

func BenchmarkValidateIP(b *testing.B) {
	ips := []string{"127.0.0.1", "::1", "not-an-ip"}

	for _, ip := range ips {
		b.Run(ip, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				ValidateIP(ip)
			}
		})
	}
}
