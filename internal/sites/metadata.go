package sites

import (
	"sort"
	"strings"
)

// metadataPrefix marks a footer line. nginx reads it as a comment.
const metadataPrefix = "##%"

// Property is one key/value pair recorded in a site's footer.
type Property struct {
	Key   string
	Value string
}

// Metadata is the ordered list of properties recorded in a site's footer.
type Metadata []Property

// Get returns the value for key and whether it was present.
func (m Metadata) Get(key string) (string, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Type returns the recorded template type.
func (m Metadata) Type() string {
	v, _ := m.Get("type")
	return v
}

// Map returns the properties as a map. Later duplicates win.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, len(m))
	for _, p := range m {
		out[p.Key] = p.Value
	}
	return out
}

// newMetadata orders type and name first, then the remaining props by key.
func newMetadata(typ, name string, props map[string]string) Metadata {
	md := Metadata{{Key: "type", Value: typ}, {Key: "name", Value: name}}

	keys := make([]string, 0, len(props))
	for key := range props {
		if key == "type" || key == "name" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		md = append(md, Property{Key: key, Value: props[key]})
	}
	return md
}

// Footer renders md as "##% key: value" lines.
func (m Metadata) Footer() string {
	var sb strings.Builder
	for i, p := range m {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(metadataPrefix)
		sb.WriteByte(' ')
		sb.WriteString(p.Key)
		sb.WriteString(": ")
		sb.WriteString(p.Value)
	}
	return sb.String()
}

// ParseMetadata collects every footer line in body, in file order.
func ParseMetadata(body string) Metadata {
	var md Metadata
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, metadataPrefix) {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, metadataPrefix), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		md = append(md, Property{Key: key, Value: strings.TrimSpace(value)})
	}
	return md
}

// DeclaredHostname returns the first name of the first server_name directive
// in body, or "" when there is none.
func DeclaredHostname(body string) string {
	for _, line := range strings.Split(body, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.TrimSuffix(fields[0], ";") != "server_name" {
			continue
		}
		if len(fields) < 2 {
			return ""
		}
		return strings.TrimSuffix(fields[1], ";")
	}
	return ""
}
