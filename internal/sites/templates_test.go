package sites

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltin_RenderWithDefaults(t *testing.T) {
	values := DefaultProperties()
	values["hostName"] = "site.local"
	values["location"] = "/srv/site"
	values["proxyPort"] = "3000"

	for _, name := range Builtin().Names() {
		t.Run(name, func(t *testing.T) {
			tmpl, err := Builtin().Resolve(name)
			require.NoError(t, err)

			rendered, err := Render(name, tmpl, values)
			require.NoError(t, err)
			assert.Equal(t, "site.local", DeclaredHostname(rendered))
		})
	}
}

func TestCatalog_Names(t *testing.T) {
	assert.Equal(t, []string{"drupal", "php", "proxy", "wordpress"}, Builtin().Names())
}

func TestRender_UnterminatedPlaceholder(t *testing.T) {
	_, err := Render("s", "listen {{port\nserver_name x;", nil)

	var placeholder *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &placeholder)
	assert.Equal(t, "port", placeholder.Key)
}

func TestRender_FirstUnresolvedReported(t *testing.T) {
	_, err := Render("s", "{{a}} {{b}} {{c}}", map[string]string{"a": "1"})

	var placeholder *UnresolvedPlaceholderError
	require.ErrorAs(t, err, &placeholder)
	assert.Equal(t, "b", placeholder.Key)
}
