package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{"major bump", "2.0.0", "1.0.0", 1},
		{"minor bump", "1.1.0", "1.0.0", 1},
		{"patch bump", "v1.0.1", "1.0.0", 1},
		{"same", "1.0.0", "v1.0.0", 0},
		{"older", "1.0.0", "1.0.1", -1},
		{"longer is newer", "1.0.1", "1.0", 1},
		{"shorter is older", "1.0", "1.0.1", -1},
		{"double digits", "10.0.0", "9.0.0", 1},
		{"prerelease suffix ignored", "1.0.0-rc1", "1.0.0", 0},
		{"build suffix ignored", "1.2.0+abc", "1.1.9", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.a, tt.b))
		})
	}
}

func newReleaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/lukaszraczylo/localserve/releases/latest", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChecker_Check(t *testing.T) {
	srv := newReleaseServer(t, http.StatusOK, `{"tag_name":"v1.2.0","html_url":"https://example.com/v1.2.0"}`)

	t.Run("newer release", func(t *testing.T) {
		checker := NewChecker("lukaszraczylo", "localserve", "v1.1.0", WithAPIURL(srv.URL+"/"))
		update, err := checker.Check(context.Background())
		require.NoError(t, err)
		require.NotNil(t, update)
		assert.Equal(t, "1.2.0", update.Latest)
		assert.Equal(t, "1.1.0", update.Current)
		assert.Contains(t, update.String(), "https://example.com/v1.2.0")
	})

	t.Run("up to date", func(t *testing.T) {
		checker := NewChecker("lukaszraczylo", "localserve", "1.2.0", WithAPIURL(srv.URL))
		update, err := checker.Check(context.Background())
		require.NoError(t, err)
		assert.Nil(t, update)
	})

	t.Run("dev build", func(t *testing.T) {
		checker := NewChecker("lukaszraczylo", "localserve", "dev", WithAPIURL("http://127.0.0.1:1"))
		update, err := checker.Check(context.Background())
		require.NoError(t, err)
		assert.Nil(t, update)
	})
}

func TestChecker_CheckFailure(t *testing.T) {
	srv := newReleaseServer(t, http.StatusForbidden, `{}`)

	checker := NewChecker("lukaszraczylo", "localserve", "1.0.0", WithAPIURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestString(t *testing.T) {
	assert.Contains(t, String(), "localserve "+Version)
}
