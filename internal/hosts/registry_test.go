package hosts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseHosts = `##
# Host Database
##
127.0.0.1 localhost
255.255.255.255 broadcasthost
::1 localhost
`

func newTestRegistry(t *testing.T, content string) (*Registry, string) {
	t.Helper()
	hostsPath := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(hostsPath, []byte(content), 0644))
	return NewRegistry(hostsPath), hostsPath
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestRegistry_List(t *testing.T) {
	registry, _ := newTestRegistry(t, baseHosts+"## LibToServe ##\n127.0.0.1 blog.local #blog\n## LibToServe - End ##\n")

	all, err := registry.List("")
	require.NoError(t, err)
	assert.Len(t, all, 9)

	section, err := registry.List("LibToServe")
	require.NoError(t, err)
	require.Len(t, section, 2)
	assert.Equal(t, Raw{Text: "## LibToServe ##"}, section[0])
	assert.Equal(t, Entry{Address: "127.0.0.1", Hostname: "blog.local", Comment: "blog"}, section[1])

	entries, err := registry.Entries("LibToServe")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blog.local", entries[0].Hostname)
}

func TestRegistry_List_SectionNotFound(t *testing.T) {
	registry, _ := newTestRegistry(t, baseHosts)

	_, err := registry.List("LibToServe")
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestRegistry_MissingFile(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "nonexistent"))

	_, err := registry.List("")
	assert.ErrorIs(t, err, ErrArtifactUnavailable)

	added, err := registry.Add(context.Background(), "127.0.0.1", "a.local", "", "")
	assert.ErrorIs(t, err, ErrArtifactUnavailable)
	assert.False(t, added)

	removed, err := registry.Remove(context.Background(), "127.0.0.1", "a.local")
	assert.ErrorIs(t, err, ErrArtifactUnavailable)
	assert.False(t, removed)
}

func TestRegistry_MalformedLineIsKept(t *testing.T) {
	content := "127.0.0.1 localhost\nbogus\n"
	registry, hostsPath := newTestRegistry(t, content)

	lines, err := registry.List("")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, Raw{Text: "bogus"}, lines[1])

	added, err := registry.Add(context.Background(), "127.0.0.1", "a.local", "", "")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "127.0.0.1 localhost\nbogus\n127.0.0.1 a.local\n", readFile(t, hostsPath))
}

func TestRegistry_Add_Validation(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, baseHosts)

	_, err := registry.Add(context.Background(), "not-an-ip", "a.local", "", "")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = registry.Add(context.Background(), "127.0.0.1", "bad host", "", "")
	assert.ErrorIs(t, err, ErrInvalidHostname)

	_, err = registry.Add(context.Background(), "127.0.0.1", "-leading.dash", "", "")
	assert.ErrorIs(t, err, ErrInvalidHostname)

	assert.Equal(t, baseHosts, readFile(t, hostsPath))
}

func TestRegistry_Add_Idempotent(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, baseHosts)
	ctx := context.Background()

	added, err := registry.Add(ctx, "127.0.0.1", "blog.local", "blog", "LibToServe")
	require.NoError(t, err)
	assert.True(t, added)
	afterFirst := readFile(t, hostsPath)

	added, err = registry.Add(ctx, "127.0.0.1", "blog.local", "blog", "LibToServe")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, afterFirst, readFile(t, hostsPath))
}

func TestRegistry_Add_ExistingOutsideSection(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, baseHosts)

	added, err := registry.Add(context.Background(), "127.0.0.1", "localhost", "", "LibToServe")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, baseHosts, readFile(t, hostsPath))
}

func TestRegistry_Add_CreatesSectionOnce(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, baseHosts)
	ctx := context.Background()

	added, err := registry.Add(ctx, "127.0.0.1", "a.local", "a", "X")
	require.NoError(t, err)
	require.True(t, added)

	content := readFile(t, hostsPath)
	assert.Equal(t, baseHosts+"## X ##\n127.0.0.1 a.local #a\n## X - End ##\n", content)

	added, err = registry.Add(ctx, "127.0.0.1", "b.local", "b", "X")
	require.NoError(t, err)
	require.True(t, added)

	content = readFile(t, hostsPath)
	assert.Equal(t, 1, strings.Count(content, "## X ##"))
	assert.Equal(t, 1, strings.Count(content, "## X - End ##"))
	assert.Equal(t, baseHosts+"## X ##\n127.0.0.1 a.local #a\n127.0.0.1 b.local #b\n## X - End ##\n", content)
}

func TestRegistry_Add_MalformedSection(t *testing.T) {
	content := baseHosts + "## X ##\n"
	registry, hostsPath := newTestRegistry(t, content)

	added, err := registry.Add(context.Background(), "127.0.0.1", "a.local", "", "X")
	assert.ErrorIs(t, err, ErrMalformedSection)
	assert.False(t, added)
	assert.Equal(t, content, readFile(t, hostsPath))
}

func TestRegistry_AddRemove_Symmetric(t *testing.T) {
	tests := []struct {
		name    string
		content string
		section string
	}{
		{"no section", baseHosts, ""},
		{"existing empty section", baseHosts + "## X ##\n## X - End ##\n", "X"},
		{"existing populated section", baseHosts + "## X ##\n10.0.0.1 db.local #db\n## X - End ##\n", "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, hostsPath := newTestRegistry(t, tt.content)
			ctx := context.Background()

			added, err := registry.Add(ctx, "127.0.0.1", "a.local", "a", tt.section)
			require.NoError(t, err)
			require.True(t, added)
			assert.NotEqual(t, tt.content, readFile(t, hostsPath))

			removed, err := registry.Remove(ctx, "127.0.0.1", "a.local")
			require.NoError(t, err)
			require.True(t, removed)
			assert.Equal(t, tt.content, readFile(t, hostsPath))
		})
	}
}

func TestRegistry_Remove_NoMatch(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, baseHosts)

	removed, err := registry.Remove(context.Background(), "127.0.0.1", "missing.local")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, baseHosts, readFile(t, hostsPath))
}

func TestRegistry_RemoveByComment(t *testing.T) {
	content := baseHosts + "## X ##\n127.0.0.1 a.local #site-a\n127.0.0.1 b.local #site-b\n## X - End ##\n"
	registry, hostsPath := newTestRegistry(t, content)
	ctx := context.Background()

	removed, err := registry.RemoveByComment(ctx, "site-a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, baseHosts+"## X ##\n127.0.0.1 b.local #site-b\n## X - End ##\n", readFile(t, hostsPath))

	removed, err = registry.RemoveByComment(ctx, "site-a")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistry_RemoveByComment_OutsideSectionAndMarker(t *testing.T) {
	content := "127.0.0.1 localhost\n127.0.0.1 moved.local #blog\n"
	registry, hostsPath := newTestRegistry(t, content)

	removed, err := registry.RemoveByComment(context.Background(), "#blog")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "127.0.0.1 localhost\n", readFile(t, hostsPath))
}

func TestRegistry_RemoveByComment_Empty(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, baseHosts)

	removed, err := registry.RemoveByComment(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, baseHosts, readFile(t, hostsPath))
}

func TestRegistry_RemoveByCommentIn(t *testing.T) {
	content := "127.0.0.1 outside.local #blog\n## X ##\n127.0.0.1 blog.local #blog\n## X - End ##\n"
	registry, hostsPath := newTestRegistry(t, content)
	ctx := context.Background()

	removed, err := registry.RemoveByCommentIn(ctx, "X", "blog")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "127.0.0.1 outside.local #blog\n## X ##\n## X - End ##\n", readFile(t, hostsPath))

	removed, err = registry.RemoveByCommentIn(ctx, "Missing", "blog")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistry_RemoveIn(t *testing.T) {
	content := "127.0.0.1 blog.local\n## X ##\n127.0.0.1 blog.local\n## X - End ##\n"
	registry, hostsPath := newTestRegistry(t, content)
	ctx := context.Background()

	removed, err := registry.RemoveIn(ctx, "X", "127.0.0.1", "blog.local")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "127.0.0.1 blog.local\n## X ##\n## X - End ##\n", readFile(t, hostsPath))

	removed, err = registry.RemoveIn(ctx, "Missing", "127.0.0.1", "blog.local")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRegistry_RemoveByCommentIn_Malformed(t *testing.T) {
	registry, _ := newTestRegistry(t, "## X ##\n127.0.0.1 blog.local #blog\n")

	_, err := registry.RemoveByCommentIn(context.Background(), "X", "blog")
	assert.ErrorIs(t, err, ErrMalformedSection)
}

func TestRegistry_EmptyFile(t *testing.T) {
	registry, hostsPath := newTestRegistry(t, "")

	lines, err := registry.List("")
	require.NoError(t, err)
	assert.Empty(t, lines)

	added, err := registry.Add(context.Background(), "127.0.0.1", "blog.local", "blog", "LibToServe")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "## LibToServe ##\n127.0.0.1 blog.local #blog\n## LibToServe - End ##\n", readFile(t, hostsPath))
}

func TestRegistry_PreservesTrailingBlankLines(t *testing.T) {
	content := "127.0.0.1 localhost\n\n"
	registry, hostsPath := newTestRegistry(t, content)

	lines, err := registry.List("")
	require.NoError(t, err)
	require.NoError(t, registry.WriteAll(context.Background(), lines))
	assert.Equal(t, content, readFile(t, hostsPath))
}

type recordingWriter struct {
	calls   int
	content []byte
	err     error
}

func (w *recordingWriter) WriteHosts(_ context.Context, path string, content []byte) error {
	w.calls++
	w.content = content
	if w.err != nil {
		return w.err
	}
	return os.WriteFile(path, content, 0644)
}

func TestRegistry_UsesWriter(t *testing.T) {
	hostsPath := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(hostsPath, []byte(baseHosts), 0644))

	writer := &recordingWriter{}
	registry := NewRegistry(hostsPath, WithWriter(writer))

	_, err := registry.Add(context.Background(), "127.0.0.1", "a.local", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, writer.calls)
	assert.Equal(t, baseHosts+"127.0.0.1 a.local\n", string(writer.content))
}

func TestRegistry_WriterFailure(t *testing.T) {
	hostsPath := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(hostsPath, []byte(baseHosts), 0644))

	writer := &recordingWriter{err: errors.New("permission denied")}
	registry := NewRegistry(hostsPath, WithWriter(writer))

	added, err := registry.Add(context.Background(), "127.0.0.1", "a.local", "", "")
	require.Error(t, err)
	assert.False(t, added)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, baseHosts, readFile(t, hostsPath))
}

func TestRegistry_BacksUpBeforeWrite(t *testing.T) {
	tmpDir := t.TempDir()
	hostsPath := filepath.Join(tmpDir, "hosts")
	backupDir := filepath.Join(tmpDir, "backups")
	require.NoError(t, os.WriteFile(hostsPath, []byte(baseHosts), 0644))

	registry := NewRegistry(hostsPath, WithBackups(NewBackups(backupDir, 5)))

	_, err := registry.Add(context.Background(), "127.0.0.1", "a.local", "", "")
	require.NoError(t, err)

	backups, err := registry.Backups().List()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	content, err := os.ReadFile(filepath.Join(backupDir, backups[0].Name))
	require.NoError(t, err)
	assert.Equal(t, baseHosts, string(content))
}

func BenchmarkRegistry_List(b *testing.B) {
	var content strings.Builder
	content.WriteString(baseHosts)
	content.WriteString("## LibToServe ##\n")
	for i := 0; i < 100; i++ {
		content.WriteString("127.0.0.1 site" + string(rune('a'+i%26)) + ".local #site\n")
	}
	content.WriteString("## LibToServe - End ##\n")

	hostsPath := filepath.Join(b.TempDir(), "hosts")
	require.NoError(b, os.WriteFile(hostsPath, []byte(content.String()), 0644))
	registry := NewRegistry(hostsPath)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = registry.List("LibToServe")
	}
}
