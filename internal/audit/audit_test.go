package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	return entries
}

func TestLogger_Log(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), FileName)

	logger, err := Open(logPath)
	require.NoError(t, err)
	logger.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	logger.Log("create", "blog", "blog.local", map[string]string{"type": "php"}, nil)
	logger.Log("destroy", "api", "api.local", nil, errors.New("permission denied"))
	require.NoError(t, logger.Close())

	entries := readEntries(t, logPath)
	require.Len(t, entries, 2)

	assert.Equal(t, "2024-05-01T12:00:00Z", entries[0].Timestamp)
	assert.Equal(t, "create", entries[0].Action)
	assert.Equal(t, "blog", entries[0].Site)
	assert.Equal(t, "blog.local", entries[0].Hostname)
	assert.True(t, entries[0].Success)
	assert.Empty(t, entries[0].Error)
	assert.Equal(t, os.Getuid(), entries[0].UID)

	assert.False(t, entries[1].Success)
	assert.Equal(t, "permission denied", entries[1].Error)
}

func TestLogger_Appends(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), FileName)

	for i := 0; i < 2; i++ {
		logger, err := Open(logPath)
		require.NoError(t, err)
		logger.Log("enable", "blog", "blog.local", nil, nil)
		require.NoError(t, logger.Close())
	}

	assert.Len(t, readEntries(t, logPath), 2)
}

func TestLogger_CreatesDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", FileName)

	logger, err := Open(logPath)
	require.NoError(t, err)
	defer logger.Close()

	assert.Equal(t, logPath, logger.Path())
	assert.FileExists(t, logPath)
}

func TestLogger_CloseTwiceAndLogAfterClose(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), FileName)
	logger, err := Open(logPath)
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
	logger.Log("create", "a", "a.local", nil, nil)

	assert.Empty(t, readEntries(t, logPath))
}

func TestLogger_Nil(t *testing.T) {
	var logger *Logger
	logger.Log("create", "a", "a.local", nil, nil)
	assert.NoError(t, logger.Close())
}

func BenchmarkLogger_Log(b *testing.B) {
	logger, err := Open(filepath.Join(b.TempDir(), FileName))
	require.NoError(b, err)
	defer logger.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Log("enable", "blog", "blog.local", nil, nil)
	}
}
