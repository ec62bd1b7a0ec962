// Package audit appends a JSON line for every change localserve makes.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the audit log's name inside the config directory.
const FileName = "audit.log"

// Logger writes audit entries.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	encoder *json.Encoder
	uid     int
	now     func() time.Time
}

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"timestamp"`
	UID       int    `json:"uid"`
	Action    string `json:"action"`
	Site      string `json:"site,omitempty"`
	Hostname  string `json:"hostname,omitempty"`
	Details   any    `json:"details,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Open opens the audit log at path for appending, creating it if needed.
func Open(path string) (*Logger, error) {
	// #nosec G301 - Log directory permissions are intentionally 0755
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// #nosec G302,G304 - Path comes from the user's own config directory
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &Logger{
		file:    file,
		path:    path,
		encoder: json.NewEncoder(file),
		uid:     os.Getuid(),
		now:     time.Now,
	}, nil
}

// Path returns the log file path.
func (a *Logger) Path() string {
	return a.path
}

// Log writes an audit entry. A nil err records success.
func (a *Logger) Log(action, site, hostname string, details any, err error) {
	if a == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return
	}

	entry := Entry{
		Timestamp: a.now().UTC().Format(time.RFC3339),
		UID:       a.uid,
		Action:    action,
		Site:      site,
		Hostname:  hostname,
		Details:   details,
		Success:   err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	// Audit logging must never fail the operation it records.
	_ = a.encoder.Encode(entry)
}

// Close closes the audit logger.
func (a *Logger) Close() error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}
