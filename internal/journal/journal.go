// internal/journal/journal.go
//
// User-visible activity journal. Coordinators record staffing actions here
// (assignment created, status rolled back, metadata retried); the TUI shows
// the most recent entries in its log panel. Entries are mirrored to disk so
// a session can be reconstructed after the fact.

package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const ringSize = 200

// Journal keeps an in-memory ring of recent entries and appends each one to
// a text file.
type Journal struct {
	mu      sync.Mutex
	path    string
	entries []string
}

// New creates a journal that writes to the provided path.
func New(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &Journal{path: path}, nil
}

// Path returns the file backing this journal.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Append records a single entry.
func (j *Journal) Append(level Level, message string) {
	if j == nil {
		return
	}
	line := fmt.Sprintf("%s %-5s %s",
		time.Now().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	j.mu.Lock()
	j.entries = append(j.entries, line)
	if len(j.entries) > ringSize {
		j.entries = j.entries[len(j.entries)-ringSize:]
	}
	j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line + "\n")
}

// Tail returns up to maxLines of the most recent entries, oldest first.
func (j *Journal) Tail(maxLines int) []string {
	if j == nil || maxLines <= 0 {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return nil
	}
	start := 0
	if len(j.entries) > maxLines {
		start = len(j.entries) - maxLines
	}
	out := make([]string, len(j.entries)-start)
	copy(out, j.entries[start:])
	return out
}

// Info appends an informational entry.
func (j *Journal) Info(format string, args ...any) {
	j.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (j *Journal) Warn(format string, args ...any) {
	j.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (j *Journal) Error(format string, args ...any) {
	j.Append(LevelError, fmt.Sprintf(format, args...))
}
