// Package activity records one entry per successful conversational
// exchange and keeps a rolling window of them for admin reports. The log
// lives in memory and mirrors itself to a JSON snapshot on disk so a
// restart does not wipe the reporting window.
package activity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultRetention keeps one week of entries.
const DefaultRetention = 7 * 24 * time.Hour

// Entry is a single logged exchange. ReplyPreview holds only the first
// few dozen runes of the model's reply; full replies stay out of the log
// on purpose.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	UserText     string    `json:"user_text"`
	ReplyPreview string    `json:"reply_preview"`
}

// Log is an append-only, time-bounded activity log. Entries are appended
// in arrival order, so eviction only ever trims a prefix. All methods are
// safe for concurrent use.
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	retention time.Duration
	path      string
	logger    *slog.Logger
}

// NewLog creates a log retaining entries for the given window and, when
// path is non-empty, loads the previous snapshot from it. A missing or
// unreadable snapshot starts the log empty; the bot must come up either
// way.
func NewLog(path string, retention time.Duration, logger *slog.Logger) *Log {
	if retention <= 0 {
		retention = DefaultRetention
	}
	l := &Log{
		retention: retention,
		path:      path,
		logger:    logger.With("component", "activity"),
	}
	l.load()
	return l
}

// Append adds an entry and evicts everything that has aged out of the
// retention window. A zero Timestamp is stamped with the current time.
// The snapshot write is best effort: a failure is logged and the entry
// stays in memory regardless.
func (l *Log) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, e)
	l.evict(time.Now())
	if err := l.snapshot(); err != nil {
		l.logger.Warn("activity snapshot failed", "path", l.path, "error", err)
	}
}

// EntriesSince returns a copy of all entries stamped at or after cutoff,
// oldest first.
func (l *Log) EntriesSince(cutoff time.Time) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := 0
	for i < len(l.entries) && l.entries[i].Timestamp.Before(cutoff) {
		i++
	}
	out := make([]Entry, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}

// Len reports how many entries are currently retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// evict drops entries older than the retention window. Callers hold l.mu.
func (l *Log) evict(now time.Time) {
	cutoff := now.Add(-l.retention)
	i := 0
	for i < len(l.entries) && l.entries[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.entries = append([]Entry(nil), l.entries[i:]...)
	}
}

// load reads the snapshot file into memory. Callers do not hold l.mu;
// load runs once from NewLog before the log is shared.
func (l *Log) load() {
	if l.path == "" {
		return
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("activity snapshot unreadable, starting empty", "path", l.path, "error", err)
		}
		return
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Warn("activity snapshot malformed, starting empty", "path", l.path, "error", err)
		return
	}
	l.entries = entries
	l.evict(time.Now())
	l.logger.Info("activity snapshot loaded", "path", l.path, "entries", len(l.entries))
}

// snapshot rewrites the snapshot file from the current entries. Callers
// hold l.mu.
func (l *Log) snapshot() error {
	if l.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}
	return writeFileAtomic(l.path, data, 0600)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a half-written
// snapshot.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmpName, path)
}
