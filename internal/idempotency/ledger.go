// Package idempotency makes retried commit calls safe no-ops. The ledger maps
// caller-supplied keys to the summary of a previously completed commit; a
// commit presenting a known key short-circuits with the stored summary instead
// of re-executing.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"storegate/pkg/platform/sentinel"
)

// Entry records one completed commit. The key → entry mapping is append-only
// by protocol: callers check Get before Record, and Record never removes
// anything.
type Entry struct {
	Key       string    `json:"key"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
	Summary   string    `json:"summary"`
}

// Ledger is a durable, crash-recoverable key → entry map backed by a single
// JSON file. Every Record rewrites the full snapshot; ledger size is bounded
// by operational volume, not data volume, so log-structured storage would be
// overkill. Exactly one process owns the file; concurrent processes sharing a
// path are out of scope.
type Ledger struct {
	mu      sync.RWMutex
	path    string
	logger  *slog.Logger
	now     func() time.Time
	entries map[string]Entry
}

// Option customizes a Ledger.
type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// Load reads the snapshot at path, treating a missing, corrupt, or unparsable
// file as an empty ledger. The ledger is a convenience against double-commits,
// not the source of truth for platform state, so it fails open on corruption.
func Load(path string, opts ...Option) *Ledger {
	l := &Ledger{
		path:    path,
		logger:  slog.Default(),
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(l)
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l
	}
	if err != nil {
		l.logger.Warn("idempotency ledger unreadable, starting empty", "path", path, "error", err)
		return l
	}

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		l.logger.Warn("idempotency ledger corrupt, starting empty", "path", path, "error", err)
		return l
	}
	for _, e := range entries {
		l.entries[e.Key] = e
	}
	return l
}

// Has reports whether the key has a recorded commit.
func (l *Ledger) Has(_ context.Context, key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[key]
	return ok
}

// Get returns the recorded entry or sentinel.ErrNotFound.
func (l *Ledger) Get(_ context.Context, key string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.entries[key]; ok {
		return e, nil
	}
	return Entry{}, sentinel.ErrNotFound
}

// Record inserts an entry and persists the full snapshot. It does not enforce
// key uniqueness itself; the commit protocol checks Get first, so an overwrite
// here only happens when a caller broke that protocol.
func (l *Ledger) Record(_ context.Context, key, action, summary string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[key] = Entry{
		Key:       key,
		Action:    action,
		CreatedAt: l.now(),
		Summary:   summary,
	}
	return l.persist()
}

// persist rewrites the snapshot via temp-file-and-rename so a crash mid-write
// leaves the previous snapshot intact. Caller holds the write lock.
func (l *Ledger) persist() error {
	entries := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		entries = append(entries, e)
	}

	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write ledger snapshot: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger snapshot: %w", err)
	}
	return nil
}

// Len reports how many commits the ledger remembers.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
