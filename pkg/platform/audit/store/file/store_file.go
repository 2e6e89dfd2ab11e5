// Package file appends audit events to a local JSONL file, one event per
// line. The file is the reference deployment's audit sink; a single process
// owns it, so no file locking is taken.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	audit "storegate/pkg/platform/audit"
)

type Store struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates or appends to the JSONL file at path.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &Store{file: f}, nil
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
