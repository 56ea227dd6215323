// Package session owns the durable anonymous client identifier that keys
// usage in the quota ledger.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tradux/tradux/internal/files"
	"github.com/tradux/tradux/internal/logger"
)

// Store lazily creates and then only reads the session id file at Path.
type Store struct {
	path string

	mu sync.Mutex
	id string
}

// NewStore returns a store backed by path. Nothing touches the disk until
// ID is first called.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// ID returns the session id, creating and persisting a random UUID on first
// use. Concurrent processes converge on whichever id was published first.
// A corrupt file is reported rather than replaced.
func (s *Store) ID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		return s.id, nil
	}

	id, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		id, err = s.create()
	}
	if err != nil {
		return "", err
	}
	s.id = id
	return id, nil
}

// Exists reports whether a session id has been persisted.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *Store) read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(string(data))
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("session file %s is corrupt: %w", s.path, err)
	}
	return id.String(), nil
}

func (s *Store) create() (string, error) {
	id := uuid.NewString()
	err := files.CreateExclusive(s.path, []byte(id+"\n"), 0o600)
	if errors.Is(err, os.ErrExist) {
		// Another process published first; adopt its id.
		return s.read()
	}
	if err != nil {
		return "", fmt.Errorf("persist session id: %w", err)
	}
	logger.Info("Created client session", "session_id", id, "path", s.path)
	return id, nil
}
