// Package creds persists the session token across process restarts.
// The token is the only durable credential: a single string entry that
// survives until explicit logout or manual clearing.
package creds

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the durable credential store owned by the state layer.
type Store interface {
	// Token returns the persisted token and whether one is present.
	Token() (string, bool)
	// Save replaces the persisted token.
	Save(token string) error
	// Clear removes the persisted token. Clearing an absent token is not an error.
	Clear() error
}

// FileStore keeps the token in a 0600 file under the profile directory.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Token reads the persisted token. A missing or empty file means no token.
func (s *FileStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Save writes the token, creating the parent directory as needed.
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token == "" {
		return fmt.Errorf("refusing to save empty token")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes the token file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu    sync.Mutex
	token string
}

func (s *MemStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *MemStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
