package session

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// authFlagValue mirrors the literal flag the web client keeps in browser
// storage; anything else in the auth slot means "not authenticated".
const authFlagValue = "authenticated"

// fileState is the on-disk layout: two flat string values.
type fileState struct {
	Auth     string `json:"auth"`
	Username string `json:"username"`
}

// FileStore persists the session as a small JSON file, the CLI analogue of
// browser-local storage.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Session{}
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return Session{}
	}
	if st.Auth != authFlagValue || st.Username == "" {
		return Session{}
	}
	return Session{Authenticated: true, Username: st.Username}
}

func (s *FileStore) Save(sess Session) error {
	if !sess.Authenticated {
		return s.Clear()
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(fileState{Auth: authFlagValue, Username: sess.Username})
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore is an in-memory Store for tests and embedding.
type MemStore struct {
	mu   sync.Mutex
	sess Session
	set  bool
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Load() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Session{}
	}
	return s.sess
}

func (s *MemStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess
	s.set = true
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = Session{}
	s.set = false
	return nil
}
