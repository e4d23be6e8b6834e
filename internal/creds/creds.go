package creds

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Credentials is the durable session identity: the auth token plus the two
// user fields the client needs before any roster data is loaded. If any of
// the three is missing the client is unauthenticated.
type Credentials struct {
	Token    string `toml:"token"`
	UserID   string `toml:"user_id"`
	Username string `toml:"username"`
}

// Complete reports whether all three entries are present.
func (c *Credentials) Complete() bool {
	return c != nil && c.Token != "" && c.UserID != "" && c.Username != ""
}

// Store persists credentials to a toml file. It is the durable backing for
// the in-memory session; it survives restarts the way the browser client's
// localStorage survives reloads.
type Store struct {
	mu   sync.RWMutex
	path string
}

// NewStore creates a credential store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the stored credentials. The second return value is false when
// the file is missing or the credentials are incomplete.
func (s *Store) Load() (*Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Credentials
	if _, err := toml.DecodeFile(s.path, &c); err != nil {
		return nil, false
	}
	if !c.Complete() {
		return nil, false
	}
	return &c, true
}

// Token returns the stored token, or "" when unauthenticated.
func (s *Store) Token() string {
	c, ok := s.Load()
	if !ok {
		return ""
	}
	return c.Token
}

// UserID returns the stored user id, or "" when unauthenticated.
func (s *Store) UserID() string {
	c, ok := s.Load()
	if !ok {
		return ""
	}
	return c.UserID
}

// Save writes credentials with 0600 permissions.
func (s *Store) Save(c *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(c)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Clear removes the stored credentials. Missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
