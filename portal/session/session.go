// Package session holds the authenticated portal session and its on-disk copy.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSession is returned when no session has been saved
var ErrNoSession = errors.New("not logged in")

// Session is created on login and torn down on logout
type Session struct {
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name,omitempty"`
}

// Valid reports whether the session carries a token that has not expired at now
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Token != "" && now.Before(s.ExpiresAt)
}

// FileStore persists a session as JSON readable only by the current user
type FileStore struct {
	Path string
}

// DefaultPath is <user config dir>/hivedesk/session.json
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "hivedesk", "session.json"), nil
}

func (f FileStore) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Rename(tmp, f.Path)
}

func (f FileStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Clear removes the saved session. Clearing twice is not an error
func (f FileStore) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
