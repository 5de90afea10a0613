package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

const sessionFileName = "session.json"

// sessionEnvelope caches the signed-in user and a login flag across restarts.
type sessionEnvelope struct {
	Version  int          `json:"version"`
	LoggedIn bool         `json:"loggedIn"`
	User     *models.User `json:"user,omitempty"`
}

// SessionStore persists the session gate's cache. Like the scan store, a
// corrupt file is discarded and read back as "logged out".
type SessionStore struct {
	path string
}

// NewSessionStore initializes the session cache under dir.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local store dir: %w", err)
	}
	return &SessionStore{path: filepath.Join(dir, sessionFileName)}, nil
}

// Save persists the authenticated user.
func (s *SessionStore) Save(user *models.User) error {
	data, err := json.Marshal(sessionEnvelope{Version: 1, LoggedIn: true, User: user})
	if err != nil {
		return fmt.Errorf("failed to encode session cache: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session cache: %w", err)
	}
	return nil
}

// Load returns the cached user, or nil when there is no valid session.
// Invalid or corrupt cache content is cleared, never surfaced as an error.
func (s *SessionStore) Load() *models.User {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		observability.Warnf("Discarding corrupt session cache %s: %v", s.path, err)
		os.Remove(s.path)
		return nil
	}
	if !env.LoggedIn || env.User == nil || env.User.Email == "" {
		return nil
	}
	return env.User
}

// Clear removes the cached session.
func (s *SessionStore) Clear() {
	os.Remove(s.path)
}
