package services

import (
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"

	"github.com/shroomify/server/internal/localstore"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// AuthEventSignedOut is the out-of-band sign-out event emitted by the
// identity provider.
const AuthEventSignedOut = "SIGNED_OUT"

// SessionService is the single source of truth for whether a user is
// authenticated. Persistence and batch mode are gated on it.
type SessionService struct {
	store *localstore.SessionStore

	mu        sync.RWMutex
	user      *models.User
	token     string
	listeners []func(authenticated bool)
}

// NewSessionService creates a SessionService backed by the given cache.
func NewSessionService(store *localstore.SessionStore) *SessionService {
	return &SessionService{store: store}
}

// Login establishes an authenticated session and persists the cache.
func (s *SessionService) Login(user *models.User) (string, error) {
	if err := s.store.Save(user); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.user = user
	s.token = uuid.New().String()
	token := s.token
	s.mu.Unlock()

	observability.WithField("email", user.Email).Info("Session opened")
	s.notify(true)
	return token, nil
}

// Logout clears the session and its durable cache.
func (s *SessionService) Logout() {
	s.store.Clear()

	s.mu.Lock()
	wasAuthenticated := s.user != nil
	s.user = nil
	s.token = ""
	s.mu.Unlock()

	if wasAuthenticated {
		observability.Info("Session closed")
		s.notify(false)
	}
}

// Restore hydrates the session from the durable cache at startup. A corrupt
// or absent cache leaves the gate logged out.
func (s *SessionService) Restore() {
	user := s.store.Load()
	if user == nil {
		return
	}

	s.mu.Lock()
	s.user = user
	s.token = uuid.New().String()
	s.mu.Unlock()

	observability.WithField("email", user.Email).Info("Session restored")
	s.notify(true)
}

// UpdateUser refreshes the cached profile for the logged-in user without
// rotating the session token.
func (s *SessionService) UpdateUser(user *models.User) error {
	if err := s.store.Save(user); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return nil
}

// Current returns the logged-in user, or nil.
func (s *SessionService) Current() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated reports whether a user is logged in.
func (s *SessionService) Authenticated() bool {
	return s.Current() != nil
}

// Token returns the current session token, or empty when logged out.
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ValidateToken checks a presented bearer token against the session.
func (s *SessionService) ValidateToken(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) == 1
}

// OnChange registers a listener invoked after every authentication state
// change. Listeners run synchronously on the mutating goroutine.
func (s *SessionService) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// HandleAuthEvent reacts to events pushed by the identity provider.
func (s *SessionService) HandleAuthEvent(event string) {
	if event == AuthEventSignedOut {
		observability.Info("Identity provider reported sign-out")
		s.Logout()
	}
}

func (s *SessionService) notify(authenticated bool) {
	s.mu.RLock()
	listeners := make([]func(bool), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(authenticated)
	}
}
