package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/repository"
)

const oauthStateTTL = 10 * time.Minute

// googleUserInfoURL serves the profile claims for an exchanged token.
const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// AuthService owns account registration, credential login and the OAuth
// redirect flow, delegating session state to the gate.
type AuthService struct {
	users   repository.UserRepo
	session *SessionService
	oauth   *oauth2.Config
	metrics *observability.ScanMetrics

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthService creates an AuthService. oauth may be nil when no provider
// is configured; metrics may be nil.
func NewAuthService(users repository.UserRepo, session *SessionService, oauth *oauth2.Config, metrics *observability.ScanMetrics) *AuthService {
	return &AuthService{
		users:   users,
		session: session,
		oauth:   oauth,
		metrics: metrics,
		states:  make(map[string]time.Time),
	}
}

// SignUp registers a credential account and opens a session for it.
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthService", "SignUp")
	defer span.End()

	user, err := models.NewUser(req.Email, req.FullName)
	if err != nil {
		return nil, "", err
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, "", err
	}

	existing, err := s.users.GetByEmail(ctx, user.Email)
	if err != nil {
		observability.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, "", models.ErrEmailExists
	}

	if err := s.users.Add(ctx, user); err != nil {
		observability.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.session.Login(user)
	if err != nil {
		return nil, "", err
	}

	s.recordAttempt(ctx, "signup", true)
	observability.SetSuccess(span)
	return user, token, nil
}

// Login verifies credentials and opens a session. Accounts created through
// the OAuth provider carry no password and are rejected with a dedicated
// error so the UI can steer the user to provider sign-in.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthService", "Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		observability.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to look up account: %w", err)
	}
	if user == nil {
		s.recordAttempt(ctx, "password", false)
		return nil, "", models.ErrInvalidPassword
	}
	if !user.HasPassword() {
		s.recordAttempt(ctx, "password", false)
		return nil, "", models.ErrOAuthOnlyAccount
	}
	if !user.VerifyPassword(req.Password) {
		s.recordAttempt(ctx, "password", false)
		return nil, "", models.ErrInvalidPassword
	}

	token, err := s.session.Login(user)
	if err != nil {
		return nil, "", err
	}

	s.recordAttempt(ctx, "password", true)
	observability.SetSuccess(span)
	return user, token, nil
}

// OAuthEnabled reports whether a provider is configured.
func (s *AuthService) OAuthEnabled() bool {
	return s.oauth != nil
}

// BeginOAuth returns the provider redirect URL for a fresh state value.
func (s *AuthService) BeginOAuth() (string, error) {
	if s.oauth == nil {
		return "", fmt.Errorf("no OAuth provider configured")
	}

	state := uuid.New().String()

	s.mu.Lock()
	s.pruneStatesLocked()
	s.states[state] = time.Now().Add(oauthStateTTL)
	s.mu.Unlock()

	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// CompleteOAuth exchanges the callback code, loads the provider profile and
// opens a session, creating the account on first sign-in.
func (s *AuthService) CompleteOAuth(ctx context.Context, state, code string) (*models.User, string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AuthService", "CompleteOAuth")
	defer span.End()

	if s.oauth == nil {
		return nil, "", fmt.Errorf("no OAuth provider configured")
	}
	if !s.consumeState(state) {
		s.recordAttempt(ctx, "oauth", false)
		return nil, "", fmt.Errorf("unknown or expired OAuth state")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		observability.RecordError(span, err)
		s.recordAttempt(ctx, "oauth", false)
		return nil, "", fmt.Errorf("code exchange failed: %w", err)
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		observability.RecordError(span, err)
		s.recordAttempt(ctx, "oauth", false)
		return nil, "", err
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err != nil {
		observability.RecordError(span, err)
		return nil, "", fmt.Errorf("failed to look up account: %w", err)
	}
	if user == nil {
		// First provider sign-in creates the account with a null password.
		user, err = models.NewUser(profile.Email, profile.Name)
		if err != nil {
			return nil, "", err
		}
		if err := s.users.Add(ctx, user); err != nil {
			observability.RecordError(span, err)
			return nil, "", fmt.Errorf("failed to create account: %w", err)
		}
	}

	sessionToken, err := s.session.Login(user)
	if err != nil {
		return nil, "", err
	}

	s.recordAttempt(ctx, "oauth", true)
	observability.SetSuccess(span)
	return user, sessionToken, nil
}

// UpdateProfile applies optional profile fields for the logged-in user and
// refreshes the session cache.
func (s *AuthService) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	user := s.session.Current()
	if user == nil {
		return nil, models.ErrUserNotFound
	}

	updated := *user
	if req.PhoneNumber != nil {
		updated.PhoneNumber = *req.PhoneNumber
	}
	if req.Favorite != nil {
		updated.Favorite = *req.Favorite
	}
	if req.ExperienceLevel != nil {
		updated.ExperienceLevel = *req.ExperienceLevel
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		return nil, err
	}
	if err := s.session.UpdateUser(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

type oauthProfile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *AuthService) fetchProfile(ctx context.Context, token *oauth2.Token) (*oauthProfile, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("profile fetch returned status %d", resp.StatusCode)
	}

	var profile oauthProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("profile response is not valid JSON: %w", err)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("provider returned no email claim")
	}
	if profile.Name == "" {
		profile.Name = profile.Email
	}
	return &profile, nil
}

func (s *AuthService) consumeState(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Now().Before(expiry)
}

func (s *AuthService) pruneStatesLocked() {
	now := time.Now()
	for state, expiry := range s.states {
		if now.After(expiry) {
			delete(s.states, state)
		}
	}
}

func (s *AuthService) recordAttempt(ctx context.Context, method string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordAuthAttempt(ctx, method, success)
	}
}
