package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shroomify/server/internal/middleware"
	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
	"github.com/shroomify/server/internal/services"
)

// AuthHandler exposes registration, login and the session gate
type AuthHandler struct {
	auth    *services.AuthService
	session *services.SessionService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *services.AuthService, session *services.SessionService) *AuthHandler {
	return &AuthHandler{auth: auth, session: session}
}

// SignUp registers a credential account
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req models.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, token, err := h.auth.SignUp(r.Context(), req)
	if err != nil {
		switch err {
		case models.ErrEmptyEmail, models.ErrInvalidEmail, models.ErrEmptyName, models.ErrPasswordTooShort:
			respondError(w, http.StatusBadRequest, err.Error())
		case models.ErrEmailExists:
			respondError(w, http.StatusConflict, err.Error())
		default:
			observability.Errorf("Sign-up failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to create the account.")
		}
		return
	}

	resp := user.ToResponse()
	respondJSON(w, http.StatusCreated, models.SessionResponse{LoggedIn: true, Token: token, User: &resp})
}

// Login verifies credentials and opens a session
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		switch err {
		case models.ErrInvalidPassword:
			respondError(w, http.StatusUnauthorized, err.Error())
		case models.ErrOAuthOnlyAccount:
			respondError(w, http.StatusConflict, err.Error())
		default:
			observability.Errorf("Login failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to log in.")
		}
		return
	}

	resp := user.ToResponse()
	respondJSON(w, http.StatusOK, models.SessionResponse{LoggedIn: true, Token: token, User: &resp})
}

// Logout closes the session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.session.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// Session reports the current session gate state
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user := h.session.Current()
	if user == nil {
		respondJSON(w, http.StatusOK, models.SessionResponse{LoggedIn: false})
		return
	}

	resp := user.ToResponse()
	respondJSON(w, http.StatusOK, models.SessionResponse{LoggedIn: true, Token: h.session.Token(), User: &resp})
}

// AuthEvent consumes an out-of-band identity provider event
func (h *AuthHandler) AuthEvent(w http.ResponseWriter, r *http.Request) {
	var req models.AuthEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	h.session.HandleAuthEvent(req.Event)
	w.WriteHeader(http.StatusNoContent)
}

// OAuthLogin redirects the browser to the provider
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.BeginOAuth()
	if err != nil {
		respondError(w, http.StatusNotImplemented, "Provider sign-in is not configured.")
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// OAuthCallback completes the provider flow
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		respondError(w, http.StatusBadRequest, "Missing state or code.")
		return
	}

	user, token, err := h.auth.CompleteOAuth(r.Context(), state, code)
	if err != nil {
		observability.Errorf("OAuth callback failed: %v", err)
		respondError(w, http.StatusUnauthorized, "Provider sign-in failed.")
		return
	}

	resp := user.ToResponse()
	respondJSON(w, http.StatusOK, models.SessionResponse{LoggedIn: true, Token: token, User: &resp})
}

// Profile returns the logged-in user's profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Session required.")
		return
	}

	respondJSON(w, http.StatusOK, user.ToResponse())
}

// UpdateProfile applies optional profile field updates
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), req)
	if err != nil {
		if err == models.ErrUserNotFound {
			respondError(w, http.StatusUnauthorized, "Session required.")
			return
		}
		observability.Errorf("Profile update failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to update the profile.")
		return
	}

	respondJSON(w, http.StatusOK, user.ToResponse())
}
