package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is the profile cached by the session gate. It is sourced from the
// remote Users table and treated as read-mostly, refreshed on login.
type User struct {
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	JoinedAt     time.Time `json:"joinedAt"`
	PasswordHash string    `json:"-"`

	// Optional profile fields stored remotely.
	PhoneNumber     string `json:"phoneNumber,omitempty"`
	Favorite        string `json:"favorite,omitempty"`
	ExperienceLevel string `json:"experienceLevel,omitempty"`
}

// UserResponse is the safe response format.
type UserResponse struct {
	Email           string    `json:"email"`
	FullName        string    `json:"fullName"`
	JoinedAt        time.Time `json:"joinedAt"`
	PhoneNumber     string    `json:"phoneNumber,omitempty"`
	Favorite        string    `json:"favorite,omitempty"`
	ExperienceLevel string    `json:"experienceLevel,omitempty"`
}

// NewUser creates a user with a validated email and name.
func NewUser(email, fullName string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	fullName = strings.TrimSpace(fullName)

	if email == "" {
		return nil, ErrEmptyEmail
	}
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if fullName == "" {
		return nil, ErrEmptyName
	}

	return &User{
		Email:    email,
		FullName: fullName,
		JoinedAt: time.Now().UTC(),
	}, nil
}

// ToResponse converts User to UserResponse (safe for API).
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		Email:           u.Email,
		FullName:        u.FullName,
		JoinedAt:        u.JoinedAt,
		PhoneNumber:     u.PhoneNumber,
		Favorite:        u.Favorite,
		ExperienceLevel: u.ExperienceLevel,
	}
}

// SetPassword hashes and sets the user's password using bcrypt (cost 12)
func (u *User) SetPassword(password string) error {
	if len(password) < 6 {
		return ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u.PasswordHash = string(hash)
	return nil
}

// VerifyPassword checks if the provided password matches the hash (constant-time via bcrypt)
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// HasPassword returns false for accounts created through the OAuth provider,
// which carry a null password in the remote store.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// User errors
var (
	ErrEmptyEmail       = UserError{"email cannot be empty"}
	ErrInvalidEmail     = UserError{"email address is not valid"}
	ErrEmptyName        = UserError{"full name cannot be empty"}
	ErrUserNotFound     = UserError{"user not found"}
	ErrEmailExists      = UserError{"email already registered"}
	ErrPasswordTooShort = UserError{"password must be at least 6 characters"}
	ErrInvalidPassword  = UserError{"invalid email or password"}
	ErrOAuthOnlyAccount = UserError{"this account uses provider sign-in; no password is set"}
)

type UserError struct {
	Message string
}

func (e UserError) Error() string {
	return e.Message
}
