package models

import "time"

// ErrorResponse is the standard error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by the health check endpoint
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// SaveScanRequest is the request body for persisting an individual scan result.
type SaveScanRequest struct {
	Prediction int     `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Image      string  `json:"image"` // base64
}

// SaveScanResult reports where a saved scan currently lives.
type SaveScanResult struct {
	ID        string    `json:"id"`
	SyncState SyncState `json:"syncState"`
	Message   string    `json:"message"`
}

// SyncSummary aggregates one reconciler pass for user-facing feedback.
type SyncSummary struct {
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
}

// BatchStateResponse is a snapshot of the batch session.
type BatchStateResponse struct {
	Mode         ScanMode      `json:"mode"`
	Queued       []BatchItem   `json:"queued"`
	Healthy      []BatchResult `json:"healthy"`
	Contaminated []BatchResult `json:"contaminated"`
}

// BatchEnqueueResult is returned immediately on enqueue, before classification.
type BatchEnqueueResult struct {
	ID    string         `json:"id"`
	State BatchItemState `json:"state"`
}

// BatchSaveSummary reports the outcome of saving all bucketed results.
type BatchSaveSummary struct {
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

// SignUpRequest is the request body for credential registration.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// LoginRequest is the request body for credential login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse describes the current session gate state.
type SessionResponse struct {
	LoggedIn bool          `json:"loggedIn"`
	Token    string        `json:"token,omitempty"`
	User     *UserResponse `json:"user,omitempty"`
}

// AuthEventRequest carries an out-of-band event from the identity provider.
type AuthEventRequest struct {
	Event string `json:"event"`
}

// UpdateProfileRequest carries optional profile field updates.
type UpdateProfileRequest struct {
	PhoneNumber     *string `json:"phoneNumber,omitempty"`
	Favorite        *string `json:"favorite,omitempty"`
	ExperienceLevel *string `json:"experienceLevel,omitempty"`
}

// HistoryEntry is one decoded history row for the UI.
type HistoryEntry struct {
	ID              int64     `json:"id"`
	DateLogged      time.Time `json:"dateLogged"`
	DetectedDisease int       `json:"detectedDisease"`
	Confidence      float64   `json:"confidence"`
	HasImage        bool      `json:"hasImage"`
}

// BulkDeleteRequest selects history rows for deletion.
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}
