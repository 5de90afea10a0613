package models

import "time"

// LogEntry is a row in the remote Logs table. ClientRef carries the scan
// record's locally generated id so a sync retry after a lost acknowledgment
// cannot create a duplicate row.
type LogEntry struct {
	ID              int64     `json:"id"`
	ClientRef       string    `json:"clientRef"`
	DateLogged      time.Time `json:"dateLogged"`
	Image           []byte    `json:"-"`
	DetectedDisease int       `json:"detectedDisease"`
	Email           string    `json:"email"`
	Confidence      float64   `json:"confidence"`
}

// LogFromScan builds the remote row for a locally saved scan record.
func LogFromScan(r *ScanRecord) *LogEntry {
	return &LogEntry{
		ClientRef:       r.ID,
		DateLogged:      r.CapturedAt,
		Image:           r.ImageData,
		DetectedDisease: r.Classification,
		Email:           r.OwnerEmail,
		Confidence:      r.Confidence,
	}
}
