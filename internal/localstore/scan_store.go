// Package localstore owns the gateway's durable local state: the bounded
// queue of scan records awaiting remote confirmation and the cached session.
// Both are JSON files; corruption on load is self-healing and never fatal.
package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

// RetentionCap bounds the local scan collection. Once exceeded, the oldest
// records by capture time are evicted regardless of sync state.
const RetentionCap = 50

const scanFileName = "scans.json"

// scanEnvelope is the on-disk format, versioned so later formats can migrate.
type scanEnvelope struct {
	Version int                  `json:"version"`
	Records []*models.ScanRecord `json:"records"`
}

// ScanStore is the durable local queue of scan records. Every mutating
// operation is atomic with respect to the backing file: a single mutex
// serializes the read-modify-write cycle.
type ScanStore struct {
	mu      sync.Mutex
	path    string
	records []*models.ScanRecord
}

// NewScanStore loads (or initializes) the scan queue under dir.
// A corrupt or unreadable file is discarded and treated as an empty queue.
func NewScanStore(dir string) (*ScanStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local store dir: %w", err)
	}

	s := &ScanStore{path: filepath.Join(dir, scanFileName)}
	s.records = s.load()
	return s, nil
}

func (s *ScanStore) load() []*models.ScanRecord {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var env scanEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		observability.Warnf("Discarding corrupt scan store %s: %v", s.path, err)
		os.Remove(s.path)
		return nil
	}

	records := env.Records[:0]
	for _, r := range env.Records {
		if r != nil && r.ID != "" {
			records = append(records, r)
		}
	}
	return records
}

// Append inserts a new pending record and persists the full collection.
// A storage failure propagates to the caller: the record is then not
// considered durably saved. The retention cap is enforced after the insert.
func (s *ScanStore) Append(record *models.ScanRecord) error {
	if record == nil {
		return models.ErrRecordNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.records
	s.records = append(append([]*models.ScanRecord{}, s.records...), record)
	s.evictLocked()

	if err := s.persistLocked(); err != nil {
		// Roll back the in-memory insert so state matches disk.
		s.records = prev
		return err
	}
	return nil
}

// List returns a snapshot of all records in insertion order.
func (s *ScanStore) List() []*models.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.ScanRecord, len(s.records))
	for i, r := range s.records {
		cp := *r
		out[i] = &cp
	}
	return out
}

// ListPending returns all records still awaiting remote confirmation,
// in insertion order.
func (s *ScanStore) ListPending() []*models.ScanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.ScanRecord
	for _, r := range s.records {
		if r.SyncState == models.SyncPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

// PendingCount returns the number of unconfirmed records.
func (s *ScanStore) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.records {
		if r.SyncState == models.SyncPending {
			n++
		}
	}
	return n
}

// Count returns the total number of retained records.
func (s *ScanStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// MarkConfirmed flips a record to confirmed and persists the collection.
// It is idempotent, never reverts a confirmed record, and is a no-op
// (not an error) when the id has already been evicted.
func (s *ScanStore) MarkConfirmed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID != id {
			continue
		}
		if r.SyncState == models.SyncConfirmed {
			return nil
		}
		r.SyncState = models.SyncConfirmed
		return s.persistLocked()
	}
	return nil
}

// evictLocked drops the oldest records by capture time until the cap holds.
func (s *ScanStore) evictLocked() {
	if len(s.records) <= RetentionCap {
		return
	}

	sorted := make([]*models.ScanRecord, len(s.records))
	copy(sorted, s.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CapturedAt.Before(sorted[j].CapturedAt)
	})

	evict := make(map[string]bool, len(s.records)-RetentionCap)
	for _, r := range sorted[:len(s.records)-RetentionCap] {
		evict[r.ID] = true
	}

	kept := make([]*models.ScanRecord, 0, RetentionCap)
	for _, r := range s.records {
		if !evict[r.ID] {
			kept = append(kept, r)
		}
	}
	s.records = kept
}

// persistLocked writes the full collection via a temp file and rename so a
// crash mid-write cannot leave a truncated store behind.
func (s *ScanStore) persistLocked() error {
	data, err := json.Marshal(scanEnvelope{Version: 1, Records: s.records})
	if err != nil {
		return fmt.Errorf("failed to encode scan store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write scan store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace scan store: %w", err)
	}
	return nil
}
