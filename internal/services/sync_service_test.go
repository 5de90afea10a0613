package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shroomify/server/internal/localstore"
	"github.com/shroomify/server/internal/models"
)

// fakeLogRepo is an in-memory LogRepo whose Insert can be told to fail for
// chosen client refs.
type fakeLogRepo struct {
	mu       sync.Mutex
	entries  []*models.LogEntry
	failRefs map[string]bool
	failAll  bool
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{failRefs: make(map[string]bool)}
}

func (f *fakeLogRepo) Insert(ctx context.Context, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failRefs[entry.ClientRef] {
		return errors.New("remote store unavailable")
	}
	for _, e := range f.entries {
		if e.ClientRef == entry.ClientRef {
			return nil
		}
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogRepo) GetByEmail(ctx context.Context, email string) ([]*models.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.LogEntry
	for _, e := range f.entries {
		if e.Email == email {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) GetByID(ctx context.Context, id int64, email string) (*models.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id && e.Email == email {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeLogRepo) Delete(ctx context.Context, id int64, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteLocked(id, email), nil
}

func (f *fakeLogRepo) deleteLocked(id int64, email string) bool {
	for i, e := range f.entries {
		if e.ID == id && e.Email == email {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fakeLogRepo) DeleteMany(ctx context.Context, ids []int64, email string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for _, id := range ids {
		if f.deleteLocked(id, email) {
			removed++
		}
	}
	return removed, nil
}

func (f *fakeLogRepo) GetCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

func newQueueWithRecords(t *testing.T, n int) (*localstore.ScanStore, []*models.ScanRecord) {
	t.Helper()
	store, err := localstore.NewScanStore(t.TempDir())
	require.NoError(t, err)

	records := make([]*models.ScanRecord, 0, n)
	for i := 0; i < n; i++ {
		r, err := models.NewScanRecord(models.ClassHealthy, 0.9, []byte("frame"), "grower@example.com",
			time.Now().Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, store.Append(r))
		records = append(records, r)
	}
	return store, records
}

func TestSyncRunConfirmsAllPending(t *testing.T) {
	store, _ := newQueueWithRecords(t, 3)
	repo := newFakeLogRepo()

	summary := NewSyncService(store, repo, nil, nil).Run(context.Background())

	assert.Equal(t, 3, summary.Confirmed)
	assert.Equal(t, 0, summary.Pending)
	assert.Equal(t, 0, store.PendingCount())
	assert.Len(t, repo.entries, 3)
}

func TestSyncRunToleratesPartialFailure(t *testing.T) {
	store, records := newQueueWithRecords(t, 5)
	repo := newFakeLogRepo()
	repo.failRefs[records[0].ID] = true
	repo.failRefs[records[2].ID] = true
	repo.failRefs[records[4].ID] = true

	summary := NewSyncService(store, repo, nil, nil).Run(context.Background())

	assert.Equal(t, 2, summary.Confirmed)
	assert.Equal(t, 3, summary.Pending)
	assert.Equal(t, 3, store.PendingCount())

	// Exactly the two successes flipped.
	for _, r := range store.List() {
		if repo.failRefs[r.ID] {
			assert.Equal(t, models.SyncPending, r.SyncState)
		} else {
			assert.Equal(t, models.SyncConfirmed, r.SyncState)
		}
	}
}

func TestSyncRetryAfterFailureConfirms(t *testing.T) {
	store, _ := newQueueWithRecords(t, 2)
	repo := newFakeLogRepo()
	repo.failAll = true
	syncService := NewSyncService(store, repo, nil, nil)

	summary := syncService.Run(context.Background())
	assert.Equal(t, 0, summary.Confirmed)
	assert.Equal(t, 2, store.PendingCount())

	repo.failAll = false
	summary = syncService.Run(context.Background())
	assert.Equal(t, 2, summary.Confirmed)
	assert.Equal(t, 0, store.PendingCount())
}

func TestSyncRunSkipsConfirmedRecords(t *testing.T) {
	store, records := newQueueWithRecords(t, 2)
	repo := newFakeLogRepo()
	require.NoError(t, store.MarkConfirmed(records[0].ID))

	summary := NewSyncService(store, repo, nil, nil).Run(context.Background())

	assert.Equal(t, 1, summary.Confirmed)
	assert.Len(t, repo.entries, 1)
}

func TestSyncStatusCountsWithoutNetwork(t *testing.T) {
	store, records := newQueueWithRecords(t, 4)
	require.NoError(t, store.MarkConfirmed(records[1].ID))

	status := NewSyncService(store, newFakeLogRepo(), nil, nil).Status()

	assert.Equal(t, 1, status.Confirmed)
	assert.Equal(t, 3, status.Pending)
}
