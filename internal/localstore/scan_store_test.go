package localstore

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shroomify/server/internal/models"
)

func newTestRecord(t *testing.T, capturedAt time.Time) *models.ScanRecord {
	t.Helper()
	record, err := models.NewScanRecord(models.ClassGreenMold, 0.91, []byte("jpeg-bytes"), "grower@example.com", capturedAt)
	require.NoError(t, err)
	return record
}

func TestScanStoreAppendAndList(t *testing.T) {
	store, err := NewScanStore(t.TempDir())
	require.NoError(t, err)

	record := newTestRecord(t, time.Now())
	require.NoError(t, store.Append(record))

	records := store.List()
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
	assert.Equal(t, models.SyncPending, records[0].SyncState)
	assert.Equal(t, 1, store.PendingCount())
}

func TestScanStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := NewScanStore(dir)
	require.NoError(t, err)

	first := newTestRecord(t, time.Now().Add(-time.Minute))
	second := newTestRecord(t, time.Now())
	require.NoError(t, store.Append(first))
	require.NoError(t, store.Append(second))
	require.NoError(t, store.MarkConfirmed(first.ID))

	reopened, err := NewScanStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, reopened.Count())
	assert.Equal(t, 1, reopened.PendingCount())

	pending := reopened.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
}

func TestScanStoreRetentionKeepsNewest(t *testing.T) {
	store, err := NewScanStore(t.TempDir())
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < RetentionCap+10; i++ {
		require.NoError(t, store.Append(newTestRecord(t, base.Add(time.Duration(i)*time.Second))))
	}

	records := store.List()
	require.Len(t, records, RetentionCap)

	// The ten oldest captures must have been evicted.
	cutoff := base.Add(9 * time.Second)
	for _, r := range records {
		assert.True(t, r.CapturedAt.After(cutoff), "record captured at %v should have been evicted", r.CapturedAt)
	}
}

func TestScanStoreMarkConfirmed(t *testing.T) {
	store, err := NewScanStore(t.TempDir())
	require.NoError(t, err)

	record := newTestRecord(t, time.Now())
	require.NoError(t, store.Append(record))

	require.NoError(t, store.MarkConfirmed(record.ID))
	assert.Equal(t, 0, store.PendingCount())

	// Confirming twice is a no-op, not an error.
	require.NoError(t, store.MarkConfirmed(record.ID))
	assert.Equal(t, 0, store.PendingCount())

	// Unknown ids are ignored so a stale reconciler pass cannot fail the queue.
	require.NoError(t, store.MarkConfirmed("no-such-id"))

	records := store.List()
	require.Len(t, records, 1)
	assert.Equal(t, models.SyncConfirmed, records[0].SyncState)
}

func TestScanStoreDiscardsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, scanFileName), []byte("{not json"), 0o644))

	store, err := NewScanStore(dir)
	require.NoError(t, err)

	assert.Equal(t, 0, store.Count())
	require.NoError(t, store.Append(newTestRecord(t, time.Now())))
	assert.Equal(t, 1, store.Count())
}

func TestScanStoreListReturnsCopies(t *testing.T) {
	store, err := NewScanStore(t.TempDir())
	require.NoError(t, err)

	record := newTestRecord(t, time.Now())
	require.NoError(t, store.Append(record))

	list := store.List()
	list[0] = nil

	require.Len(t, store.List(), 1)
	assert.NotNil(t, store.List()[0])
}

func TestScanStoreAppendRollsBackOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := NewScanStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Append(newTestRecord(t, time.Now())))

	// Removing the directory makes the temp-file write fail.
	require.NoError(t, os.RemoveAll(dir))

	err = store.Append(newTestRecord(t, time.Now()))
	require.Error(t, err)
	assert.Equal(t, 1, store.Count())
}

func TestScanStorePendingCountAcrossMany(t *testing.T) {
	store, err := NewScanStore(t.TempDir())
	require.NoError(t, err)

	var ids []string
	for i := 0; i < 5; i++ {
		r := newTestRecord(t, time.Now().Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, store.Append(r))
		ids = append(ids, r.ID)
	}

	for i, id := range ids {
		if i%2 == 0 {
			require.NoError(t, store.MarkConfirmed(id))
		}
	}

	assert.Equal(t, 2, store.PendingCount(), fmt.Sprintf("ids: %v", ids))
	assert.Equal(t, 5, store.Count())
}
