package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shroomify/server/internal/models"
	"github.com/shroomify/server/internal/observability"
)

func newTestDB(t *testing.T) *observability.TraceDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return observability.NewTraceDB(db)
}

func seedUser(t *testing.T, db *observability.TraceDB, email string) {
	t.Helper()
	user, err := models.NewUser(email, "Test Grower")
	require.NoError(t, err)
	require.NoError(t, NewUserRepository(db).Add(context.Background(), user))
}

func newTestEntry(email string) *models.LogEntry {
	record, _ := models.NewScanRecord(models.ClassBlackMold, 0.87, []byte{0xFF, 0xD8, 0xFF}, email, time.Now().UTC())
	return models.LogFromScan(record)
}

func TestLogRepositoryInsertIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "grower@example.com")
	repo := NewLogRepository(db)
	ctx := context.Background()

	entry := newTestEntry("grower@example.com")
	require.NoError(t, repo.Insert(ctx, entry))

	// A retry after a lost acknowledgment reuses the same client ref and
	// must not create a second row.
	require.NoError(t, repo.Insert(ctx, entry))

	count, err := repo.GetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLogRepositoryGetByEmail(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "grower@example.com")
	seedUser(t, db, "other@example.com")
	repo := NewLogRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestEntry("grower@example.com")))
	require.NoError(t, repo.Insert(ctx, newTestEntry("grower@example.com")))
	require.NoError(t, repo.Insert(ctx, newTestEntry("other@example.com")))

	entries, err := repo.GetByEmail(ctx, "grower@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "grower@example.com", e.Email)
		assert.Equal(t, models.ClassBlackMold, e.DetectedDisease)
		assert.NotEmpty(t, e.Image)
	}
}

func TestLogRepositoryDeleteScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "grower@example.com")
	repo := NewLogRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newTestEntry("grower@example.com")))
	entries, err := repo.GetByEmail(ctx, "grower@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	deleted, err := repo.Delete(ctx, entries[0].ID, "someone-else@example.com")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.Delete(ctx, entries[0].ID, "grower@example.com")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestLogRepositoryDeleteMany(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, "grower@example.com")
	repo := NewLogRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, newTestEntry("grower@example.com")))
	}

	entries, err := repo.GetByEmail(ctx, "grower@example.com")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	removed, err := repo.DeleteMany(ctx, []int64{entries[0].ID, entries[1].ID, 9999}, "grower@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = repo.DeleteMany(ctx, nil, "grower@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestUserRepositoryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := models.NewUser("grower@example.com", "Pat Grower")
	require.NoError(t, err)
	require.NoError(t, user.SetPassword("secret6"))
	require.NoError(t, repo.Add(ctx, user))

	loaded, err := repo.GetByEmail(ctx, "grower@example.com")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Pat Grower", loaded.FullName)
	assert.True(t, loaded.VerifyPassword("secret6"))

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepositoryOAuthNullPassword(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := models.NewUser("oauth@example.com", "OAuth Grower")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, user))

	loaded, err := repo.GetByEmail(ctx, "oauth@example.com")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.False(t, loaded.HasPassword())
}

func TestUserRepositoryUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user, err := models.NewUser("grower@example.com", "Pat Grower")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, user))

	user.PhoneNumber = "555-0101"
	user.Favorite = "oyster"
	user.ExperienceLevel = "intermediate"
	require.NoError(t, repo.Update(ctx, user))

	loaded, err := repo.GetByEmail(ctx, "grower@example.com")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "555-0101", loaded.PhoneNumber)
	assert.Equal(t, "oyster", loaded.Favorite)
	assert.Equal(t, "intermediate", loaded.ExperienceLevel)

	ghost, err := models.NewUser("ghost@example.com", "Ghost")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Update(ctx, ghost), models.ErrUserNotFound)
}

func TestUserRepositoryUpdateScopedToEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	first, err := models.NewUser("a@example.com", "Avery")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, first))

	second, err := models.NewUser("b@example.com", "Blair")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, second))

	first.PhoneNumber = "555-0202"
	require.NoError(t, repo.Update(ctx, first))

	loaded, err := repo.GetByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded.PhoneNumber)
	assert.Equal(t, "Blair", loaded.FullName)
}
