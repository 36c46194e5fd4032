package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdigest/ingest/domains/group"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

func TestGroupUpsertActive_Idempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupGormRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	first, err := repo.UpsertActive(ctx, "inst1", "123@g.us", group.PlaceholderName, now)
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, group.PlaceholderName, first.Name)

	// Same chat activated again collapses into the same row.
	second, err := repo.UpsertActive(ctx, "inst1", "123@g.us", group.PlaceholderName, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&groupModel{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGroupUpsertActive_KeepsExistingName(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupGormRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertMetadata(ctx, "inst1", "123@g.us", "Vendas SP"))

	activated, err := repo.UpsertActive(ctx, "inst1", "123@g.us", group.PlaceholderName, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.Equal(t, "Vendas SP", activated.Name, "activation must not clobber a known subject")
}

func TestGroupUpsertMetadata_NeverActivates(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupGormRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertMetadata(ctx, "inst1", "123@g.us", "Vendas SP"))
	created, err := repo.GetByJID(ctx, "123@g.us")
	require.NoError(t, err)
	assert.False(t, created.IsActive)

	// Metadata refresh on an active group leaves it active.
	_, err = repo.UpsertActive(ctx, "inst1", "123@g.us", created.Name, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, repo.UpsertMetadata(ctx, "inst1", "123@g.us", "Vendas SP v2"))

	refreshed, err := repo.GetByJID(ctx, "123@g.us")
	require.NoError(t, err)
	assert.True(t, refreshed.IsActive)
	assert.Equal(t, "Vendas SP v2", refreshed.Name)
}

func TestGroupSyncUpsert_RefreshesMetadataOnly(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupGormRepository(db)
	ctx := context.Background()

	_, err := repo.UpsertActive(ctx, "inst1", "123@g.us", "Vendas SP", time.Now().UTC())
	require.NoError(t, err)

	saved, err := repo.SyncUpsert(ctx, "inst1", []group.SyncEntry{
		{JID: "123@g.us", Name: "Vendas SP 2024", IsAdmin: true, ParticipantsCount: 42},
		{JID: "456@g.us", Name: "Suporte", IsAdmin: false, ParticipantsCount: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	existing, err := repo.GetByJID(ctx, "123@g.us")
	require.NoError(t, err)
	assert.True(t, existing.IsActive, "sync must never deactivate a group")
	assert.True(t, existing.IsAdmin)
	assert.Equal(t, "Vendas SP 2024", existing.Name)
	assert.Equal(t, 42, existing.ParticipantsCount)

	fresh, err := repo.GetByJID(ctx, "456@g.us")
	require.NoError(t, err)
	assert.False(t, fresh.IsActive, "newly synced groups start inactive")
}

func TestGroupLinkPending(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupGormRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	pendingModel := groupModel{
		ID:         "grp-pending",
		ExternalID: "onb_1771196764473_v1q4di",
		Name:       "Meu Grupo",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, db.Create(&pendingModel).Error)

	// Lookup is case-insensitive because the webhook upper-cases the code.
	pending, err := repo.GetPendingByExternalID(ctx, "ONB_1771196764473_V1Q4DI")
	require.NoError(t, err)
	assert.Equal(t, "grp-pending", pending.ID)

	linked, err := repo.LinkPending(ctx, pending.ID, "inst1", "123@g.us")
	require.NoError(t, err)
	assert.True(t, linked.IsActive)
	assert.Equal(t, "123@g.us", linked.JID)
	assert.Equal(t, "inst1", linked.InstanceID)

	// Second claim fails: the group is no longer pending.
	_, err = repo.LinkPending(ctx, pending.ID, "inst2", "999@g.us")
	assert.Error(t, err)
}

func TestGroupCountActiveByInstance(t *testing.T) {
	db := newTestDB(t)
	repo := NewGroupGormRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := repo.UpsertActive(ctx, "inst1", "1@g.us", "A", now)
	require.NoError(t, err)
	_, err = repo.UpsertActive(ctx, "inst1", "2@g.us", "B", now)
	require.NoError(t, err)
	require.NoError(t, repo.UpsertMetadata(ctx, "inst1", "3@g.us", "C"))

	count, err := repo.CountActiveByInstance(ctx, "inst1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
