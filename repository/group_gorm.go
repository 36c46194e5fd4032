package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zapdigest/ingest/domains/group"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupGormRepository struct {
	db *gorm.DB
}

func NewGroupGormRepository(db *gorm.DB) *GroupGormRepository {
	return &GroupGormRepository{db: db}
}

func (r *GroupGormRepository) GetByJID(ctx context.Context, jid string) (*group.Group, error) {
	var m groupModel
	if err := r.db.WithContext(ctx).Where("jid = ?", jid).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.NotFoundError("group not found: " + jid)
		}
		return nil, err
	}
	return fromGroupModel(m), nil
}

func (r *GroupGormRepository) GetPendingByExternalID(ctx context.Context, code string) (*group.Group, error) {
	var m groupModel
	// Codes are matched case-insensitively; generators and chat clients do
	// not agree on casing.
	err := r.db.WithContext(ctx).
		Where("UPPER(external_id) = UPPER(?) AND jid IS NULL", code).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.NotFoundError("no pending group for code: " + code)
		}
		return nil, err
	}
	return fromGroupModel(m), nil
}

func (r *GroupGormRepository) CountActiveByInstance(ctx context.Context, instanceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&groupModel{}).
		Where("instance_id = ? AND is_active = ?", instanceID, true).
		Count(&count).Error
	return count, err
}

// UpsertActive creates the group active or activates the existing row, keyed
// on jid. Concurrent activations of the same chat collapse into one row via
// the unique index; the name of an existing row is left alone so a metadata
// subject never gets clobbered by the placeholder.
func (r *GroupGormRepository) UpsertActive(ctx context.Context, instanceID, jid, name string, now time.Time) (*group.Group, error) {
	m := groupModel{
		ID:            uuid.New().String(),
		InstanceID:    instanceID,
		JID:           &jid,
		Name:          name,
		IsActive:      true,
		LastMessageAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "jid"}},
		DoUpdates: clause.Assignments(map[string]any{
			"is_active":       true,
			"last_message_at": now,
			"updated_at":      now,
		}),
	}).Create(&m).Error
	if err != nil {
		return nil, err
	}
	return r.GetByJID(ctx, jid)
}

// UpsertMetadata refreshes the display name, creating an inactive row on
// first sighting. is_active is deliberately absent from the conflict update.
func (r *GroupGormRepository) UpsertMetadata(ctx context.Context, instanceID, jid, name string) error {
	now := time.Now().UTC()
	m := groupModel{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		JID:        &jid,
		Name:       name,
		IsActive:   false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "jid"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":       name,
			"updated_at": now,
		}),
	}).Create(&m).Error
}

func (r *GroupGormRepository) LinkPending(ctx context.Context, groupID, instanceID, jid string) (*group.Group, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&groupModel{}).
		Where("id = ? AND jid IS NULL", groupID).
		Updates(map[string]any{
			"jid":         jid,
			"instance_id": instanceID,
			"is_active":   true,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, pkgError.NotFoundError("pending group already linked or missing")
	}
	return r.GetByJID(ctx, jid)
}

// SyncUpsert batch-upserts provider-reported groups keyed on jid. Descriptive
// metadata only; an operator- or admission-activated group stays active.
func (r *GroupGormRepository) SyncUpsert(ctx context.Context, instanceID string, entries []group.SyncEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	models := make([]groupModel, 0, len(entries))
	for _, e := range entries {
		jid := e.JID
		models = append(models, groupModel{
			ID:                uuid.New().String(),
			InstanceID:        instanceID,
			JID:               &jid,
			Name:              e.Name,
			IsAdmin:           e.IsAdmin,
			ParticipantsCount: e.ParticipantsCount,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "jid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"instance_id", "name", "is_admin", "participants_count", "updated_at",
		}),
	}).Create(&models).Error
	if err != nil {
		return 0, err
	}
	return len(models), nil
}

func (r *GroupGormRepository) TouchLastMessage(ctx context.Context, id string, t time.Time) error {
	return r.db.WithContext(ctx).Model(&groupModel{}).Where("id = ?", id).Updates(map[string]any{
		"last_message_at": t,
		"updated_at":      t,
	}).Error
}

func (r *GroupGormRepository) DeleteByInstance(ctx context.Context, instanceID string) error {
	return r.db.WithContext(ctx).Delete(&groupModel{}, "instance_id = ?", instanceID).Error
}

// --- Mappers ---

func fromGroupModel(m groupModel) *group.Group {
	g := &group.Group{
		ID:                m.ID,
		InstanceID:        m.InstanceID,
		ExternalID:        m.ExternalID,
		Name:              m.Name,
		IsActive:          m.IsActive,
		IsAdmin:           m.IsAdmin,
		ParticipantsCount: m.ParticipantsCount,
		LastMessageAt:     m.LastMessageAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	if m.JID != nil {
		g.JID = *m.JID
	}
	return g
}
