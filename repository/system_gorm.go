package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/zapdigest/ingest/domains/system"
	"gorm.io/gorm"
)

type SystemGormRepository struct {
	db *gorm.DB
}

func NewSystemGormRepository(db *gorm.DB) *SystemGormRepository {
	return &SystemGormRepository{db: db}
}

// GetSetting returns the value for key, or empty string when unset.
func (r *SystemGormRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var m systemSettingModel
	if err := r.db.WithContext(ctx).First(&m, "key = ?", key).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return m.Value, nil
}

func (r *SystemGormRepository) LogWebhook(ctx context.Context, event, instance, payload string) error {
	m := webhookLogModel{
		ID:        uuid.New().String(),
		Event:     event,
		Instance:  instance,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *SystemGormRepository) CreateNotification(ctx context.Context, n *system.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	m := notificationModel{
		ID:             n.ID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           n.Type,
		Scope:          n.Scope,
		OrganizationID: n.OrganizationID,
		Metadata:       string(metadataJSON),
		CreatedAt:      n.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}
