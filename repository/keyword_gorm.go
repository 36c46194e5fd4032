package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zapdigest/ingest/domains/keyword"
	"gorm.io/gorm"
)

type KeywordGormRepository struct {
	db *gorm.DB
}

func NewKeywordGormRepository(db *gorm.DB) *KeywordGormRepository {
	return &KeywordGormRepository{db: db}
}

func (r *KeywordGormRepository) ListActiveByUser(ctx context.Context, userID string) ([]keyword.Monitor, error) {
	var models []keywordMonitorModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	monitors := make([]keyword.Monitor, len(models))
	for i, m := range models {
		monitors[i] = keyword.Monitor{
			ID:       m.ID,
			UserID:   m.UserID,
			Keyword:  m.Keyword,
			IsActive: m.IsActive,
		}
	}
	return monitors, nil
}

func (r *KeywordGormRepository) LogMatch(ctx context.Context, monitorID string, messageID *string) error {
	m := keywordMatchLogModel{
		ID:        uuid.New().String(),
		MonitorID: monitorID,
		MessageID: messageID,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&m).Error
}
