package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zapdigest/ingest/domains/message"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"gorm.io/gorm"
)

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

func (r *MessageGormRepository) Insert(ctx context.Context, msg *message.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.MessageTimestamp.IsZero() {
		msg.MessageTimestamp = msg.CreatedAt
	}
	m := messageModel{
		ID:                msg.ID,
		GroupID:           msg.GroupID,
		OrganizationID:    msg.OrganizationID,
		SenderJID:         msg.SenderJID,
		SenderName:        msg.SenderName,
		Content:           msg.Content,
		MessageType:       msg.MessageType,
		PlatformMessageID: msg.PlatformMessageID,
		MessageTS:         msg.MessageTimestamp,
		CreatedAt:         msg.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *MessageGormRepository) CountForInstanceSince(ctx context.Context, instanceID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Joins("JOIN groups ON groups.id = messages.group_id").
		Where("groups.instance_id = ? AND messages.created_at >= ?", instanceID, since).
		Count(&count).Error
	return count, err
}

func (r *MessageGormRepository) FindLatestID(ctx context.Context, groupID, senderJID string) (string, error) {
	var m messageModel
	err := r.db.WithContext(ctx).
		Select("id").
		Where("group_id = ? AND sender_jid = ?", groupID, senderJID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", pkgError.NotFoundError("message not found")
		}
		return "", err
	}
	return m.ID, nil
}
