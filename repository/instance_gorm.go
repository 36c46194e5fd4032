package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zapdigest/ingest/domains/instance"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"gorm.io/gorm"
)

type InstanceGormRepository struct {
	db *gorm.DB
}

func NewInstanceGormRepository(db *gorm.DB) *InstanceGormRepository {
	return &InstanceGormRepository{db: db}
}

func (r *InstanceGormRepository) GetByName(ctx context.Context, name string) (*instance.Instance, error) {
	var m instanceModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.NotFoundError("instance not found: " + name)
		}
		return nil, err
	}
	return fromInstanceModel(m), nil
}

func (r *InstanceGormRepository) GetByUser(ctx context.Context, userID string) (*instance.Instance, error) {
	var m instanceModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.NotFoundError("No instance found for user")
		}
		return nil, err
	}
	return fromInstanceModel(m), nil
}

func (r *InstanceGormRepository) Create(ctx context.Context, inst *instance.Instance) error {
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now

	m := toInstanceModel(inst)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "duplicate key value") {
			return pkgError.ValidationError("instance name already registered: " + inst.Name)
		}
		return err
	}
	return nil
}

func (r *InstanceGormRepository) UpdateStatus(ctx context.Context, id string, status instance.Status, clearQR bool) error {
	updates := map[string]any{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if clearQR {
		updates["qr_code"] = ""
	}
	result := r.db.WithContext(ctx).Model(&instanceModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("instance not found")
	}
	return nil
}

func (r *InstanceGormRepository) UpdateQR(ctx context.Context, id string, qr string, status instance.Status) error {
	result := r.db.WithContext(ctx).Model(&instanceModel{}).Where("id = ?", id).Updates(map[string]any{
		"qr_code":    qr,
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgError.NotFoundError("instance not found")
	}
	return nil
}

func (r *InstanceGormRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&instanceModel{}, "id = ?", id).Error
}

// --- Mappers ---

func toInstanceModel(i *instance.Instance) instanceModel {
	return instanceModel{
		ID:        i.ID,
		UserID:    i.UserID,
		Name:      i.Name,
		Status:    string(i.Status),
		QRCode:    i.QRCode,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func fromInstanceModel(m instanceModel) *instance.Instance {
	return &instance.Instance{
		ID:        m.ID,
		UserID:    m.UserID,
		Name:      m.Name,
		Status:    instance.Status(m.Status),
		QRCode:    m.QRCode,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
