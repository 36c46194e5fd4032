package repository

import (
	"context"

	"github.com/zapdigest/ingest/domains/account"
	pkgError "github.com/zapdigest/ingest/pkg/error"
	"gorm.io/gorm"
)

type AccountGormRepository struct {
	db *gorm.DB
}

func NewAccountGormRepository(db *gorm.DB) *AccountGormRepository {
	return &AccountGormRepository{db: db}
}

func (r *AccountGormRepository) GetUserByToken(ctx context.Context, token string) (*account.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("api_token = ?", token).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.AuthError("Unauthorized: Invalid token")
		}
		return nil, err
	}
	return fromUserModel(m), nil
}

func (r *AccountGormRepository) GetUserByID(ctx context.Context, id string) (*account.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.NotFoundError("user not found")
		}
		return nil, err
	}
	return fromUserModel(m), nil
}

func (r *AccountGormRepository) GetPlanForUser(ctx context.Context, userID string) (*account.Plan, error) {
	var m planModel
	err := r.db.WithContext(ctx).
		Joins("JOIN organizations ON organizations.plan_id = plans.id").
		Joins("JOIN users ON users.organization_id = organizations.id").
		Where("users.id = ?", userID).
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgError.NotFoundError("plan not found for user")
		}
		return nil, err
	}
	return &account.Plan{
		ID:                m.ID,
		Slug:              m.Slug,
		Name:              m.Name,
		MaxGroups:         m.MaxGroups,
		MaxMessagesPerDay: m.MaxMessagesPerDay,
		RetentionDays:     m.RetentionDays,
	}, nil
}

func fromUserModel(m userModel) *account.User {
	return &account.User{
		ID:                m.ID,
		OrganizationID:    m.OrganizationID,
		Email:             m.Email,
		APIToken:          m.APIToken,
		NotificationEmail: m.NotificationEmail,
		PhoneNumber:       m.PhoneNumber,
		SMSAlertsEnabled:  m.SMSAlertsEnabled,
	}
}
