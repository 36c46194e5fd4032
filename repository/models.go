package repository

import (
	"time"

	"gorm.io/gorm"
)

// Persistence models. Domain types stay free of gorm tags; mappers live next
// to each repository.

type planModel struct {
	ID                string `gorm:"primaryKey"`
	Slug              string `gorm:"uniqueIndex;not null"`
	Name              string
	MaxGroups         int `gorm:"default:-1"`
	MaxMessagesPerDay int `gorm:"default:-1"`
	RetentionDays     int `gorm:"default:30"`
}

func (planModel) TableName() string { return "plans" }

type organizationModel struct {
	ID     string `gorm:"primaryKey"`
	Name   string
	PlanID string `gorm:"index:idx_organizations_plan"`
}

func (organizationModel) TableName() string { return "organizations" }

type userModel struct {
	ID                string `gorm:"primaryKey"`
	OrganizationID    string `gorm:"index:idx_users_org;not null"`
	Email             string `gorm:"index:idx_users_email"`
	APIToken          string `gorm:"uniqueIndex:idx_users_api_token"`
	NotificationEmail string
	PhoneNumber       string
	SMSAlertsEnabled  bool `gorm:"default:false"`
}

func (userModel) TableName() string { return "users" }

type instanceModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index:idx_instances_user;not null"`
	Name      string `gorm:"uniqueIndex:idx_instances_name;not null"`
	Status    string `gorm:"default:'disconnected'"`
	QRCode    string `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (instanceModel) TableName() string { return "instances" }

type groupModel struct {
	ID                string  `gorm:"primaryKey"`
	InstanceID        string  `gorm:"index:idx_groups_instance"`
	JID               *string `gorm:"column:jid;uniqueIndex:idx_groups_jid"` // nullable: pending groups have no chat yet
	ExternalID        string  `gorm:"index:idx_groups_external_id"`
	Name              string
	IsActive          bool `gorm:"default:false"`
	IsAdmin           bool `gorm:"default:false"`
	ParticipantsCount int  `gorm:"default:0"`
	LastMessageAt     *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (groupModel) TableName() string { return "groups" }

type messageModel struct {
	ID                string `gorm:"primaryKey"`
	GroupID           string `gorm:"index:idx_messages_group;not null"`
	OrganizationID    string `gorm:"index:idx_messages_org"`
	SenderJID         string `gorm:"column:sender_jid"`
	SenderName        string
	Content           string `gorm:"type:text"`
	MessageType       string
	PlatformMessageID string
	MessageTS         time.Time
	CreatedAt         time.Time `gorm:"index:idx_messages_created_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

type keywordMonitorModel struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"index:idx_keyword_monitors_user;not null"`
	Keyword  string `gorm:"not null"`
	IsActive bool   `gorm:"default:true"`
}

func (keywordMonitorModel) TableName() string { return "keyword_monitors" }

type keywordMatchLogModel struct {
	ID        string `gorm:"primaryKey"`
	MonitorID string `gorm:"index:idx_keyword_match_logs_monitor;not null"`
	MessageID *string
	CreatedAt time.Time `gorm:"not null"`
}

func (keywordMatchLogModel) TableName() string { return "keyword_match_logs" }

type systemSettingModel struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"type:text"`
}

func (systemSettingModel) TableName() string { return "system_settings" }

type webhookLogModel struct {
	ID        string `gorm:"primaryKey"`
	Event     string
	Instance  string
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"index:idx_webhook_logs_created_at;not null"`
}

func (webhookLogModel) TableName() string { return "webhook_logs" }

type notificationModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string
	Message        string `gorm:"type:text"`
	Type           string
	Scope          string
	OrganizationID string
	Metadata       string    `gorm:"type:text;default:'{}'"` // JSON
	CreatedAt      time.Time `gorm:"not null"`
}

func (notificationModel) TableName() string { return "notifications" }

// AutoMigrate creates or updates the full schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&planModel{},
		&organizationModel{},
		&userModel{},
		&instanceModel{},
		&groupModel{},
		&messageModel{},
		&keywordMonitorModel{},
		&keywordMatchLogModel{},
		&systemSettingModel{},
		&webhookLogModel{},
		&notificationModel{},
	)
}
