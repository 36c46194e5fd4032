package system

import (
	"context"
	"time"
)

// SettingWebhookToken is the system_settings key holding the DB-side webhook
// shared secret (fallback when the env variable is unset).
const SettingWebhookToken = "WEBHOOK_AUTH_TOKEN"

const (
	NotificationScopeSuperAdmin   = "super_admin"
	NotificationScopeOrganization = "organization"
)

// Notification is an append-only operator/tenant notice.
type Notification struct {
	ID             string
	Title          string
	Message        string
	Type           string // info | success | error
	Scope          string
	OrganizationID string
	Metadata       map[string]any
	CreatedAt      time.Time
}

type ISystemRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	LogWebhook(ctx context.Context, event, instance, payload string) error
	CreateNotification(ctx context.Context, n *Notification) error
}
