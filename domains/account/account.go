package account

import "context"

// Unlimited is the plan sentinel meaning "no ceiling" for a quota field.
const Unlimited = -1

// Plan bounds what a tenant may ingest.
type Plan struct {
	ID                string
	Slug              string
	Name              string
	MaxGroups         int
	MaxMessagesPerDay int
	RetentionDays     int
}

// AllowsGroups reports whether activating one more group keeps the tenant
// within the plan, given the current active count.
func (p *Plan) AllowsGroups(activeCount int64) bool {
	return p.MaxGroups == Unlimited || activeCount < int64(p.MaxGroups)
}

// AllowsMessages reports whether one more message today keeps the tenant
// within the plan, given today's persisted count.
func (p *Plan) AllowsMessages(todayCount int64) bool {
	return p.MaxMessagesPerDay == Unlimited || todayCount < int64(p.MaxMessagesPerDay)
}

// Organization is the tenant/billing boundary.
type Organization struct {
	ID     string
	Name   string
	PlanID string
}

// User is a tenant principal. Notification preferences live here because the
// alerting fan-out resolves destinations per user.
type User struct {
	ID                string
	OrganizationID    string
	Email             string
	APIToken          string
	NotificationEmail string
	PhoneNumber       string
	SMSAlertsEnabled  bool
}

// AlertEmail returns the explicit notification address, falling back to the
// account email.
func (u *User) AlertEmail() string {
	if u.NotificationEmail != "" {
		return u.NotificationEmail
	}
	return u.Email
}

type IAccountRepository interface {
	GetUserByToken(ctx context.Context, token string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	// GetPlanForUser resolves user -> organization -> plan.
	GetPlanForUser(ctx context.Context, userID string) (*Plan, error)
}
