package group

import (
	"context"
	"time"
)

// PlaceholderName is used when a chat is first sighted through a message
// event, before any metadata or sync supplies the real subject.
const PlaceholderName = "Unknown Group"

// Group is one monitored chat, keyed globally by the provider chat id (JID).
type Group struct {
	ID                string
	InstanceID        string
	JID               string
	ExternalID        string // onboarding verification code, set before linking
	Name              string
	IsActive          bool
	IsAdmin           bool
	ParticipantsCount int
	LastMessageAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SyncEntry is one group as reported by the provider during a full sync.
type SyncEntry struct {
	JID               string
	Name              string
	IsAdmin           bool
	ParticipantsCount int
}

type IGroupRepository interface {
	GetByJID(ctx context.Context, jid string) (*Group, error)
	// GetPendingByExternalID finds an onboarding group that has a verification
	// code but no JID yet.
	GetPendingByExternalID(ctx context.Context, code string) (*Group, error)
	CountActiveByInstance(ctx context.Context, instanceID string) (int64, error)
	// UpsertActive creates the group active, or activates the existing row,
	// keyed on jid. Used by the admission controller's auto-activation.
	UpsertActive(ctx context.Context, instanceID, jid, name string, now time.Time) (*Group, error)
	// UpsertMetadata refreshes the display name (creating an inactive row on
	// first sighting). It must never change is_active on an existing row.
	UpsertMetadata(ctx context.Context, instanceID, jid, name string) error
	// LinkPending claims a pending group: sets jid and instance, activates it.
	LinkPending(ctx context.Context, groupID, instanceID, jid string) (*Group, error)
	// SyncUpsert batch-upserts provider-reported groups keyed on jid,
	// refreshing descriptive metadata only (never is_active).
	SyncUpsert(ctx context.Context, instanceID string, entries []SyncEntry) (int, error)
	TouchLastMessage(ctx context.Context, id string, t time.Time) error
	DeleteByInstance(ctx context.Context, instanceID string) error
}
