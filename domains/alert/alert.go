package alert

import (
	"context"

	"github.com/zapdigest/ingest/domains/group"
	"github.com/zapdigest/ingest/domains/message"
)

// Alert is the channel-agnostic payload built for one keyword match.
type Alert struct {
	Keyword    string
	GroupName  string
	SenderName string
	Content    string
}

// Notifier is one delivery channel. Send failures are caught and logged by
// the caller; a failing channel must never block its siblings.
type Notifier interface {
	Name() string
	Send(ctx context.Context, destination string, a Alert) error
}

// IAlertUsecase scans a persisted message against the tenant's keyword
// watchlist and fans matches out to the configured channels.
type IAlertUsecase interface {
	Scan(ctx context.Context, userID string, grp *group.Group, msg *message.Message)
}
