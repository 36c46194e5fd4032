package message

import (
	"context"
	"time"
)

// UnknownSender is the display-name placeholder when the provider omits the
// push name.
const UnknownSender = "Unknown"

// Message is one ingested chat message. Immutable once created.
type Message struct {
	ID                string
	GroupID           string
	OrganizationID    string
	SenderJID         string
	SenderName        string
	Content           string
	MessageType       string
	PlatformMessageID string
	MessageTimestamp  time.Time
	CreatedAt         time.Time
}

type IMessageRepository interface {
	Insert(ctx context.Context, msg *Message) error
	// CountForInstanceSince counts persisted messages across all of an
	// instance's groups received at or after the given time. The daily quota
	// reads this fresh on every message; no cached counter exists.
	CountForInstanceSince(ctx context.Context, instanceID string, since time.Time) (int64, error)
	// FindLatestID looks up the most recent message id for a group/sender
	// pair, used to attach match logs to the just-inserted row.
	FindLatestID(ctx context.Context, groupID, senderJID string) (string, error)
}
