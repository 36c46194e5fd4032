package keyword

import (
	"context"
	"strings"
)

// Monitor is a tenant-owned watch rule. Read-only from the ingestion core;
// management happens elsewhere.
type Monitor struct {
	ID       string
	UserID   string
	Keyword  string
	IsActive bool
}

// Matches reports whether the monitor's keyword occurs in content,
// case-insensitively.
func (m *Monitor) Matches(content string) bool {
	return strings.Contains(strings.ToLower(content), strings.ToLower(m.Keyword))
}

type IKeywordRepository interface {
	ListActiveByUser(ctx context.Context, userID string) ([]Monitor, error)
	// LogMatch appends one match row. messageID may be nil when the message
	// lookup failed; the match is still recorded.
	LogMatch(ctx context.Context, monitorID string, messageID *string) error
}
