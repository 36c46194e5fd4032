package instance

import (
	"context"
	"time"
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusConnecting   Status = "connecting"
	StatusDisconnected Status = "disconnected"
)

// StatusFromProviderState maps the provider's raw connection state string.
// Only "open" and "connecting" are meaningful; anything else is treated as
// disconnected.
func StatusFromProviderState(state string) Status {
	switch state {
	case "open":
		return StatusConnected
	case "connecting":
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// Instance is one connection to the messaging provider, owned by a single
// tenant principal.
type Instance struct {
	ID        string
	UserID    string
	Name      string
	Status    Status
	QRCode    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type IInstanceRepository interface {
	GetByName(ctx context.Context, name string) (*Instance, error)
	GetByUser(ctx context.Context, userID string) (*Instance, error)
	Create(ctx context.Context, inst *Instance) error
	// UpdateStatus changes connection state; when clearQR is true the cached
	// QR payload is wiped (a connected instance has no pending pairing).
	UpdateStatus(ctx context.Context, id string, status Status, clearQR bool) error
	UpdateQR(ctx context.Context, id string, qr string, status Status) error
	Delete(ctx context.Context, id string) error
}
