package manager

import (
	"context"

	"github.com/zapdigest/ingest/domains/account"
)

// Action names accepted by the control-plane endpoint.
const (
	ActionTestConnection = "test_connection"
	ActionFetchGroups    = "fetch_groups"
	ActionCreateInstance = "create_instance"
	ActionFetchQR        = "fetch_qr"
	ActionFetchStatus    = "fetch_status"
	ActionSetWebhook     = "set_webhook"
	ActionFindWebhook    = "find_webhook"
	ActionLogoutInstance = "logout_instance"
	ActionDeleteInstance = "delete_instance"
	ActionSendMessage    = "send_message"
)

// ActionRequest is the control-plane RPC body.
type ActionRequest struct {
	Action       string `json:"action"`
	InstanceName string `json:"instanceName,omitempty"`
	To           string `json:"to,omitempty"`
	Message      string `json:"message,omitempty"`
}

// IManagerUsecase executes operator-triggered provider actions for an
// authenticated tenant principal.
type IManagerUsecase interface {
	Handle(ctx context.Context, user *account.User, req ActionRequest) (map[string]any, error)
}
