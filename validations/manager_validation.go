package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	domainManager "github.com/zapdigest/ingest/domains/manager"
	pkgError "github.com/zapdigest/ingest/pkg/error"
)

func ValidateManagerAction(ctx context.Context, request domainManager.ActionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Action, validation.Required, validation.In(
			domainManager.ActionTestConnection,
			domainManager.ActionFetchGroups,
			domainManager.ActionCreateInstance,
			domainManager.ActionFetchQR,
			domainManager.ActionFetchStatus,
			domainManager.ActionSetWebhook,
			domainManager.ActionFindWebhook,
			domainManager.ActionLogoutInstance,
			domainManager.ActionDeleteInstance,
			domainManager.ActionSendMessage,
		)),
		validation.Field(&request.To,
			validation.Required.When(request.Action == domainManager.ActionSendMessage)),
		validation.Field(&request.Message,
			validation.Required.When(request.Action == domainManager.ActionSendMessage)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
