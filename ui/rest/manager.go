package rest

import (
	"github.com/gofiber/fiber/v2"
	domainManager "github.com/zapdigest/ingest/domains/manager"
	"github.com/zapdigest/ingest/pkg/utils"
	"github.com/zapdigest/ingest/ui/rest/middleware"
)

type Manager struct {
	Service domainManager.IManagerUsecase
}

// InitRestManager registers the operator control-plane RPC endpoint. The
// router it mounts on must already carry BearerAuth.
func InitRestManager(app fiber.Router, service domainManager.IManagerUsecase) Manager {
	rest := Manager{Service: service}
	app.Post("/manager", rest.Action)
	return rest
}

func (handler *Manager) Action(c *fiber.Ctx) error {
	user := middleware.AuthenticatedUser(c)

	var request domainManager.ActionRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err, "Invalid request body")

	result, err := handler.Service.Handle(c.UserContext(), user, request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Action executed",
		Results: result,
	})
}
