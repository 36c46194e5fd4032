package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/zapdigest/ingest/domains/account"
	"github.com/zapdigest/ingest/pkg/utils"
)

// UserContextKey is the fiber.Ctx locals key holding the authenticated user.
const UserContextKey = "auth_user"

// BearerAuth resolves the Authorization bearer token to a tenant user and
// stores it in the request locals. Requests without a valid token never
// reach the protected handlers.
func BearerAuth(accountRepo account.IAccountRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
				Status:  401,
				Code:    "AUTHENTICATION_ERROR",
				Message: "Unauthorized: Missing header",
			})
		}

		user, err := accountRepo.GetUserByToken(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(utils.ResponseData{
				Status:  401,
				Code:    "AUTHENTICATION_ERROR",
				Message: "Unauthorized: Invalid token",
			})
		}

		c.Locals(UserContextKey, user)
		return c.Next()
	}
}

// AuthenticatedUser reads the user placed by BearerAuth.
func AuthenticatedUser(c *fiber.Ctx) *account.User {
	user, _ := c.Locals(UserContextKey).(*account.User)
	return user
}
