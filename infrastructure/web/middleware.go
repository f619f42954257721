package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"pairchat/contract"
	"pairchat/domain"
)

const identityLocal = "identity"

// RequireAuth verifies the bearer token and attaches the caller's identity
// to the request context.
func RequireAuth(verifier contract.AuthVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		credential := strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		identity, err := verifier.Verify(c.Context(), credential)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "authentication required",
			})
		}
		c.Locals(identityLocal, identity)
		return c.Next()
	}
}

func callerIdentity(c *fiber.Ctx) domain.Identity {
	return c.Locals(identityLocal).(domain.Identity)
}
