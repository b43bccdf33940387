package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
)

const identityKey = "identity"

// RequireAuth validates the bearer token and stores the resolved identity in
// the request locals.
func RequireAuth(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Missing token",
			})
		}
		ident, err := verifier.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid/expired token",
			})
		}
		c.Locals(identityKey, ident)
		return c.Next()
	}
}

func identity(c *fiber.Ctx) auth.Identity {
	if ident, ok := c.Locals(identityKey).(*auth.Identity); ok {
		return *ident
	}
	return auth.Identity{}
}
