// kodata-dao/middleware/sse_auth.go
package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEUserContext authenticates stream endpoints. EventSource cannot set
// headers, so the JWT arrives as a `token` query param instead.
//
// Usage:
//
//	app.Get("/api/rewards/stream", middleware.SSEUserContext(secret), rewardService.Stream)
func SSEUserContext(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			log.Printf("[SSEAuth] ❌ token rejected on %s: %v", c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(WalletKey, claims.Wallet)
		c.Locals(IsAdminKey, claims.IsAdmin)

		log.Printf("[SSEAuth] ✅ Authenticated user %s", claims.UserID)
		return c.Next()
	}
}
