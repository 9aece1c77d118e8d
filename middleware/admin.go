// kodata-dao/middleware/admin.go
package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"kodata-dao/models"
)

// AdminOnly gates admin routes. The JWT admin flag is only a hint; the
// database is the source of truth so a demotion takes effect immediately.
func AdminOnly(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown user",
			})
		}

		if !user.IsAdmin {
			log.Printf("🚫 [ADMIN] %s denied on %s", user.WalletAddress, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}

		c.Locals(IsAdminKey, true)
		return c.Next()
	}
}
