// handlers/user_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupUserRoutes(app *fiber.App, userService *services.UserService, auth, admin fiber.Handler) {
	// 🔐 Secured: own profile
	secured := app.Group("/api/users", auth)
	secured.Get("/profile", userService.GetProfile)
	secured.Put("/profile", userService.UpdateProfile)
	secured.Get("/leaderboard", userService.Leaderboard)

	// 🔐 Admin: role management
	adminGroup := app.Group("/api/admin/users", auth, admin)
	adminGroup.Post("/:id/promote", userService.Promote)
	adminGroup.Post("/:id/demote", userService.Demote)
}
