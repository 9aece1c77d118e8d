// handlers/auth_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupAuthRoutes(app *fiber.App, authService *services.AuthService) {
	// 🔓 Public: wallet challenge/response login
	app.Post("/api/auth/challenge", authService.RequestChallenge)
	app.Post("/api/auth/login", authService.Login)
}
