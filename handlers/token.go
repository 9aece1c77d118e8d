// handlers/token_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupTokenRoutes(app *fiber.App, tokenService *services.TokenService, auth, admin fiber.Handler) {
	// 🔓 Public: token metadata and balances are on-chain anyway
	app.Get("/api/mad-token/info", tokenService.GetTokenInfo)
	app.Get("/api/mad-token/balance/:address", tokenService.GetBalance)

	// 🔐 Secured: staking against the caller's starknet address
	secured := app.Group("/api/mad-token", auth)
	secured.Post("/stake", tokenService.Stake)
	secured.Post("/unstake", tokenService.Unstake)
	secured.Post("/claim-rewards", tokenService.ClaimRewards)

	// 🔐 Admin: direct token operations
	adminGroup := app.Group("/api/admin/mad-token", auth, admin)
	adminGroup.Post("/mint", tokenService.AdminMint)
	adminGroup.Post("/transfer", tokenService.AdminTransfer)
}
