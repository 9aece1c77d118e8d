// handlers/reward_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupRewardRoutes(app *fiber.App, rewardService *services.RewardService, auth, sseAuth, admin fiber.Handler) {
	// 🔐 Secured: reward history and live feed
	secured := app.Group("/api/rewards", auth)
	secured.Get("/history/:userId", rewardService.GetHistory)
	secured.Get("/stats", rewardService.GetStats)

	// SSE uses query-param auth because EventSource cannot set headers.
	app.Get("/api/rewards/stream", sseAuth, rewardService.StreamRewards)

	// 🔐 Admin: out-of-band payouts
	adminGroup := app.Group("/api/admin/rewards", auth, admin)
	adminGroup.Post("/manual", rewardService.ManualReward)
}
