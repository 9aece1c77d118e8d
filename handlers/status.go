// handlers/status_routes.go
package handlers

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"kodata-dao/metrics"
	"kodata-dao/services"
)

func SetupStatusRoutes(app *fiber.App, statusService *services.StatusService) {
	// 🔓 Public: liveness and chain probes
	app.Get("/api/health", statusService.Health)
	app.Get("/api/blockchain/status", statusService.BlockchainStatus)

	// Prometheus scrape target
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
