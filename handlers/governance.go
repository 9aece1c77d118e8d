// handlers/governance_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupGovernanceRoutes(app *fiber.App, governanceService *services.GovernanceService, auth, admin fiber.Handler) {
	// 🔐 Secured: members propose and vote
	secured := app.Group("/api/governance", auth)
	secured.Get("/proposals", governanceService.ListProposals)
	secured.Post("/proposals", governanceService.CreateProposal)
	secured.Post("/proposals/:id/vote", governanceService.Vote)

	// 🔐 Admin: finalize tallies
	adminGroup := app.Group("/api/admin/governance", auth, admin)
	adminGroup.Post("/proposals/:id/close", governanceService.CloseProposal)
}
