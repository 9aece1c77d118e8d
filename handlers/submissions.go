// handlers/submission_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupSubmissionRoutes(app *fiber.App, submissionService *services.SubmissionService, auth, admin fiber.Handler) {
	// 🔐 Secured: contributors manage their own submissions
	secured := app.Group("/api/submissions", auth)
	secured.Post("/", submissionService.CreateSubmission)
	secured.Get("/", submissionService.ListMySubmissions)
	secured.Get("/:id", submissionService.GetSubmission)

	// 🔐 Admin: review queue
	adminGroup := app.Group("/api/admin", auth, admin)
	adminGroup.Get("/submissions", submissionService.AdminListSubmissions)
	adminGroup.Post("/approve-submission/:id", submissionService.ApproveSubmission)
	adminGroup.Post("/reject-submission/:id", submissionService.RejectSubmission)
}
