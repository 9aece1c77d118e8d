// handlers/task_routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"kodata-dao/services"
)

func SetupTaskRoutes(app *fiber.App, taskService *services.TaskService, auth, admin fiber.Handler) {
	// 🔓 Public: contributors browse tasks without logging in
	app.Get("/api/tasks", taskService.ListTasks)
	app.Get("/api/tasks/:id", taskService.GetTask)

	// 🔐 Admin: task curation
	adminGroup := app.Group("/api/admin/tasks", auth, admin)
	adminGroup.Post("/", taskService.CreateTask)
	adminGroup.Put("/:id", taskService.UpdateTask)
}
