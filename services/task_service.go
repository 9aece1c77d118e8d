// kodata-dao/services/task_service.go
package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"kodata-dao/middleware"
	"kodata-dao/models"
)

type TaskService struct {
	DB *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{DB: db}
}

// ListTasks is public; contributors browse open tasks here.
func (s *TaskService) ListTasks(c *fiber.Ctx) error {
	query := s.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		log.Printf("DB Error fetching tasks: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch tasks"})
	}
	return c.JSON(tasks)
}

// GetTask looks a task up by id or slug.
func (s *TaskService) GetTask(c *fiber.Ctx) error {
	id := c.Params("id")

	var task models.Task
	if err := s.DB.Where("id = ? OR slug = ?", id, id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(task)
}

// CreateTask creates a new task (Admin only).
func (s *TaskService) CreateTask(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		RewardNote  string `json:"reward_note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	taskSlug := slug.Make(req.Title)
	var count int64
	s.DB.Model(&models.Task{}).Where("slug = ?", taskSlug).Count(&count)
	if count > 0 {
		taskSlug = taskSlug + "-" + uuid.NewString()[:8]
	}

	task := &models.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Slug:        taskSlug,
		Description: req.Description,
		RewardNote:  req.RewardNote,
		Status:      models.TaskOpen,
		CreatedBy:   middleware.UserID(c),
	}

	if err := s.DB.Create(task).Error; err != nil {
		log.Printf("DB Error creating task: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create task"})
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTask edits an existing task (Admin only).
func (s *TaskService) UpdateTask(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var task models.Task
	if err := s.DB.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Title       *string            `json:"title"`
		Description *string            `json:"description"`
		RewardNote  *string            `json:"reward_note"`
		Status      *models.TaskStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.RewardNote != nil {
		task.RewardNote = *req.RewardNote
	}
	if req.Status != nil {
		if *req.Status != models.TaskOpen && *req.Status != models.TaskClosed {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be open or closed"})
		}
		task.Status = *req.Status
	}

	if err := s.DB.Save(&task).Error; err != nil {
		log.Printf("DB Error updating task %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update task"})
	}

	return c.JSON(task)
}
