// kodata-dao/services/user_service.go
package services

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kodata-dao/middleware"
	"kodata-dao/models"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// GetProfile returns the authenticated user's record.
func (s *UserService) GetProfile(c *fiber.Ctx) error {
	var user models.User
	if err := s.DB.First(&user, "id = ?", middleware.UserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(user)
}

// UpdateProfile applies the provided fields to the authenticated user.
func (s *UserService) UpdateProfile(c *fiber.Ctx) error {
	var user models.User
	if err := s.DB.First(&user, "id = ?", middleware.UserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var req struct {
		Username        *string `json:"username"`
		StarknetAddress *string `json:"starknet_address"`
		BitcoinAddress  *string `json:"bitcoin_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.Username != nil {
		if len(*req.Username) > 32 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "username too long (max 32)"})
		}
		user.Username = *req.Username
	}
	if req.StarknetAddress != nil {
		user.StarknetAddress = *req.StarknetAddress
	}
	if req.BitcoinAddress != nil {
		user.BitcoinAddress = *req.BitcoinAddress
	}

	if err := s.DB.Save(&user).Error; err != nil {
		log.Printf("DB Error updating profile for %s: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(user)
}

// Leaderboard lists the top contributors by reputation.
func (s *UserService) Leaderboard(c *fiber.Ctx) error {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	var users []models.User
	if err := s.DB.
		Order("reputation DESC, created_at ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		log.Printf("DB Error fetching leaderboard: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch leaderboard"})
	}

	type entry struct {
		Rank       int    `json:"rank"`
		UserID     string `json:"user_id"`
		Username   string `json:"username,omitempty"`
		Wallet     string `json:"wallet_address"`
		Reputation int64  `json:"reputation"`
	}
	out := make([]entry, 0, len(users))
	for i, u := range users {
		out = append(out, entry{
			Rank:       i + 1,
			UserID:     u.ID,
			Username:   u.Username,
			Wallet:     u.WalletAddress,
			Reputation: u.Reputation,
		})
	}
	return c.JSON(out)
}

// Promote grants admin rights (Admin only).
func (s *UserService) Promote(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// Demote revokes admin rights (Admin only).
func (s *UserService) Demote(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *UserService) setAdmin(c *fiber.Ctx, isAdmin bool) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	if user.IsAdmin == isAdmin {
		return c.JSON(fiber.Map{"message": "No change", "user": user})
	}

	user.IsAdmin = isAdmin
	if err := s.DB.Model(&user).Update("is_admin", isAdmin).Error; err != nil {
		log.Printf("DB Error changing admin flag for %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}

	action := "promoted"
	if !isAdmin {
		action = "demoted"
	}
	log.Printf("✅ [ADMIN] %s %s by %s", user.WalletAddress, action, middleware.UserID(c))
	return c.JSON(fiber.Map{"message": "User " + action, "user": user})
}
