// kodata-dao/services/reward_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kodata-dao/metrics"
	"kodata-dao/middleware"
	"kodata-dao/models"
)

// RewardService reads the TokenTransfer log and issues manual rewards.
type RewardService struct {
	DB     *gorm.DB
	Tokens *TokenService
}

func NewRewardService(db *gorm.DB, tokens *TokenService) *RewardService {
	return &RewardService{DB: db, Tokens: tokens}
}

// GetHistory lists a user's transfer history, newest first. Users can read
// their own; admins can read anyone's.
func (s *RewardService) GetHistory(c *fiber.Ctx) error {
	targetID := c.Params("userId")
	callerID := middleware.UserID(c)

	if targetID != callerID {
		var caller models.User
		if err := s.DB.First(&caller, "id = ?", callerID).Error; err != nil || !caller.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "can only view your own reward history"})
		}
	}

	query := s.DB.Where("user_id = ?", targetID).Order("created_at DESC")
	if kind := c.Query("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			query = query.Limit(l)
		}
	}

	var transfers []models.TokenTransfer
	if err := query.Find(&transfers).Error; err != nil {
		log.Printf("DB Error fetching reward history for %s: %v", targetID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch reward history"})
	}

	return c.JSON(fiber.Map{"user_id": targetID, "transfers": transfers})
}

// GetStats aggregates the reward ledger for the dashboard.
func (s *RewardService) GetStats(c *fiber.Ctx) error {
	rewardKinds := []models.TransferKind{models.TransferSubmissionReward, models.TransferManualReward}

	var minted struct {
		Total float64
		Count int64
	}
	err := s.DB.Model(&models.TokenTransfer{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("kind IN ? AND status IN ?", rewardKinds,
			[]models.TransferStatus{models.TransferSubmitted, models.TransferConfirmed}).
		Scan(&minted).Error
	if err != nil {
		log.Printf("DB Error aggregating rewards: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to aggregate rewards"})
	}

	var recipients int64
	s.DB.Model(&models.TokenTransfer{}).
		Where("kind IN ?", rewardKinds).
		Distinct("user_id").
		Count(&recipients)

	var pending, failed int64
	s.DB.Model(&models.TokenTransfer{}).
		Where("kind IN ? AND status = ?", rewardKinds, models.TransferQueued).
		Count(&pending)
	s.DB.Model(&models.TokenTransfer{}).
		Where("kind IN ? AND status = ?", rewardKinds, models.TransferFailed).
		Count(&failed)

	var creditsTotal float64
	s.DB.Model(&models.User{}).
		Select("COALESCE(SUM(credits), 0)").
		Scan(&creditsTotal)

	return c.JSON(fiber.Map{
		"total_minted":       minted.Total,
		"reward_count":       minted.Count,
		"unique_recipients":  recipients,
		"pending_rewards":    pending,
		"failed_rewards":     failed,
		"offchain_credits":   creditsTotal,
		"base_reward_amount": BaseRewardAmount,
	})
}

// ManualReward lets an admin pay a user outside the approval flow.
func (s *RewardService) ManualReward(c *fiber.Ctx) error {
	var req struct {
		UserID string  `json:"user_id"`
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var meta *string
	if req.Reason != "" {
		raw, _ := json.Marshal(map[string]string{
			"reason":   req.Reason,
			"admin_id": middleware.UserID(c),
		})
		m := string(raw)
		meta = &m
	}

	if user.StarknetAddress == "" {
		// No mint target, settle straight into off-chain credits.
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("credits", gorm.Expr("credits + ?", req.Amount)).Error; err != nil {
				return err
			}
			return tx.Create(&models.TokenTransfer{
				ID:       uuid.NewString(),
				Kind:     models.TransferManualReward,
				UserID:   &user.ID,
				Amount:   req.Amount,
				Status:   models.TransferFailed,
				Error:    "no starknet address on file, amount credited off-chain",
				Metadata: meta,
			}).Error
		})
		if err != nil {
			log.Printf("DB Error crediting manual reward: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record reward"})
		}
		metrics.RecordRewardMint("credited", req.Amount)
		return c.JSON(fiber.Map{"message": "Reward credited off-chain", "amount": req.Amount})
	}

	transfer := &models.TokenTransfer{
		ID:        uuid.NewString(),
		Kind:      models.TransferManualReward,
		UserID:    &user.ID,
		Recipient: user.StarknetAddress,
		Amount:    req.Amount,
		Status:    models.TransferQueued,
		Metadata:  meta,
	}
	if err := s.DB.Create(transfer).Error; err != nil {
		log.Printf("DB Error recording manual reward: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record reward"})
	}

	if err := s.Tokens.Execute(context.Background(), transfer); err != nil {
		metrics.RecordRewardMint("failed", 0)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       "mint failed: " + err.Error(),
			"transfer_id": transfer.ID,
		})
	}

	metrics.RecordRewardMint("submitted", req.Amount)
	log.Printf("✅ [Reward] manual %.2f MAD → %s by %s", req.Amount, user.WalletAddress, middleware.UserID(c))
	return c.JSON(fiber.Map{
		"message":     "Reward minted",
		"tx_hash":     transfer.TxHash,
		"transfer_id": transfer.ID,
	})
}
