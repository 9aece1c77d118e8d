// kodata-dao/services/submission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kodata-dao/chain"
	"kodata-dao/metrics"
	"kodata-dao/middleware"
	"kodata-dao/models"
	"kodata-dao/utils"
)

const (
	// Flat reward per approval. The multiplier is a placeholder until
	// quality scoring goes live; today every approval pays base × 1.0.
	BaseRewardAmount = 100.0
	RewardMultiplier = 1.0

	maxUploadBytes = 10 << 20 // 10 MB
)

// RewardEnqueuer hands approved submission ids to the reputation relayer.
type RewardEnqueuer interface {
	Enqueue(submissionID string) bool
}

type SubmissionService struct {
	DB      *gorm.DB
	Chain   chain.StarknetClient
	Tokens  *TokenService
	Storage *utils.Storage
	Relayer RewardEnqueuer
}

func NewSubmissionService(db *gorm.DB, starknet chain.StarknetClient, tokens *TokenService, storage *utils.Storage, relayer RewardEnqueuer) *SubmissionService {
	return &SubmissionService{
		DB:      db,
		Chain:   starknet,
		Tokens:  tokens,
		Storage: storage,
		Relayer: relayer,
	}
}

// CreateSubmission accepts either a multipart upload (field "file") or an
// inline JSON body with a "content" string, stores the payload and records
// the submission as PENDING.
func (s *SubmissionService) CreateSubmission(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var taskID, description string
	var data []byte
	var contentType string

	fileHeader, fileErr := c.FormFile("file")
	if fileErr == nil {
		taskID = c.FormValue("task_id")
		description = c.FormValue("description")

		if fileHeader.Size > maxUploadBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file exceeds 10MB limit"})
		}

		f, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to open uploaded file"})
		}
		defer f.Close()

		data, err = io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read uploaded file"})
		}
		contentType = fileHeader.Header.Get("Content-Type")
	} else {
		var req struct {
			TaskID      string `json:"task_id"`
			Content     string `json:"content"`
			Description string `json:"description"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		taskID = req.TaskID
		description = req.Description
		data = []byte(req.Content)
		contentType = "text/plain; charset=utf-8"
	}

	if taskID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "task_id is required"})
	}
	if len(data) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "submission content is empty"})
	}

	var task models.Task
	if err := s.DB.First(&task, "id = ?", taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if task.Status != models.TaskOpen {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "task is closed for submissions"})
	}

	id := uuid.NewString()
	key := fmt.Sprintf("submissions/%s/%s", taskID, id)
	if fileErr == nil {
		key += filepath.Ext(fileHeader.Filename)
	} else {
		key += ".txt"
	}

	url, err := s.Storage.Put(c.Context(), key, contentType, data)
	if err != nil {
		log.Printf("❌ [Submission] storage write failed for %s: %v", key, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store submission content"})
	}

	submission := &models.Submission{
		ID:          id,
		TaskID:      taskID,
		UserID:      userID,
		ContentHash: utils.SHA256Hex(data),
		StorageKey:  key,
		StorageURL:  url,
		Description: description,
		Status:      models.SubmissionPending,
	}
	if err := s.DB.Create(submission).Error; err != nil {
		log.Printf("DB Error creating submission: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create submission"})
	}

	log.Printf("📥 [Submission] %s by %s for task %s (%d bytes)", id, userID, taskID, len(data))
	return c.Status(fiber.StatusCreated).JSON(submission)
}

// ListMySubmissions returns the caller's submissions, newest first.
func (s *SubmissionService) ListMySubmissions(c *fiber.Ctx) error {
	query := s.DB.Where("user_id = ?", middleware.UserID(c)).Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		log.Printf("DB Error fetching submissions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch submissions"})
	}
	return c.JSON(submissions)
}

// GetSubmission returns one submission to its owner or an admin.
func (s *SubmissionService) GetSubmission(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid submission ID"})
	}

	var submission models.Submission
	if err := s.DB.First(&submission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Submission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	callerID := middleware.UserID(c)
	if submission.UserID != callerID {
		var caller models.User
		if err := s.DB.First(&caller, "id = ?", callerID).Error; err != nil || !caller.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your submission"})
		}
	}
	return c.JSON(submission)
}

// AdminListSubmissions lists all submissions with submitter info (Admin only).
func (s *SubmissionService) AdminListSubmissions(c *fiber.Ctx) error {
	query := s.DB.Preload("User").Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var submissions []models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		log.Printf("DB Error fetching submissions: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch submissions"})
	}
	return c.JSON(submissions)
}

// ApproveSubmission moves a PENDING submission to APPROVED, pays the flat
// reward and hands the submission to the reputation relayer.
//
// The status claim and the reward intent are committed in one transaction
// before anything touches a chain, so a concurrent second approval loses the
// conditional update and no reward can be paid twice. The mint itself runs
// after commit; a crash in between leaves a QUEUED intent the scheduler
// retries.
func (s *SubmissionService) ApproveSubmission(c *fiber.Ctx) error {
	id := c.Params("id")
	adminID := middleware.UserID(c)

	var submission models.Submission
	if err := s.DB.First(&submission, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Submission not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", submission.UserID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "submitter record missing"})
	}

	reward := BaseRewardAmount * RewardMultiplier
	now := time.Now()
	transfer := &models.TokenTransfer{
		ID:           uuid.NewString(),
		Kind:         models.TransferSubmissionReward,
		UserID:       &user.ID,
		SubmissionID: &submission.ID,
		Recipient:    user.StarknetAddress,
		Amount:       reward,
		Status:       models.TransferQueued,
	}

	claimed := false
	credited := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Submission{}).
			Where("id = ? AND status = ?", submission.ID, models.SubmissionPending).
			Updates(map[string]interface{}{
				"status":        models.SubmissionApproved,
				"reviewed_by":   adminID,
				"reviewed_at":   now,
				"reward_amount": reward,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil // already reviewed, nothing to roll back
		}
		claimed = true

		if user.StarknetAddress == "" {
			// No mint target: settle the reward off-chain immediately.
			credited = true
			if err := tx.Model(&models.Submission{}).Where("id = ?", submission.ID).
				Update("reward_error", "no starknet address on file, amount credited off-chain").Error; err != nil {
				return err
			}
			return tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("credits", gorm.Expr("credits + ?", reward)).Error
		}
		return tx.Create(transfer).Error
	})
	if err != nil {
		log.Printf("DB Error approving submission %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to approve submission"})
	}
	if !claimed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "submission already reviewed"})
	}

	// External effects run detached from the request so an admin closing the
	// tab cannot strand a half-settled reward.
	ctx := context.Background()

	if user.StarknetAddress != "" {
		if txHash, err := s.Chain.ApproveSubmission(ctx, user.StarknetAddress, submission.ContentHash); err != nil {
			log.Printf("⚠️ [Submission] on-chain approval mark failed for %s: %v", id, err)
		} else {
			log.Printf("✅ [Submission] on-chain approval mark for %s → %s", id, txHash)
		}
	}

	var rewardTx *string
	var rewardErr string
	if credited {
		rewardErr = "no starknet address on file, amount credited off-chain"
		metrics.RecordRewardMint("credited", reward)
		log.Printf("⚠️ [Submission] %s approved, %.0f MAD credited off-chain to %s", id, reward, user.WalletAddress)
	} else {
		if err := s.Tokens.Execute(ctx, transfer); err != nil {
			rewardErr = err.Error()
			metrics.RecordRewardMint("failed", 0)
			s.settleFailedMint(submission.ID, user.ID, reward, rewardErr)
		} else {
			rewardTx = transfer.TxHash
			metrics.RecordRewardMint("submitted", reward)
			if err := s.DB.Model(&models.Submission{}).Where("id = ?", submission.ID).
				Update("reward_tx_hash", transfer.TxHash).Error; err != nil {
				log.Printf("DB Error storing reward tx on %s: %v", submission.ID, err)
			}
		}
	}

	if !s.Relayer.Enqueue(submission.ID) {
		log.Printf("⚠️ [Submission] relayer queue full, %s will be picked up by the sweep", submission.ID)
	}

	// Reload so the response carries the post-mint reward fields.
	s.DB.First(&submission, "id = ?", submission.ID)

	return c.JSON(fiber.Map{
		"message":    "Submission approved",
		"submission": submission,
		"reward": fiber.Map{
			"amount":  reward,
			"tx_hash": rewardTx,
			"error":   rewardErr,
		},
	})
}

// settleFailedMint converts an undeliverable mint into off-chain credits so
// the approved reward is never lost.
func (s *SubmissionService) settleFailedMint(submissionID, userID string, amount float64, reason string) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Submission{}).Where("id = ?", submissionID).
			Update("reward_error", reason).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Update("credits", gorm.Expr("credits + ?", amount)).Error
	})
	if err != nil {
		log.Printf("DB Error settling failed mint for %s: %v", submissionID, err)
		return
	}
	metrics.RecordRewardMint("credited", amount)
	log.Printf("⚠️ [Submission] mint failed for %s, %.0f MAD credited off-chain: %s", submissionID, amount, reason)
}

// RejectSubmission moves a PENDING submission to REJECTED. No side effects.
func (s *SubmissionService) RejectSubmission(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Reason string `json:"reason"`
	}
	// Body optional on reject.
	_ = c.BodyParser(&req)

	now := time.Now()
	res := s.DB.Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionPending).
		Updates(map[string]interface{}{
			"status":      models.SubmissionRejected,
			"reviewed_by": middleware.UserID(c),
			"reviewed_at": now,
			"review_note": req.Reason,
		})
	if res.Error != nil {
		log.Printf("DB Error rejecting submission %s: %v", id, res.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to reject submission"})
	}
	if res.RowsAffected == 0 {
		var submission models.Submission
		if err := s.DB.First(&submission, "id = ?", id).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Submission not found"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "submission already reviewed"})
	}

	log.Printf("⏹️ [Submission] %s rejected by %s", id, middleware.UserID(c))
	return c.JSON(fiber.Map{"message": "Submission rejected"})
}
