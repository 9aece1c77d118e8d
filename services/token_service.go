// kodata-dao/services/token_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kodata-dao/chain"
	"kodata-dao/middleware"
	"kodata-dao/models"
)

// TokenService wraps the MAD token contract. Every write goes through a
// TokenTransfer row so nothing on-chain is invisible to the database.
type TokenService struct {
	DB    *gorm.DB
	Chain chain.StarknetClient
}

func NewTokenService(db *gorm.DB, starknet chain.StarknetClient) *TokenService {
	return &TokenService{DB: db, Chain: starknet}
}

// GetTokenInfo returns name/symbol/decimals/supply straight from the contract.
func (s *TokenService) GetTokenInfo(c *fiber.Ctx) error {
	info, err := s.Chain.GetTokenInfo(c.Context())
	if err != nil {
		log.Printf("❌ [Token] info read failed: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "token contract unreachable"})
	}
	return c.JSON(info)
}

// GetBalance returns the MAD balance of any Starknet address. An address the
// chain has never seen simply holds zero.
func (s *TokenService) GetBalance(c *fiber.Ctx) error {
	address := c.Params("address")
	if !strings.HasPrefix(address, "0x") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "address must be 0x-prefixed"})
	}

	balance, err := s.Chain.GetBalance(c.Context(), address)
	if err != nil {
		log.Printf("❌ [Token] balance read for %s failed: %v", address, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "balance read failed"})
	}

	return c.JSON(fiber.Map{"address": address, "balance": balance})
}

// Stake locks tokens for the authenticated user.
func (s *TokenService) Stake(c *fiber.Ctx) error {
	return s.userTokenOp(c, models.TransferStake)
}

// Unstake releases staked tokens for the authenticated user.
func (s *TokenService) Unstake(c *fiber.Ctx) error {
	return s.userTokenOp(c, models.TransferUnstake)
}

// ClaimRewards collects accrued staking rewards for the authenticated user.
func (s *TokenService) ClaimRewards(c *fiber.Ctx) error {
	return s.userTokenOp(c, models.TransferClaimRewards)
}

func (s *TokenService) userTokenOp(c *fiber.Ctx, kind models.TransferKind) error {
	var req struct {
		Amount float64 `json:"amount"`
	}
	if kind != models.TransferClaimRewards {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.Amount <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
		}
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", middleware.UserID(c)).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown user"})
	}
	if user.StarknetAddress == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no starknet address on file, update your profile first"})
	}

	transfer := &models.TokenTransfer{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    &user.ID,
		Recipient: user.StarknetAddress,
		Amount:    req.Amount,
		Status:    models.TransferQueued,
	}
	if err := s.DB.Create(transfer).Error; err != nil {
		log.Printf("DB Error recording %s: %v", kind, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record transfer"})
	}

	if err := s.Execute(c.Context(), transfer); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       fmt.Sprintf("%s failed: %v", kind, err),
			"transfer_id": transfer.ID,
		})
	}

	return c.JSON(fiber.Map{
		"message":     fmt.Sprintf("%s submitted", kind),
		"tx_hash":     transfer.TxHash,
		"transfer_id": transfer.ID,
	})
}

// AdminMint mints tokens to an arbitrary address (Admin only).
func (s *TokenService) AdminMint(c *fiber.Ctx) error {
	return s.adminTokenOp(c, models.TransferAdminMint)
}

// AdminTransfer sends tokens from the platform account (Admin only).
func (s *TokenService) AdminTransfer(c *fiber.Ctx) error {
	return s.adminTokenOp(c, models.TransferAdminTransfer)
}

func (s *TokenService) adminTokenOp(c *fiber.Ctx, kind models.TransferKind) error {
	var req struct {
		To     string  `json:"to"`
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !strings.HasPrefix(req.To, "0x") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be a 0x-prefixed starknet address"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	adminID := middleware.UserID(c)
	transfer := &models.TokenTransfer{
		ID:        uuid.NewString(),
		Kind:      kind,
		UserID:    &adminID,
		Recipient: req.To,
		Amount:    req.Amount,
		Status:    models.TransferQueued,
	}
	if err := s.DB.Create(transfer).Error; err != nil {
		log.Printf("DB Error recording %s: %v", kind, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record transfer"})
	}

	if err := s.Execute(c.Context(), transfer); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":       fmt.Sprintf("%s failed: %v", kind, err),
			"transfer_id": transfer.ID,
		})
	}

	log.Printf("✅ [Token] %s %.2f MAD → %s by admin %s", kind, req.Amount, req.To, adminID)
	return c.JSON(fiber.Map{
		"message":     fmt.Sprintf("%s submitted", kind),
		"tx_hash":     transfer.TxHash,
		"transfer_id": transfer.ID,
	})
}

// Execute performs the chain call a QUEUED TokenTransfer stands for and
// advances its status: SUBMITTED with the transaction hash, or FAILED with
// the error. The approval flow, the admin endpoints and the retry sweep all
// settle intents through here.
func (s *TokenService) Execute(ctx context.Context, t *models.TokenTransfer) error {
	var hash string
	var err error

	switch t.Kind {
	case models.TransferSubmissionReward, models.TransferManualReward, models.TransferAdminMint:
		hash, err = s.Chain.Mint(ctx, t.Recipient, t.Amount)
	case models.TransferAdminTransfer:
		hash, err = s.Chain.Transfer(ctx, t.Recipient, t.Amount)
	case models.TransferStake:
		hash, err = s.Chain.Stake(ctx, t.Amount)
	case models.TransferUnstake:
		hash, err = s.Chain.Unstake(ctx, t.Amount)
	case models.TransferClaimRewards:
		hash, err = s.Chain.ClaimRewards(ctx)
	default:
		err = errors.New("unknown transfer kind " + string(t.Kind))
	}

	if err != nil {
		t.Status = models.TransferFailed
		t.Error = err.Error()
		if dbErr := s.DB.Model(t).Updates(map[string]interface{}{
			"status": models.TransferFailed,
			"error":  t.Error,
		}).Error; dbErr != nil {
			log.Printf("DB Error marking transfer %s failed: %v", t.ID, dbErr)
		}
		return err
	}

	t.Status = models.TransferSubmitted
	t.TxHash = &hash
	if dbErr := s.DB.Model(t).Updates(map[string]interface{}{
		"status":  models.TransferSubmitted,
		"tx_hash": hash,
		"error":   "",
	}).Error; dbErr != nil {
		log.Printf("DB Error marking transfer %s submitted: %v", t.ID, dbErr)
	}
	return nil
}
