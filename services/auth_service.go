// kodata-dao/services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kodata-dao/chain"
	"kodata-dao/middleware"
	"kodata-dao/models"
)

type AuthService struct {
	DB           *gorm.DB
	JWTSecret    string
	ChallengeTTL time.Duration

	adminAddresses map[string]bool
}

func NewAuthService(db *gorm.DB, jwtSecret string, challengeTTL time.Duration, adminAddresses []string) *AuthService {
	admins := make(map[string]bool, len(adminAddresses))
	for _, a := range adminAddresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			admins[a] = true
		}
	}
	if challengeTTL <= 0 {
		challengeTTL = 5 * time.Minute
	}
	return &AuthService{
		DB:             db,
		JWTSecret:      jwtSecret,
		ChallengeTTL:   challengeTTL,
		adminAddresses: admins,
	}
}

// RequestChallenge issues a fresh login message for the wallet to sign.
func (s *AuthService) RequestChallenge(c *fiber.Ctx) error {
	var req struct {
		WalletAddress string `json:"wallet_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if !common.IsHexAddress(req.WalletAddress) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "wallet_address is not a valid EVM address"})
	}
	wallet := strings.ToLower(req.WalletAddress)

	now := time.Now()
	nonce := uuid.NewString()
	challenge := &models.Challenge{
		ID:            uuid.NewString(),
		WalletAddress: wallet,
		Nonce:         nonce,
		Message: fmt.Sprintf(
			"KoData DAO wants you to sign in with your wallet:\n%s\n\nNonce: %s\nIssued At: %s",
			wallet, nonce, now.UTC().Format(time.RFC3339),
		),
		ExpiresAt: now.Add(s.ChallengeTTL),
		CreatedAt: now,
	}

	if err := s.DB.Create(challenge).Error; err != nil {
		log.Printf("DB Error creating challenge: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create challenge"})
	}

	// Stale challenges for this wallet are dead weight now.
	s.DB.Where("wallet_address = ? AND expires_at < ?", wallet, now).Delete(&models.Challenge{})

	return c.JSON(fiber.Map{
		"challenge_id": challenge.ID,
		"message":      challenge.Message,
		"expires_at":   challenge.ExpiresAt,
	})
}

// Login verifies the signed challenge and returns a bearer token. The
// challenge row is consumed on success, so a captured signature cannot be
// replayed.
func (s *AuthService) Login(c *fiber.Ctx) error {
	var req struct {
		WalletAddress   string `json:"wallet_address"`
		Signature       string `json:"signature"`
		StarknetAddress string `json:"starknet_address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if !common.IsHexAddress(req.WalletAddress) || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "wallet_address and signature are required"})
	}
	wallet := strings.ToLower(req.WalletAddress)

	var challenge models.Challenge
	err := s.DB.
		Where("wallet_address = ? AND expires_at > ?", wallet, time.Now()).
		Order("created_at DESC").
		First(&challenge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no active challenge, request a new one"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}

	signer, err := chain.RecoverPersonalSigner(challenge.Message, req.Signature)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}
	if strings.ToLower(signer.Hex()) != wallet {
		log.Printf("❌ [AUTH] signature mismatch: claimed %s, recovered %s", wallet, signer.Hex())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "signature does not match wallet"})
	}

	var user models.User
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		// Consuming the row is the replay guard; losing this race means
		// another login already used the challenge.
		res := tx.Delete(&models.Challenge{}, "id = ?", challenge.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("wallet_address = ?", wallet).First(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			user = models.User{
				ID:              uuid.NewString(),
				WalletAddress:   wallet,
				StarknetAddress: strings.TrimSpace(req.StarknetAddress),
				IsAdmin:         s.adminAddresses[wallet],
			}
			log.Printf("👤 [AUTH] first login, creating user for %s (admin=%t)", wallet, user.IsAdmin)
			return tx.Create(&user).Error
		}

		updates := map[string]interface{}{}
		if addr := strings.TrimSpace(req.StarknetAddress); addr != "" && addr != user.StarknetAddress {
			user.StarknetAddress = addr
			updates["starknet_address"] = addr
		}
		if s.adminAddresses[wallet] && !user.IsAdmin {
			user.IsAdmin = true
			updates["is_admin"] = true
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&user).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "challenge already used"})
		}
		log.Printf("DB Error on login for %s: %v", wallet, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to log in"})
	}

	token, err := middleware.IssueToken(s.JWTSecret, user.ID, user.WalletAddress, user.IsAdmin)
	if err != nil {
		log.Printf("❌ [AUTH] failed to sign token for %s: %v", wallet, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to issue token"})
	}

	log.Printf("✅ [AUTH] %s logged in", wallet)
	return c.JSON(fiber.Map{"token": token, "user": user})
}

// CleanupExpiredChallenges drops challenge rows past their TTL. Run by the
// scheduler.
func (s *AuthService) CleanupExpiredChallenges() {
	res := s.DB.Where("expires_at < ?", time.Now()).Delete(&models.Challenge{})
	if res.Error != nil {
		log.Printf("⚠️ [Scheduler] challenge cleanup failed: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 [Scheduler] removed %d expired challenges", res.RowsAffected)
	}
}
