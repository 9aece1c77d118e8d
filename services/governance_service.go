// kodata-dao/services/governance_service.go
package services

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"kodata-dao/middleware"
	"kodata-dao/models"
)

// GovernanceService runs the DAO's lightweight off-chain voting. Votes are
// weighted by contributor reputation earned through approved submissions.
type GovernanceService struct {
	DB *gorm.DB
}

func NewGovernanceService(db *gorm.DB) *GovernanceService {
	return &GovernanceService{DB: db}
}

// ListProposals returns all proposals, newest first.
func (s *GovernanceService) ListProposals(c *fiber.Ctx) error {
	query := s.DB.Order("created_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var proposals []models.Proposal
	if err := query.Find(&proposals).Error; err != nil {
		log.Printf("DB Error fetching proposals: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch proposals"})
	}
	return c.JSON(proposals)
}

// CreateProposal opens a new proposal for voting.
func (s *GovernanceService) CreateProposal(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	proposal := &models.Proposal{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		ProposerID:  middleware.UserID(c),
		Status:      models.ProposalActive,
	}
	if err := s.DB.Create(proposal).Error; err != nil {
		log.Printf("DB Error creating proposal: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create proposal"})
	}

	return c.Status(fiber.StatusCreated).JSON(proposal)
}

// Vote casts a reputation-weighted vote. One vote per user per proposal.
func (s *GovernanceService) Vote(c *fiber.Ctx) error {
	proposalID := c.Params("id")
	userID := middleware.UserID(c)

	var req struct {
		Support bool `json:"support"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unknown user"})
	}
	weight := int64(1) + user.Reputation

	var vote models.Vote
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var proposal models.Proposal
		if err := tx.First(&proposal, "id = ?", proposalID).Error; err != nil {
			return err
		}
		if proposal.Status != models.ProposalActive {
			return errProposalClosed
		}

		var existing int64
		tx.Model(&models.Vote{}).
			Where("proposal_id = ? AND user_id = ?", proposalID, userID).
			Count(&existing)
		if existing > 0 {
			return errAlreadyVoted
		}

		vote = models.Vote{
			ID:         uuid.NewString(),
			ProposalID: proposalID,
			UserID:     userID,
			Support:    req.Support,
			Weight:     weight,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}

		column := "no_weight"
		if req.Support {
			column = "yes_weight"
		}
		return tx.Model(&models.Proposal{}).Where("id = ?", proposalID).
			Update(column, gorm.Expr(column+" + ?", weight)).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Proposal not found"})
		case errors.Is(err, errProposalClosed):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proposal is not open for voting"})
		case errors.Is(err, errAlreadyVoted):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already voted on this proposal"})
		default:
			log.Printf("DB Error voting on %s: %v", proposalID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record vote"})
		}
	}

	return c.JSON(fiber.Map{"message": "Vote recorded", "vote": vote})
}

// CloseProposal tallies and finalizes a proposal (Admin only).
func (s *GovernanceService) CloseProposal(c *fiber.Ctx) error {
	id := c.Params("id")

	var proposal models.Proposal
	if err := s.DB.First(&proposal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Proposal not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
	}
	if proposal.Status != models.ProposalActive {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "proposal already closed"})
	}

	proposal.Status = models.ProposalRejected
	if proposal.YesWeight > proposal.NoWeight {
		proposal.Status = models.ProposalPassed
	}
	if err := s.DB.Model(&proposal).Update("status", proposal.Status).Error; err != nil {
		log.Printf("DB Error closing proposal %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to close proposal"})
	}

	log.Printf("🗳️ [Governance] proposal %s closed as %s (%d yes / %d no)",
		id, proposal.Status, proposal.YesWeight, proposal.NoWeight)
	return c.JSON(fiber.Map{"message": "Proposal closed", "proposal": proposal})
}

var (
	errProposalClosed = errors.New("proposal closed")
	errAlreadyVoted   = errors.New("already voted")
)
