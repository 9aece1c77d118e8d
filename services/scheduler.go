// kodata-dao/services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"kodata-dao/chain"
	"kodata-dao/models"
)

// Scheduler runs the reconcile sweeps that pick up whatever a crash or an
// outage left behind: QUEUED reward intents that were never executed,
// SUBMITTED transfers awaiting a receipt, approved submissions the relayer
// never saw, and expired login challenges.
type Scheduler struct {
	DB      *gorm.DB
	Tokens  *TokenService
	Auth    *AuthService
	Relayer RewardEnqueuer

	sched gocron.Scheduler
}

func NewScheduler(db *gorm.DB, tokens *TokenService, auth *AuthService, relayer RewardEnqueuer) *Scheduler {
	return &Scheduler{DB: db, Tokens: tokens, Auth: auth, Relayer: relayer}
}

func (s *Scheduler) Start() {
	sched, _ := gocron.NewScheduler()
	s.sched = sched

	// Every minute: execute reward intents a crash left behind.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(s.RetryQueuedTransfers),
	)

	// Every 2 minutes: settle SUBMITTED transfers from chain receipts.
	_, _ = sched.NewJob(
		gocron.DurationJob(2*time.Minute),
		gocron.NewTask(s.ConfirmSubmittedTransfers),
	)

	// Every 5 minutes: re-feed the relayer with approved submissions that
	// never got a reputation transaction.
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(s.RequeueMissingReputation),
	)

	// Every 10 minutes: drop expired login challenges.
	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(s.Auth.CleanupExpiredChallenges),
	)

	sched.Start()
	log.Println("⏱️ [Scheduler] reconcile sweeps started")
}

func (s *Scheduler) Stop() {
	if s.sched != nil {
		_ = s.sched.Shutdown()
	}
}

// RetryQueuedTransfers executes QUEUED intents older than a grace period.
// Fresh rows are skipped because their request is usually still in flight.
func (s *Scheduler) RetryQueuedTransfers() {
	cutoff := time.Now().Add(-2 * time.Minute)

	var transfers []models.TokenTransfer
	err := s.DB.
		Where("status = ? AND updated_at < ?", models.TransferQueued, cutoff).
		Order("created_at ASC").
		Limit(25).
		Find(&transfers).Error
	if err != nil {
		log.Printf("[Scheduler] DB error loading queued transfers: %v", err)
		return
	}

	for i := range transfers {
		t := &transfers[i]
		log.Printf("🔁 [Scheduler] retrying %s transfer %s (%.2f MAD → %s)", t.Kind, t.ID, t.Amount, t.Recipient)

		if err := s.Tokens.Execute(context.Background(), t); err != nil {
			log.Printf("[Scheduler] transfer %s failed: %v", t.ID, err)
			s.settleRewardFailure(t, err.Error())
			continue
		}
		s.recordRewardSubmission(t)
	}
}

// ConfirmSubmittedTransfers polls Starknet receipts for SUBMITTED transfers
// and moves them to CONFIRMED or FAILED.
func (s *Scheduler) ConfirmSubmittedTransfers() {
	var transfers []models.TokenTransfer
	err := s.DB.
		Where("status = ?", models.TransferSubmitted).
		Order("created_at ASC").
		Limit(50).
		Find(&transfers).Error
	if err != nil {
		log.Printf("[Scheduler] DB error loading submitted transfers: %v", err)
		return
	}

	for i := range transfers {
		t := &transfers[i]
		if t.TxHash == nil {
			continue
		}

		status, err := s.Tokens.Chain.TransactionStatus(context.Background(), *t.TxHash)
		if err != nil {
			log.Printf("[Scheduler] receipt check for %s failed: %v", *t.TxHash, err)
			continue
		}

		switch status {
		case chain.TxConfirmed:
			if err := s.DB.Model(t).Update("status", models.TransferConfirmed).Error; err != nil {
				log.Printf("[Scheduler] DB error confirming %s: %v", t.ID, err)
			} else {
				log.Printf("✅ [Scheduler] transfer %s confirmed (%s)", t.ID, *t.TxHash)
			}
		case chain.TxFailed:
			if err := s.DB.Model(t).Updates(map[string]interface{}{
				"status": models.TransferFailed,
				"error":  "transaction reverted on chain",
			}).Error; err != nil {
				log.Printf("[Scheduler] DB error failing %s: %v", t.ID, err)
				continue
			}
			s.settleRewardFailure(t, "transaction reverted on chain")
		}
	}
}

// RequeueMissingReputation finds approved submissions with no reputation
// transaction and feeds them back to the relayer. Covers dropped enqueues
// and restarts.
func (s *Scheduler) RequeueMissingReputation() {
	var submissions []models.Submission
	err := s.DB.
		Where("status = ? AND reputation_tx_hash IS NULL", models.SubmissionApproved).
		Order("reviewed_at ASC").
		Limit(50).
		Find(&submissions).Error
	if err != nil {
		log.Printf("[Scheduler] DB error loading unrelayed submissions: %v", err)
		return
	}

	requeued := 0
	for _, sub := range submissions {
		if !s.Relayer.Enqueue(sub.ID) {
			break // queue full, the next sweep will catch the rest
		}
		requeued++
	}
	if requeued > 0 {
		log.Printf("🔁 [Scheduler] re-enqueued %d submissions for reputation relay", requeued)
	}
}

// recordRewardSubmission mirrors a swept mint's tx hash onto its submission.
func (s *Scheduler) recordRewardSubmission(t *models.TokenTransfer) {
	if t.Kind != models.TransferSubmissionReward || t.SubmissionID == nil || t.TxHash == nil {
		return
	}
	if err := s.DB.Model(&models.Submission{}).Where("id = ?", *t.SubmissionID).
		Update("reward_tx_hash", *t.TxHash).Error; err != nil {
		log.Printf("[Scheduler] DB error storing reward tx on %s: %v", *t.SubmissionID, err)
	}
}

// settleRewardFailure credits an undeliverable reward off-chain so approval
// never silently loses the payout.
func (s *Scheduler) settleRewardFailure(t *models.TokenTransfer, reason string) {
	if t.Kind != models.TransferSubmissionReward && t.Kind != models.TransferManualReward {
		return
	}
	if t.UserID == nil {
		return
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", *t.UserID).
			Update("credits", gorm.Expr("credits + ?", t.Amount)).Error; err != nil {
			return err
		}
		if t.SubmissionID != nil {
			return tx.Model(&models.Submission{}).Where("id = ?", *t.SubmissionID).
				Update("reward_error", reason).Error
		}
		return nil
	})
	if err != nil {
		log.Printf("[Scheduler] DB error settling failed reward %s: %v", t.ID, err)
		return
	}
	log.Printf("⚠️ [Scheduler] reward %s credited off-chain after failure: %s", t.ID, reason)
}
