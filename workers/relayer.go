// kodata-dao/workers/relayer.go
package workers

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"kodata-dao/chain"
	"kodata-dao/metrics"
	"kodata-dao/models"
)

// ReputationPointsPerApproval is the flat reputation awarded per approved
// submission, mirrored locally and on the side chain.
const ReputationPointsPerApproval = 10

// Relayer forwards approved submissions to the Lisk reputation contract.
// One consumer goroutine drains a buffered channel; the scheduler re-feeds
// anything that was dropped or lost across a restart.
type Relayer struct {
	DB         *gorm.DB
	Reputation chain.ReputationClient

	queue chan string
}

func NewRelayer(db *gorm.DB, reputation chain.ReputationClient) *Relayer {
	return &Relayer{
		DB:         db,
		Reputation: reputation,
		queue:      make(chan string, 256),
	}
}

// Enqueue hands a submission id to the relayer. Returns false when the queue
// is full; callers rely on the scheduler sweep to retry later.
func (r *Relayer) Enqueue(submissionID string) bool {
	select {
	case r.queue <- submissionID:
		metrics.SetRelayerQueueDepth(len(r.queue))
		return true
	default:
		return false
	}
}

// QueueDepth reports the current backlog.
func (r *Relayer) QueueDepth() int {
	return len(r.queue)
}

// Start runs the consumer until ctx is cancelled.
func (r *Relayer) Start(ctx context.Context) {
	go func() {
		log.Println("🔁 [Relayer] reputation relay started")
		for {
			select {
			case <-ctx.Done():
				log.Println("⏹️ [Relayer] stopped")
				return
			case id := <-r.queue:
				metrics.SetRelayerQueueDepth(len(r.queue))
				r.Process(ctx, id)
			}
		}
	}()
}

// Process relays one approved submission. Safe to call twice with the same
// id: a submission that already has a reputation transaction is skipped.
func (r *Relayer) Process(ctx context.Context, submissionID string) {
	var submission models.Submission
	if err := r.DB.First(&submission, "id = ?", submissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ [Relayer] submission %s vanished, skipping", submissionID)
			return
		}
		log.Printf("❌ [Relayer] DB error loading %s: %v", submissionID, err)
		return
	}

	if submission.Status != models.SubmissionApproved {
		log.Printf("⚠️ [Relayer] submission %s is %s, skipping", submissionID, submission.Status)
		return
	}
	if submission.ReputationTxHash != nil {
		return // already relayed
	}

	var user models.User
	if err := r.DB.First(&user, "id = ?", submission.UserID).Error; err != nil {
		log.Printf("❌ [Relayer] submitter missing for %s: %v", submissionID, err)
		return
	}

	res := r.Reputation.IncreaseReputation(ctx, user.WalletAddress, ReputationPointsPerApproval)

	repStatus := models.ReputationStatus(res.Status)
	if res.Status == chain.TxUnavailable {
		log.Printf("⚠️ [Relayer] side chain unreachable for %s, recorded placeholder %s (reputation NOT on chain)", submissionID, res.Hash)
	}

	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Submission{}).Where("id = ?", submission.ID).
			Updates(map[string]interface{}{
				"reputation_tx_hash": res.Hash,
				"reputation_status":  repStatus,
			}).Error; err != nil {
			return err
		}
		if res.Status == chain.TxFailed {
			return nil // reverted on chain, keep the local counter honest
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("reputation", gorm.Expr("reputation + ?", ReputationPointsPerApproval)).Error
	})
	if err != nil {
		log.Printf("❌ [Relayer] DB error recording relay for %s: %v", submissionID, err)
		return
	}

	metrics.RecordReputationUpdate(string(res.Status))
	log.Printf("✅ [Relayer] %s: +%d reputation for %s (%s, %s)",
		submissionID, ReputationPointsPerApproval, user.WalletAddress, res.Status, res.Hash)
}
