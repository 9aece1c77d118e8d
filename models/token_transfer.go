// models/token_transfer.go
package models

// TransferKind classifies every MAD token movement the platform initiates.
type TransferKind string

const (
	TransferSubmissionReward TransferKind = "submission_reward"
	TransferManualReward     TransferKind = "manual_reward"
	TransferAdminMint        TransferKind = "admin_mint"
	TransferAdminTransfer    TransferKind = "admin_transfer"
	TransferStake            TransferKind = "stake"
	TransferUnstake          TransferKind = "unstake"
	TransferClaimRewards     TransferKind = "claim_rewards"
)

// TransferStatus is the lifecycle of a token movement. QUEUED rows double as
// the reward outbox: they are written in the same DB transaction that claims
// a submission, and a scheduler sweep retries any left behind by a crash.
type TransferStatus string

const (
	TransferQueued    TransferStatus = "QUEUED"
	TransferSubmitted TransferStatus = "SUBMITTED"
	TransferConfirmed TransferStatus = "CONFIRMED"
	TransferFailed    TransferStatus = "FAILED"
)

// TokenTransfer is the append-only log of on-chain MAD movements.
// Rows are never deleted; status and tx columns are filled in as the
// external call progresses.
type TokenTransfer struct {
	ID   string       `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Kind TransferKind `gorm:"type:varchar(32);not null;index" json:"kind"`

	UserID       *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	SubmissionID *string `gorm:"type:uuid;index" json:"submission_id,omitempty"`

	Recipient string  `gorm:"type:varchar(80);index" json:"recipient,omitempty"` // Starknet address
	Amount    float64 `json:"amount"`

	Status TransferStatus `gorm:"type:varchar(16);not null;default:'QUEUED';index" json:"status"`
	TxHash *string        `gorm:"type:varchar(80)" json:"tx_hash,omitempty"`
	Error  string         `gorm:"type:text" json:"error,omitempty"`

	// Raw metadata straight from the caller (reason strings, stake params...).
	Metadata *string `gorm:"type:jsonb" json:"metadata,omitempty"`

	Timestamps
}
