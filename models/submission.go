// models/submission.go
package models

import "time"

// SubmissionStatus follows the platform contract's status set. CHALLENGED is
// part of the on-chain enum but no API transition leads into it yet.
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "PENDING"
	SubmissionApproved   SubmissionStatus = "APPROVED"
	SubmissionRejected   SubmissionStatus = "REJECTED"
	SubmissionChallenged SubmissionStatus = "CHALLENGED"
)

// ReputationStatus records what the side-chain relay actually achieved for an
// approved submission, so an outage is never mistaken for a confirmed write.
type ReputationStatus string

const (
	ReputationUnset       ReputationStatus = ""
	ReputationConfirmed   ReputationStatus = "confirmed"
	ReputationPending     ReputationStatus = "pending"
	ReputationUnavailable ReputationStatus = "unavailable"
	ReputationFailed      ReputationStatus = "failed"
)

// Submission is a user-contributed unit of work awaiting admin review.
// Review moves it PENDING→APPROVED (mint + reputation relay) or
// PENDING→REJECTED (no side effects); both transitions are terminal.
type Submission struct {
	ID     string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	TaskID string `gorm:"type:uuid;not null;index" json:"task_id"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`

	// Payload bookkeeping: sha256 of the content plus where it landed.
	ContentHash string `gorm:"type:varchar(64);not null" json:"content_hash"`
	StorageKey  string `gorm:"type:text" json:"storage_key,omitempty"`
	StorageURL  string `gorm:"type:text" json:"storage_url,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Status       SubmissionStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	QualityScore *float64         `json:"quality_score,omitempty"`

	// Reward bookkeeping, written once during approval.
	RewardAmount float64 `json:"reward_amount"`
	RewardTxHash *string `gorm:"type:varchar(80)" json:"reward_tx_hash,omitempty"`
	RewardError  string  `gorm:"type:text" json:"reward_error,omitempty"`

	// Side-chain reputation relay outcome.
	ReputationTxHash *string          `gorm:"type:varchar(80)" json:"reputation_tx_hash,omitempty"`
	ReputationStatus ReputationStatus `gorm:"type:varchar(16)" json:"reputation_status,omitempty"`

	ReviewedBy *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote string     `gorm:"type:text" json:"review_note,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Timestamps
}
