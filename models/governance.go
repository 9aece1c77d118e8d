// models/governance.go
package models

import "time"

type ProposalStatus string

const (
	ProposalActive   ProposalStatus = "active"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a lightweight DAO governance item. Voting is off-chain for now;
// tallies are reputation-weighted.
type Proposal struct {
	ID          string         `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	ProposerID  string         `gorm:"type:uuid;not null;index" json:"proposer_id"`
	Status      ProposalStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`

	YesWeight int64 `gorm:"default:0" json:"yes_weight"`
	NoWeight  int64 `gorm:"default:0" json:"no_weight"`

	Timestamps
}

// Vote records one user's vote on a proposal; one row per (proposal, user).
type Vote struct {
	ID         string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	ProposalID string    `gorm:"type:uuid;not null;uniqueIndex:idx_proposal_voter" json:"proposal_id"`
	UserID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_proposal_voter" json:"user_id"`
	Support    bool      `json:"support"`
	Weight     int64     `json:"weight"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
