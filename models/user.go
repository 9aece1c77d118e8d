// models/user.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// User is created on the first successful signature-verified login and is
// never deleted. The EVM wallet is the login identity; the Starknet address
// is where reward tokens get minted; the Bitcoin address is informational.
type User struct {
	ID            string `gorm:"primaryKey;type:uuid;not null" json:"id"`
	WalletAddress string `gorm:"type:varchar(64);not null;uniqueIndex" json:"wallet_address"` // EVM, lowercased

	StarknetAddress string `gorm:"type:varchar(80)" json:"starknet_address,omitempty"`
	BitcoinAddress  string `gorm:"type:varchar(80)" json:"bitcoin_address,omitempty"`

	Username string `gorm:"type:varchar(64);index" json:"username,omitempty"`
	IsAdmin  bool   `gorm:"default:false" json:"is_admin"`

	// Reputation mirrors the side-chain counter; bumped by the relayer.
	Reputation int64 `gorm:"default:0" json:"reputation"`
	// Credits hold reward value that could not be delivered on-chain
	// (missing Starknet address or failed mint) so approvals are never lost.
	Credits float64 `gorm:"default:0" json:"credits"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
