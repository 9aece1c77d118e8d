// models/challenge.go
package models

import "time"

// Challenge is a single-use login nonce. The row is deleted the moment a
// signature over its message verifies, so a replayed signature finds nothing
// to match against. Expired rows are swept opportunistically.
type Challenge struct {
	ID            string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	WalletAddress string    `gorm:"type:varchar(64);not null;index" json:"wallet_address"`
	Nonce         string    `gorm:"type:varchar(64);not null" json:"-"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	ExpiresAt     time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
