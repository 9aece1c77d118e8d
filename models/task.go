// models/task.go
package models

// TaskStatus gates whether a task still accepts submissions
type TaskStatus string

const (
	TaskOpen   TaskStatus = "open"
	TaskClosed TaskStatus = "closed"
)

// Task is a unit of work the DAO wants done; submissions reference it.
type Task struct {
	ID          string     `gorm:"primaryKey;type:uuid;not null" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	RewardNote  string     `gorm:"type:text" json:"reward_note,omitempty"` // human-readable, e.g. "100 MAD per accepted dataset"
	Status      TaskStatus `gorm:"type:varchar(16);not null;default:'open';index" json:"status"`
	CreatedBy   string     `gorm:"type:uuid;not null" json:"created_by"`

	Timestamps
}
