package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session is the durable per-chat conversation record. One row per chat id,
// written synchronously on every transition so a restart resumes the
// dialogue at the last saved step.
type Session struct {
	ChatID    int64          `gorm:"primaryKey;autoIncrement:false" json:"chatId"`
	Flow      string         `gorm:"not null;default:'none'" json:"flow"`
	Step      string         `gorm:"not null;default:'idle'" json:"step"`
	Draft     datatypes.JSON `json:"draft"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for Session model
func (Session) TableName() string {
	return "sessions"
}
