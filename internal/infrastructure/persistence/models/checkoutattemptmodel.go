package models

import (
	"time"

	"gorm.io/datatypes"
)

// CheckoutAttemptModel is one journaled state transition of a payment attempt.
type CheckoutAttemptModel struct {
	ID        uint           `gorm:"primaryKey"`
	RequestID string         `gorm:"size:64;not null;index"`
	ProcessID string         `gorm:"size:64;not null;index"`
	FromState string         `gorm:"size:32;not null"`
	ToState   string         `gorm:"size:32;not null"`
	Step      string         `gorm:"size:64"`
	Snapshot  datatypes.JSON `gorm:"type:json"`
	CreatedAt time.Time      `gorm:"index"`
}

func (CheckoutAttemptModel) TableName() string {
	return "checkout_attempts"
}
