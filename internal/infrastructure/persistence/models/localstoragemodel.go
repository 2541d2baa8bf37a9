package models

import "time"

// LocalStorageModel is a string key-value row with an optional expiry.
type LocalStorageModel struct {
	Key       string     `gorm:"primaryKey;size:191"`
	Value     string     `gorm:"type:text;not null"`
	ExpiresAt *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (LocalStorageModel) TableName() string {
	return "local_storage"
}

// Expired reports whether the row is past its expiry at now.
func (m *LocalStorageModel) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}
