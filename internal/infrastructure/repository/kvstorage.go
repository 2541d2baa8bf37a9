package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orris-inc/checkout/internal/infrastructure/persistence/models"
	"github.com/orris-inc/checkout/internal/shared/db"
)

// KVStorage keeps string values in the local_storage table so a pending
// challenge survives a process restart.
type KVStorage struct {
	db  *gorm.DB
	tx  *db.Transactor
	now func() time.Time
}

func NewKVStorage(conn *gorm.DB) *KVStorage {
	return NewKVStorageWithClock(conn, time.Now)
}

// NewKVStorageWithClock is used by tests that control expiry.
func NewKVStorageWithClock(conn *gorm.DB, now func() time.Time) *KVStorage {
	return &KVStorage{db: conn, tx: db.NewTransactor(conn), now: now}
}

// Get returns the value of key. An expired row is deleted in the same
// transaction as the read and reported as missing.
func (s *KVStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		var model models.LocalStorageModel
		err := db.Conn(ctx, s.db).Where("`key` = ?", key).First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to get storage key: %w", err)
		}

		if model.Expired(s.now()) {
			return s.Delete(ctx, key)
		}

		value, found = model.Value, true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return value, found, nil
}

// Set upserts key. A ttl of zero stores the value without expiry.
func (s *KVStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := s.now()
	model := &models.LocalStorageModel{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		model.ExpiresAt = &expiresAt
	}

	err := db.Conn(ctx, s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to set storage key: %w", err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := db.Conn(ctx, s.db).
		Where("`key` = ?", key).
		Delete(&models.LocalStorageModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete storage key: %w", err)
	}
	return nil
}

// PurgeExpired removes every row past its expiry and returns the count.
func (s *KVStorage) PurgeExpired(ctx context.Context) (int64, error) {
	result := db.Conn(ctx, s.db).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.now()).
		Delete(&models.LocalStorageModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired keys: %w", result.Error)
	}
	return result.RowsAffected, nil
}
