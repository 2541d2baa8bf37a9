package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orris-inc/checkout/internal/domain/challenge"
	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	"github.com/orris-inc/checkout/internal/infrastructure/persistence/models"
	shareddb "github.com/orris-inc/checkout/internal/shared/db"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	err = db.AutoMigrate(&models.LocalStorageModel{}, &models.CheckoutAttemptModel{})
	require.NoError(t, err)

	return db
}

func TestKVStorage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	s := NewKVStorageWithClock(setupTestDB(t), func() time.Time { return now })

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := s.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "slot", "first", time.Minute))
		value, ok, err := s.Get(ctx, "slot")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "first", value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "slot", "second", time.Minute))
		value, _, err := s.Get(ctx, "slot")
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("expired row is removed on read", func(t *testing.T) {
		now = now.Add(time.Minute)
		_, ok, err := s.Get(ctx, "slot")
		require.NoError(t, err)
		assert.False(t, ok)

		var count int64
		require.NoError(t, s.db.Model(&models.LocalStorageModel{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "forever", "v", 0))
		require.NoError(t, s.Delete(ctx, "forever"))
		require.NoError(t, s.Delete(ctx, "forever"))
		_, ok, err := s.Get(ctx, "forever")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestKVStorage_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC)
	s := NewKVStorageWithClock(setupTestDB(t), func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "short", "v", time.Second))
	require.NoError(t, s.Set(ctx, "long", "v", time.Hour))
	require.NoError(t, s.Set(ctx, "forever", "v", 0))

	now = now.Add(time.Minute)
	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestKVStorage_BacksChallengeStore(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	first := challenge.NewStore(NewKVStorage(db))
	require.NoError(t, first.Save(ctx, "/v1/verify/xyz"))

	// a new store over the same table sees the record
	second := challenge.NewStore(NewKVStorage(db))
	url, ok, err := second.Read(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/v1/verify/xyz", url)
}

func TestKVStorage_Transaction(t *testing.T) {
	db := setupTestDB(t)
	s := NewKVStorage(db)
	tx := shareddb.NewTransactor(db)

	err := tx.Within(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Set(ctx, "tx", "v", 0))
		// a read inside the transaction joins it and sees the write
		v, ok, err := s.Get(ctx, "tx")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "v", v)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, ok, err := s.Get(context.Background(), "tx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttemptJournal(t *testing.T) {
	ctx := context.Background()
	journal := NewAttemptJournal(setupTestDB(t))

	transitions := []*payment.Transition{
		{RequestID: "req_1", ProcessID: "p1", From: vo.StateInit, To: vo.StateCustomerResolved, Step: "resolveCustomer",
			Snapshot: map[string]any{"email": "a@b.com"}},
		{RequestID: "req_1", ProcessID: "p1", From: vo.StateCustomerResolved, To: vo.StateOrderCreated, Step: "createOrder"},
		{RequestID: "req_1", ProcessID: "p2", From: vo.StateInit, To: vo.StateCustomerResolved, Step: "resolveCustomer"},
	}
	for _, tr := range transitions {
		require.NoError(t, journal.Append(ctx, tr))
		assert.NotZero(t, tr.ID)
	}

	list, err := journal.ListByProcessID(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, vo.StateInit, list[0].From)
	assert.Equal(t, vo.StateOrderCreated, list[1].To)
	assert.Equal(t, "a@b.com", list[0].Snapshot["email"])
	assert.Empty(t, list[1].Snapshot)

	all, err := journal.ListByRequestID(ctx, "req_1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := journal.ListByProcessID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
