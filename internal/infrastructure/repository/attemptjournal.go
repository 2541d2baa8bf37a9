package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/checkout/internal/infrastructure/persistence/models"
	"github.com/orris-inc/checkout/internal/shared/db"
)

type AttemptJournal struct {
	db *gorm.DB
}

func NewAttemptJournal(db *gorm.DB) *AttemptJournal {
	return &AttemptJournal{db: db}
}

func (r *AttemptJournal) Append(ctx context.Context, t *payment.Transition) error {
	model, err := mappers.TransitionToModel(t)
	if err != nil {
		return err
	}

	if err := db.Conn(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to append checkout attempt: %w", err)
	}

	t.ID = model.ID
	t.CreatedAt = model.CreatedAt
	return nil
}

func (r *AttemptJournal) ListByProcessID(ctx context.Context, processID string) ([]*payment.Transition, error) {
	var rows []*models.CheckoutAttemptModel
	err := db.Conn(ctx, r.db).
		Where("process_id = ?", processID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout attempts: %w", err)
	}

	out := make([]*payment.Transition, 0, len(rows))
	for _, row := range rows {
		t, err := mappers.TransitionToDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ListByRequestID returns every transition recorded by one SDK instance.
func (r *AttemptJournal) ListByRequestID(ctx context.Context, requestID string) ([]*payment.Transition, error) {
	var rows []*models.CheckoutAttemptModel
	err := db.Conn(ctx, r.db).
		Where("request_id = ?", requestID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkout attempts: %w", err)
	}

	out := make([]*payment.Transition, 0, len(rows))
	for _, row := range rows {
		t, err := mappers.TransitionToDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
