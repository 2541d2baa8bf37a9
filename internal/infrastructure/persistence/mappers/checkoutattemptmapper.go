package mappers

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	"github.com/orris-inc/checkout/internal/infrastructure/persistence/models"
)

func TransitionToModel(t *payment.Transition) (*models.CheckoutAttemptModel, error) {
	model := &models.CheckoutAttemptModel{
		ID:        t.ID,
		RequestID: t.RequestID,
		ProcessID: t.ProcessID,
		FromState: t.From.String(),
		ToState:   t.To.String(),
		Step:      t.Step,
		CreatedAt: t.CreatedAt,
	}

	snapshot := t.Snapshot
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	model.Snapshot = datatypes.JSON(data)

	return model, nil
}

func TransitionToDomain(model *models.CheckoutAttemptModel) (*payment.Transition, error) {
	t := &payment.Transition{
		ID:        model.ID,
		RequestID: model.RequestID,
		ProcessID: model.ProcessID,
		From:      vo.State(model.FromState),
		To:        vo.State(model.ToState),
		Step:      model.Step,
		CreatedAt: model.CreatedAt,
	}

	if len(model.Snapshot) > 0 {
		if err := json.Unmarshal(model.Snapshot, &t.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
	}
	if len(t.Snapshot) == 0 {
		t.Snapshot = nil
	}

	return t, nil
}
