package payment

import (
	"context"
	"time"

	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
)

// Transition is one recorded move of an attempt through the state machine.
type Transition struct {
	ID        uint
	RequestID string
	ProcessID string
	From      vo.State
	To        vo.State
	Step      string
	Snapshot  map[string]any
	CreatedAt time.Time
}

// AttemptJournal records state transitions for audit and support.
type AttemptJournal interface {
	Append(ctx context.Context, transition *Transition) error
	ListByProcessID(ctx context.Context, processID string) ([]*Transition, error)
}
