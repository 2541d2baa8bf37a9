package checkout

import (
	"context"
	"maps"

	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/id"
)

// Step names reported with failures.
const (
	StepValidate          = "validatePaymentRequest"
	StepFetchBusiness     = "fetchBusiness"
	StepResolveCustomer   = "resolveCustomer"
	StepCreateOrder       = "createOrder"
	StepCreatePayment     = "createPayment"
	StepFingerprint       = "deviceFingerprint"
	StepRoute             = "submitRouter"
	StepResume            = "resumeCheckout"
	StepChallenge         = "handle3dsRedirect"
	StepIframeLoad        = "iframeLoad"
	StepVerify            = "verify3dsTransaction"
	StepChallengeFormPost = "submitChallengeForm"
)

// Outcome is the result of a payment attempt or a verification.
type Outcome struct {
	ProcessID string                  `json:"process_id"`
	State     vo.State                `json:"state"`
	Response  *payment.RouterResponse `json:"response"`
	// VerificationStatus is the HTTP status of the verification poll, when one ran.
	VerificationStatus int `json:"verification_status,omitempty"`
}

// attempt is the accumulated context of one run through the state machine.
type attempt struct {
	processID string
	state     vo.State
	snapshot  map[string]any
}

func newAttempt(from vo.State) *attempt {
	processID := id.NewProcessID()
	return &attempt{
		processID: processID,
		state:     from,
		snapshot:  map[string]any{"process_id": processID},
	}
}

func (a *attempt) record(key string, value any) {
	a.snapshot[key] = value
}

func (a *attempt) metadata() map[string]any {
	out := maps.Clone(a.snapshot)
	out["state"] = a.state.String()
	return out
}

func (a *attempt) outcome(resp *payment.RouterResponse) *Outcome {
	return &Outcome{ProcessID: a.processID, State: a.state, Response: resp}
}

// transition moves the attempt and journals the move. Journal failures are
// logged only.
func (o *Orchestrator) transition(ctx context.Context, a *attempt, to vo.State, step string) {
	from := a.state
	a.state = to

	o.logger.Debugw("checkout transition",
		"process_id", a.processID,
		"from", from,
		"to", to,
		"step", step,
	)

	if o.journal == nil {
		return
	}

	err := o.journal.Append(ctx, &payment.Transition{
		RequestID: o.requestID,
		ProcessID: a.processID,
		From:      from,
		To:        to,
		Step:      step,
		Snapshot:  a.metadata(),
	})
	if err != nil {
		o.logger.Warnw("failed to journal checkout transition",
			"process_id", a.processID,
			"step", step,
			"error", err,
		)
	}
}

// fail reports err for step and returns it as a locked CheckoutError
// carrying the attempt snapshot.
func (o *Orchestrator) fail(ctx context.Context, a *attempt, step string, code apperrors.ErrorCode, err error) error {
	metadata := a.metadata()
	wrapped := apperrors.Wrap(err, code, apperrors.Locked(), apperrors.WithDetails(map[string]any{
		"step":     step,
		"snapshot": metadata,
	}))

	o.logger.Errorw("checkout step failed",
		"process_id", a.processID,
		"step", step,
		"code", wrapped.Code,
		"status_code", wrapped.StatusCode,
		"error", err,
	)
	o.Report(ctx, step, wrapped, metadata)
	return wrapped
}

// absorb reports a best-effort failure without surfacing it.
func (o *Orchestrator) absorb(ctx context.Context, a *attempt, step string, code apperrors.ErrorCode, err error) {
	metadata := a.metadata()
	wrapped := apperrors.Wrap(err, code)

	o.logger.Warnw("checkout step failed, continuing",
		"process_id", a.processID,
		"step", step,
		"error", err,
	)
	o.Report(ctx, step, wrapped, metadata)
}

// stepForCode names the bootstrap step that produced err.
func stepForCode(err error) string {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeMerchantFetchFailed:
		return StepFetchBusiness
	case apperrors.CodeCustomerOperation:
		return StepResolveCustomer
	default:
		return "bootstrap"
	}
}
