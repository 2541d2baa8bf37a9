package checkout

import (
	"context"
	"maps"

	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/id"
)

// Pay runs one attempt: order, payment and router submission strictly in
// sequence, then resume and 3DS handling. Resume and frame-load failures are
// absorbed; every other failure is returned as a locked CheckoutError.
func (o *Orchestrator) Pay(ctx context.Context, req *payment.Request) (*Outcome, error) {
	a := newAttempt(vo.StateInit)

	if err := req.Validate(); err != nil {
		return nil, o.fail(ctx, a, StepValidate, apperrors.CodeInvalidRequest, err)
	}

	merchant, customer, err := o.Bootstrap(ctx, &req.Customer)
	if err != nil {
		return nil, o.fail(ctx, a, stepForCode(err), apperrors.CodeUnknown, err)
	}
	a.record("business_id", merchant.BusinessID)
	a.record("customer_id", customer.ID)
	o.transition(ctx, a, vo.StateCustomerResolved, StepResolveCustomer)

	orderInput := payment.NewOrderInput(req, merchant, customer)
	order, err := o.backend.CreateOrder(ctx, orderInput, id.NewIdempotencyKey())
	if err != nil {
		a.record("order_total", orderInput.Total)
		a.record("currency", orderInput.Currency)
		return nil, o.fail(ctx, a, StepCreateOrder, apperrors.CodeOrderCreationFailed, err)
	}
	a.record("order_id", order.ID)
	o.transition(ctx, a, vo.StateOrderCreated, StepCreateOrder)

	paymentInput := payment.NewPaymentInput(req, merchant, order, o.now())
	record, err := o.backend.CreatePayment(ctx, paymentInput, id.NewIdempotencyKey())
	if err != nil {
		return nil, o.fail(ctx, a, StepCreatePayment, apperrors.CodePaymentCreationFailed, err)
	}
	a.record("payment_pk", record.PK)
	o.transition(ctx, a, vo.StatePaymentCreated, StepCreatePayment)

	var fingerprint string
	if o.fingerprinter != nil && merchant.Acquirer.IsConfigured() {
		fingerprint, err = o.fingerprinter.Fingerprint(ctx, merchant.Acquirer)
		if err != nil {
			return nil, o.fail(ctx, a, StepFingerprint, apperrors.CodeFingerprintFailed, err)
		}
		a.record("device_fingerprint", fingerprint)
	}

	payload := payment.NewRouterPayload(req, merchant, customer, order, record, fingerprint)
	resp, err := o.backend.SubmitRouter(ctx, payload)
	if err != nil {
		return nil, o.fail(ctx, a, StepRoute, apperrors.CodeRouterSubmission, err)
	}
	a.record("router_response", resp.Map())
	o.transition(ctx, a, vo.StateRouted, StepRoute)

	return o.process(ctx, a, resp)
}

// process continues a routed attempt: resume while the router asks for it,
// then decide between challenge, redirect and settled.
func (o *Orchestrator) process(ctx context.Context, a *attempt, resp *payment.RouterResponse) (*Outcome, error) {
	resp = o.resume(ctx, a, resp)
	return o.handle3DS(ctx, a, resp)
}

// resume resubmits {checkout_id} while the response classifies as resumable.
// A failed resubmission is reported and the last good response is kept.
func (o *Orchestrator) resume(ctx context.Context, a *attempt, resp *payment.RouterResponse) *payment.RouterResponse {
	for resumes := 0; payment.Classify(resp) == vo.StateResuming; resumes++ {
		if resumes >= o.maxResumes {
			o.logger.Warnw("router still routing after max resumes",
				"process_id", a.processID,
				"checkout_id", resp.ResumeID(),
				"resumes", resumes,
			)
			break
		}

		checkoutID := resp.ResumeID()
		o.transition(ctx, a, vo.StateResuming, StepResume)

		next, err := o.backend.SubmitRouter(ctx, &payment.ResumePayload{CheckoutID: checkoutID})
		if err != nil {
			a.record("checkout_id", checkoutID)
			o.absorb(ctx, a, StepResume, apperrors.CodeRouterSubmission, err)
			o.transition(ctx, a, vo.StateRouted, StepResume)
			return resp
		}

		resp = next
		a.record("router_response", resp.Map())
		o.transition(ctx, a, vo.StateRouted, StepResume)
	}
	return resp
}

// handle3DS persists the verification url before showing an iframe challenge
// or navigating to a redirect. Anything else settles the attempt.
func (o *Orchestrator) handle3DS(ctx context.Context, a *attempt, resp *payment.RouterResponse) (*Outcome, error) {
	next := payment.NextStep(resp)

	switch next {
	case vo.StateChallenging:
		persisted, err := o.persistChallenge(ctx, a, resp)
		if err != nil {
			return nil, err
		}
		if err := o.showChallenge(ctx, a, resp.IframeChallenge(), persisted); err != nil {
			return nil, err
		}
	case vo.StateRedirecting:
		if _, err := o.persistChallenge(ctx, a, resp); err != nil {
			return nil, err
		}
		if o.document != nil {
			if err := o.document.Navigate(ctx, resp.RedirectURL()); err != nil {
				return nil, o.fail(ctx, a, StepChallenge, apperrors.CodeChallengeFailed, err)
			}
		}
	}

	o.transition(ctx, a, next, StepChallenge)
	return a.outcome(resp), nil
}

// persistChallenge saves the verification url and reports whether it did.
// Without a url the slot is cleared so nothing verifies a record left by an
// earlier attempt.
func (o *Orchestrator) persistChallenge(ctx context.Context, a *attempt, resp *payment.RouterResponse) (bool, error) {
	verificationURL := resp.VerificationURL()
	if verificationURL == "" {
		o.logger.Warnw("3ds step without verification url, nothing persisted",
			"process_id", a.processID)
		if err := o.store.Clear(ctx); err != nil {
			o.absorb(ctx, a, StepChallenge, apperrors.CodeChallengeFailed, err)
		}
		return false, nil
	}

	a.record("verification_url", verificationURL)
	if err := o.store.Save(ctx, verificationURL); err != nil {
		return false, o.fail(ctx, a, StepChallenge, apperrors.CodeChallengeFailed, err)
	}
	return true, nil
}

// showChallenge injects the fragment and, when a verification url was
// persisted, verifies in the background once the frame has loaded. The wait
// outlives ctx; Close ends it.
func (o *Orchestrator) showChallenge(ctx context.Context, a *attempt, fragment string, verify bool) error {
	if o.document == nil {
		o.logger.Warnw("no document configured, challenge left to the caller",
			"process_id", a.processID)
		return nil
	}

	frameCtx, cancel := context.WithTimeout(o.lifetime, o.challengeTimeout)
	loaded, err := o.document.ShowChallenge(frameCtx, fragment)
	if err != nil {
		cancel()
		return o.fail(ctx, a, StepChallenge, apperrors.CodeChallengeFailed, err)
	}

	reportCtx := context.WithoutCancel(ctx)
	detached := &attempt{
		processID: a.processID,
		state:     vo.StateChallenging,
		snapshot:  maps.Clone(a.snapshot),
	}
	o.background.Go("checkout-3ds-verify", func() {
		defer cancel()

		var loadErr error
		select {
		case loadErr = <-loaded:
		case <-frameCtx.Done():
			loadErr = frameCtx.Err()
		}
		if loadErr != nil {
			o.absorb(reportCtx, detached, StepIframeLoad, apperrors.CodeChallengeFailed, loadErr)
			return
		}
		if !verify {
			return
		}

		if _, err := o.VerifyPendingChallenge(frameCtx); err != nil {
			o.logger.Warnw("verification after challenge failed",
				"process_id", detached.processID,
				"error", err,
			)
		}
	})
	return nil
}
