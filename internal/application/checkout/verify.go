package checkout

import (
	"context"
	"net/http"
	"net/url"

	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
)

// Challenge form field names posted to the acquirer.
const (
	formFieldCreq    = "creq"
	formFieldTermURL = "TermUrl"
)

// VerifyPendingChallenge resolves a challenge persisted by an earlier attempt,
// possibly by another instance before a full-page navigation. It returns nil
// when nothing is pending. A non-200 poll purges the record and returns the
// raw response. Otherwise the verification result continues through resume
// and 3DS handling.
func (o *Orchestrator) VerifyPendingChallenge(ctx context.Context) (*Outcome, error) {
	a := newAttempt(vo.StateRouted)

	verificationURL, ok, err := o.store.Read(ctx)
	if err != nil {
		return nil, o.fail(ctx, a, StepVerify, apperrors.CodeVerificationFailed, err)
	}
	if !ok {
		return nil, nil
	}
	a.record("verification_url", verificationURL)

	status, resp, err := o.backend.GetVerification(ctx, verificationURL)
	if err != nil {
		return nil, o.fail(ctx, a, StepVerify, apperrors.CodeVerificationFailed, err)
	}
	a.record("verification_status", status)
	a.record("router_response", resp.Map())

	if status != http.StatusOK {
		o.logger.Warnw("verification poll rejected, pending challenge purged",
			"process_id", a.processID,
			"status", status,
		)
		if err := o.store.Clear(ctx); err != nil {
			return nil, o.fail(ctx, a, StepVerify, apperrors.CodeVerificationFailed, err)
		}
		o.transition(ctx, a, vo.StateSettled, StepVerify)
		outcome := a.outcome(resp)
		outcome.VerificationStatus = status
		return outcome, nil
	}

	switch {
	case resp.HasChallengeForm():
		resp, err = o.submitChallengeForm(ctx, a, resp)
		if err != nil {
			return nil, err
		}
	default:
		// Approved, declined or pending without a form: the slot is done.
		if err := o.store.Clear(ctx); err != nil {
			return nil, o.fail(ctx, a, StepVerify, apperrors.CodeVerificationFailed, err)
		}
	}

	o.transition(ctx, a, vo.StateRouted, StepVerify)

	outcome, err := o.process(ctx, a, resp)
	if outcome != nil {
		outcome.VerificationStatus = status
	}
	return outcome, err
}

// submitChallengeForm posts creq and TermUrl to the acquirer-supplied url.
// This path has not been exercised against a live 3DS provider. The pending
// record is kept while the answer is still pending.
func (o *Orchestrator) submitChallengeForm(ctx context.Context, a *attempt, resp *payment.RouterResponse) (*payment.RouterResponse, error) {
	form := url.Values{}
	form.Set(formFieldCreq, resp.Creq)
	form.Set(formFieldTermURL, resp.TermURL)

	a.record("redirect_post_url", resp.RedirectPostURL)
	status, body, err := o.backend.SubmitChallengeForm(ctx, resp.RedirectPostURL, form)
	if err != nil {
		return nil, o.fail(ctx, a, StepChallengeFormPost, apperrors.CodeChallengeFailed, err)
	}
	a.record("challenge_form_status", status)

	answer, err := payment.ParseRouterResponse(body)
	if err != nil || status < 200 || status >= 300 {
		o.logger.Warnw("challenge form answer not usable, keeping verification body",
			"process_id", a.processID,
			"status", status,
		)
		return resp, nil
	}

	if !answer.TxStatus().IsPending() {
		if err := o.store.Clear(ctx); err != nil {
			return nil, o.fail(ctx, a, StepChallengeFormPost, apperrors.CodeVerificationFailed, err)
		}
	}
	return answer, nil
}
