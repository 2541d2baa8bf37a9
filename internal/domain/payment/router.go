package payment

import (
	"encoding/json"
	"fmt"

	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
)

type Decline struct {
	ErrorType string `json:"error_type"`
	Reason    string `json:"reason,omitempty"`
}

type RedirectToURL struct {
	URL                        string `json:"url"`
	VerifyTransactionStatusURL string `json:"verify_transaction_status_url,omitempty"`
}

type IframeResources struct {
	Iframe                     string `json:"iframe"`
	VerifyTransactionStatusURL string `json:"verify_transaction_status_url,omitempty"`
}

type NextAction struct {
	RedirectToURL   *RedirectToURL   `json:"redirect_to_url,omitempty"`
	IframeResources *IframeResources `json:"iframe_resources,omitempty"`
}

type nestedResult struct {
	IsRouteFinished   bool   `json:"is_route_finished"`
	TransactionStatus string `json:"transaction_status,omitempty"`
}

type checkoutRef struct {
	ID string `json:"id"`
}

// RouterResponse is a router or verification answer. Body keeps the exact
// bytes so callers receive the response as the backend sent it.
type RouterResponse struct {
	Body json.RawMessage `json:"-"`

	Decline           *Decline       `json:"decline,omitempty"`
	IsRouteFinished   bool           `json:"is_route_finished"`
	TransactionStatus string         `json:"transaction_status,omitempty"`
	Status            string         `json:"status,omitempty"`
	CheckoutID        string         `json:"checkout_id,omitempty"`
	Checkout          *checkoutRef   `json:"checkout,omitempty"`
	Response          *nestedResult  `json:"response,omitempty"`
	NextAction        *NextAction    `json:"next_action,omitempty"`
	RedirectToURL     *RedirectToURL `json:"redirect_to_url,omitempty"`

	// Challenge form fields returned by verification while a 3DS step is pending.
	RedirectPostURL string `json:"redirect_post_url,omitempty"`
	Creq            string `json:"creq,omitempty"`
	TermURL         string `json:"term_url,omitempty"`
}

// ParseRouterResponse decodes body. An empty body yields an empty response.
func ParseRouterResponse(body []byte) (*RouterResponse, error) {
	resp := &RouterResponse{Body: append(json.RawMessage(nil), body...)}
	if len(body) == 0 {
		resp.Body = json.RawMessage("{}")
		return resp, nil
	}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("decode router response: %w", err)
	}
	return resp, nil
}

// MarshalJSON returns the original body.
func (r *RouterResponse) MarshalJSON() ([]byte, error) {
	if len(r.Body) == 0 {
		return []byte("{}"), nil
	}
	return r.Body, nil
}

// Map decodes the original body into a generic map.
func (r *RouterResponse) Map() map[string]any {
	out := map[string]any{}
	_ = json.Unmarshal(r.Body, &out)
	return out
}

// IsHardDeclined reports decline.error_type == "Hard".
func (r *RouterResponse) IsHardDeclined() bool {
	return r.Decline != nil && vo.IsDeclineHard(r.Decline.ErrorType)
}

// RouteFinished checks both the nested and the top-level flag.
func (r *RouterResponse) RouteFinished() bool {
	return r.IsRouteFinished || (r.Response != nil && r.Response.IsRouteFinished)
}

// TxStatus returns the first status found at top level, nested, or as plain status.
func (r *RouterResponse) TxStatus() vo.TransactionStatus {
	switch {
	case r.TransactionStatus != "":
		return vo.TransactionStatus(r.TransactionStatus)
	case r.Response != nil && r.Response.TransactionStatus != "":
		return vo.TransactionStatus(r.Response.TransactionStatus)
	default:
		return vo.TransactionStatus(r.Status)
	}
}

// ResumeID returns the checkout id from the top level or the nested checkout.
func (r *RouterResponse) ResumeID() string {
	if r.CheckoutID != "" {
		return r.CheckoutID
	}
	if r.Checkout != nil {
		return r.Checkout.ID
	}
	return ""
}

// IframeChallenge returns the inline challenge fragment, if any.
func (r *RouterResponse) IframeChallenge() string {
	if r.NextAction == nil || r.NextAction.IframeResources == nil {
		return ""
	}
	return r.NextAction.IframeResources.Iframe
}

// RedirectURL returns the full-page navigation target, if any.
func (r *RouterResponse) RedirectURL() string {
	if r.NextAction != nil && r.NextAction.RedirectToURL != nil && r.NextAction.RedirectToURL.URL != "" {
		return r.NextAction.RedirectToURL.URL
	}
	if r.RedirectToURL != nil {
		return r.RedirectToURL.URL
	}
	return ""
}

// VerificationURL resolves where the challenge result is polled:
// the iframe resources first, then the redirect action, then the redirect url itself.
func (r *RouterResponse) VerificationURL() string {
	if r.NextAction != nil {
		if res := r.NextAction.IframeResources; res != nil && res.VerifyTransactionStatusURL != "" {
			return res.VerifyTransactionStatusURL
		}
		if red := r.NextAction.RedirectToURL; red != nil && red.VerifyTransactionStatusURL != "" {
			return red.VerifyTransactionStatusURL
		}
	}
	if r.RedirectToURL != nil {
		if r.RedirectToURL.VerifyTransactionStatusURL != "" {
			return r.RedirectToURL.VerifyTransactionStatusURL
		}
		return r.RedirectToURL.URL
	}
	return ""
}

// HasChallengeForm reports a pending verification that asks for a form post.
func (r *RouterResponse) HasChallengeForm() bool {
	return r.TxStatus().IsPending() && r.RedirectPostURL != ""
}

// Classify decides whether a router response is settled or must be resumed.
// Precedence: hard decline, route finished, Pending, Success/Authorized,
// then a checkout id means RESUMING. Anything else is SETTLED.
func Classify(resp *RouterResponse) vo.State {
	if resp == nil {
		return vo.StateSettled
	}
	switch {
	case resp.IsHardDeclined():
		return vo.StateSettled
	case resp.RouteFinished():
		return vo.StateSettled
	case resp.TxStatus().IsPending():
		return vo.StateSettled
	case resp.TxStatus().IsApproved():
		return vo.StateSettled
	case resp.ResumeID() != "":
		return vo.StateResuming
	default:
		return vo.StateSettled
	}
}

// NextStep maps a response that will not be resumed to its final state.
// A hard decline never starts a challenge.
func NextStep(resp *RouterResponse) vo.State {
	if resp == nil || resp.IsHardDeclined() {
		return vo.StateSettled
	}
	if resp.IframeChallenge() != "" {
		return vo.StateChallenging
	}
	if resp.RedirectURL() != "" {
		return vo.StateRedirecting
	}
	return vo.StateSettled
}
