// Package backend is the JSON client for the payment-orchestration API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/shared/constants"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/version"
)

// Client talks to the orchestration backend with the merchant's public key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option is a function that configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			// copy so a shared client keeps its own timeout
			copied := *client.httpClient
			copied.Timeout = d
			client.httpClient = &copied
		}
	}
}

// NewClient creates a backend client.
//
// Parameters:
//   - baseURL: the API base URL (e.g., "https://api.example.com")
//   - apiKey: the merchant public API key
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// requestOption adjusts a single request.
type requestOption func(*http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

func withBearer(token string) requestOption {
	return withHeader(constants.HeaderAuthorization, constants.AuthSchemeBearer+" "+token)
}

// FetchMerchant retrieves the merchant context bound to the API key.
func (c *Client) FetchMerchant(ctx context.Context) (*payment.MerchantContext, error) {
	var merchant payment.MerchantContext
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/v1/merchants/me", nil, &merchant); err != nil {
		return nil, fmt.Errorf("fetch merchant: %w", err)
	}
	return &merchant, nil
}

// RegisterCustomer fetches the customer by email or registers it.
func (c *Client) RegisterCustomer(ctx context.Context, customer *payment.Customer) (*payment.CustomerRecord, error) {
	var record payment.CustomerRecord
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/customers", customer, &record); err != nil {
		return nil, fmt.Errorf("register customer: %w", err)
	}
	return &record, nil
}

// CreateOrder creates an order. The idempotency key lets the backend drop a
// retried submission of the same attempt.
func (c *Client) CreateOrder(ctx context.Context, input *payment.OrderInput, idempotencyKey string) (*payment.Order, error) {
	var order payment.Order
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/orders", input, &order,
		withHeader(constants.HeaderIdempotencyKey, idempotencyKey))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &order, nil
}

// CreatePayment creates the payment record for an order.
func (c *Client) CreatePayment(ctx context.Context, input *payment.PaymentInput, idempotencyKey string) (*payment.Record, error) {
	var record payment.Record
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/payments", input, &record,
		withHeader(constants.HeaderIdempotencyKey, idempotencyKey))
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return &record, nil
}

// SubmitRouter posts a checkout or a resume payload to the router.
func (c *Client) SubmitRouter(ctx context.Context, payload any) (*payment.RouterResponse, error) {
	body, err := c.doRaw(ctx, http.MethodPost, c.baseURL+"/v1/checkout/router", payload)
	if err != nil {
		return nil, fmt.Errorf("submit router: %w", err)
	}
	resp, err := payment.ParseRouterResponse(body)
	if err != nil {
		return nil, fmt.Errorf("submit router: %w", err)
	}
	return resp, nil
}

// GetVerification polls a server supplied verification URL. Unlike the other
// calls a non-2xx status is not an error: the status and body are returned as is.
func (c *Client) GetVerification(ctx context.Context, verificationURL string) (int, *payment.RouterResponse, error) {
	target, err := c.resolve(verificationURL)
	if err != nil {
		return 0, nil, fmt.Errorf("get verification: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("get verification: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("get verification: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("get verification: read response: %w", err)
	}

	parsed, err := payment.ParseRouterResponse(body)
	if err != nil {
		// keep the raw text so the caller still receives what the server said
		raw, _ := json.Marshal(map[string]string{"body": string(body)})
		parsed, _ = payment.ParseRouterResponse(raw)
	}
	return resp.StatusCode, parsed, nil
}

// SubmitChallengeForm posts the creq/TermUrl form of a pending challenge to
// the acquirer supplied URL and returns the raw answer.
func (c *Client) SubmitChallengeForm(ctx context.Context, postURL string, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("submit challenge form: create request: %w", err)
	}
	req.Header.Set(constants.HeaderContentType, "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("submit challenge form: send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("submit challenge form: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// SecureToken issues a short lived token for the customer's card operations.
func (c *Client) SecureToken(ctx context.Context, customerAuthToken string) (*payment.SecureToken, error) {
	body := map[string]string{"customer_auth_token": customerAuthToken}

	var token payment.SecureToken
	if err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/secure-token", body, &token); err != nil {
		return nil, fmt.Errorf("secure token: %w", err)
	}
	return &token, nil
}

// ListCards lists the customer's saved cards.
func (c *Client) ListCards(ctx context.Context, secureToken string) ([]payment.SavedCard, error) {
	var result struct {
		Cards []payment.SavedCard `json:"cards"`
	}
	err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/v1/customers/cards", nil, &result, withBearer(secureToken))
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return result.Cards, nil
}

// SaveCard stores tokenized card fields for the customer.
func (c *Client) SaveCard(ctx context.Context, secureToken string, card *payment.TokenizedCard) (*payment.SavedCard, error) {
	var saved payment.SavedCard
	err := c.doRequest(ctx, http.MethodPost, c.baseURL+"/v1/customers/cards", card, &saved, withBearer(secureToken))
	if err != nil {
		return nil, fmt.Errorf("save card: %w", err)
	}
	return &saved, nil
}

// RemoveCard deletes a saved card.
func (c *Client) RemoveCard(ctx context.Context, secureToken, cardID string) error {
	target := fmt.Sprintf("%s/v1/customers/cards/%s", c.baseURL, url.PathEscape(cardID))
	if err := c.doRequest(ctx, http.MethodDelete, target, nil, nil, withBearer(secureToken)); err != nil {
		return fmt.Errorf("remove card: %w", err)
	}
	return nil
}

// ListPaymentMethods lists the alternative payment methods of the merchant.
func (c *Client) ListPaymentMethods(ctx context.Context) ([]payment.PaymentMethod, error) {
	var result struct {
		PaymentMethods []payment.PaymentMethod `json:"payment_methods"`
	}
	if err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/v1/payment-methods", nil, &result); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return result.PaymentMethods, nil
}

// resolve turns a relative verification path into an absolute URL.
func (c *Client) resolve(ref string) (string, error) {
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	target, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	if target.IsAbs() {
		return target.String(), nil
	}
	if strings.HasPrefix(ref, "/") {
		// keep any path prefix of the base url
		return c.baseURL + ref, nil
	}
	return base.ResolveReference(target).String(), nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any, opts ...requestOption) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set(constants.HeaderAuthorization, constants.AuthSchemeToken+" "+c.apiKey)
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderUserAgent, version.UserAgent())
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// doRaw performs an HTTP request and returns the body of a 2xx response.
// Any other status becomes an *errors.HTTPError.
func (c *Client) doRaw(ctx context.Context, method, target string, body any, opts ...requestOption) ([]byte, error) {
	req, err := c.newRequest(ctx, method, target, body, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewHTTPError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return respBody, nil
}

// doRequest performs an HTTP request and decodes the response into result.
func (c *Client) doRequest(ctx context.Context, method, target string, body any, result any, opts ...requestOption) error {
	respBody, err := c.doRaw(ctx, method, target, body, opts...)
	if err != nil {
		return err
	}

	if result == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
