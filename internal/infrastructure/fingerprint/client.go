// Package fingerprint registers device sessions with the acquirer's
// antifraud service.
package fingerprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/shared/constants"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
)

// Client creates a session id per payment and registers it with the acquirer.
type Client struct {
	baseURL    string
	httpClient *http.Client
	newID      func() string
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
			client.httpClient.Timeout = d
		}
	}
}

// NewClient creates a fingerprint client. With an empty baseURL sessions are
// generated locally and never registered.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionRequest struct {
	SessionID  string `json:"session_id"`
	MerchantID string `json:"merchant_id"`
	PublicKey  string `json:"public_key"`
	Sandbox    bool   `json:"sandbox,omitempty"`
}

// Fingerprint returns the device session id for keys.
func (c *Client) Fingerprint(ctx context.Context, keys *payment.AcquirerKeys) (string, error) {
	if !keys.IsConfigured() {
		return "", fmt.Errorf("acquirer keys are not configured")
	}

	sessionID := c.newID()
	if c.baseURL == "" {
		return sessionID, nil
	}

	data, err := json.Marshal(sessionRequest{
		SessionID:  sessionID,
		MerchantID: keys.MerchantID,
		PublicKey:  keys.PublicKey,
		Sandbox:    keys.Sandbox,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	req.Header.Set(constants.HeaderAuthorization, constants.AuthSchemeToken+" "+keys.PublicKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.NewHTTPError(resp)
	}

	return sessionID, nil
}
