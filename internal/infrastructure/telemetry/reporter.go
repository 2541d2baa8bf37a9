// Package telemetry sends checkout failure events to the error sink.
// Sends are detached from the caller and never fail it.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/goroutine"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

const (
	LevelError   = "error"
	LevelWarning = "warning"
)

// Event is the body posted to the telemetry sink.
type Event struct {
	Platform  string         `json:"platform"`
	Env       string         `json:"env"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	TenantID  string         `json:"tenant_id,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	ProcessID string         `json:"process_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
}

// Reporter accepts events. Implementations must not block or fail the caller.
type Reporter interface {
	Report(ctx context.Context, event Event)
}

// NewEvent builds an error event for a failed step. Code, status and system
// error of a CheckoutError are copied into the metadata.
func NewEvent(err error, step string, metadata map[string]any) Event {
	meta := make(map[string]any, len(metadata)+4)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["step"] = step

	event := Event{Level: LevelError, Name: step, Metadata: meta}
	if err == nil {
		return event
	}

	event.Message = err.Error()
	if checkoutErr := apperrors.GetCheckoutError(err); checkoutErr != nil {
		event.Name = string(checkoutErr.Code)
		event.Message = checkoutErr.Message
		meta["code"] = string(checkoutErr.Code)
		meta["status_code"] = checkoutErr.StatusCode
		if checkoutErr.SystemError != "" {
			meta["system_error"] = checkoutErr.SystemError
		}
		if cause := checkoutErr.Unwrap(); cause != nil {
			meta["cause"] = cause.Error()
		}
	}
	return event
}

// NopReporter drops every event.
type NopReporter struct{}

func (NopReporter) Report(context.Context, Event) {}

// HTTPReporter posts events to a remote sink.
type HTTPReporter struct {
	url        string
	token      string
	platform   string
	env        string
	tenantID   string
	timeout    time.Duration
	httpClient *http.Client
	logger     logger.Interface
	inflight   *goroutine.Tracker
}

// Option configures an HTTPReporter.
type Option func(*HTTPReporter)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *HTTPReporter) {
		r.httpClient = c
	}
}

// WithTimeout bounds a single send.
func WithTimeout(d time.Duration) Option {
	return func(r *HTTPReporter) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithDefaults fills platform, env and tenant id on events that leave them empty.
func WithDefaults(platform, env, tenantID string) Option {
	return func(r *HTTPReporter) {
		r.platform = platform
		r.env = env
		r.tenantID = tenantID
	}
}

func NewHTTPReporter(url, token string, log logger.Interface, opts ...Option) *HTTPReporter {
	r := &HTTPReporter{
		url:        url,
		token:      token,
		timeout:    5 * time.Second,
		httpClient: &http.Client{},
		logger:     log,
		inflight:   goroutine.NewTracker(log),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report sends event in the background. The caller's cancellation does not
// abort the send; the reporter's own timeout does.
func (r *HTTPReporter) Report(ctx context.Context, event Event) {
	if event.Platform == "" {
		event.Platform = r.platform
	}
	if event.Env == "" {
		event.Env = r.env
	}
	if event.TenantID == "" {
		event.TenantID = r.tenantID
	}

	sendCtx := context.WithoutCancel(ctx)
	r.inflight.Go("telemetry-report", func() {
		ctx, cancel := context.WithTimeout(sendCtx, r.timeout)
		defer cancel()

		if err := r.send(ctx, event); err != nil {
			r.logger.Warnw("telemetry event dropped",
				"name", event.Name,
				"request_id", event.RequestID,
				"error", err,
			)
		}
	})
}

// Close waits for in-flight sends.
func (r *HTTPReporter) Close(ctx context.Context) error {
	return r.inflight.Wait(ctx)
}

func (r *HTTPReporter) send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Token "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sink error: status=%d", resp.StatusCode)
	}
	return nil
}
