// Package vault binds tokenization containers to the merchant's REST vault.
// Field values are posted straight to the vault and only tokens come back.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/orris-inc/checkout/internal/application/tokenization"
	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/shared/constants"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
)

// DefaultTable is the vault table holding card records.
const DefaultTable = "cards"

// Client creates collect containers against one vault.
type Client struct {
	coords     payment.VaultCoordinates
	table      string
	tokens     TokenSource
	httpClient *http.Client
}

// TokenSource returns the bearer token of one vault call. The caller is
// identified through ctx.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// StaticTokenSource authorizes every call with the token of ts.
func StaticTokenSource(ts oauth2.TokenSource) TokenSource {
	return staticTokenSource{ts}
}

type staticTokenSource struct {
	oauth2.TokenSource
}

func (s staticTokenSource) Token(context.Context) (*oauth2.Token, error) {
	return s.TokenSource.Token()
}

// Option is a function that configures the Client.
type Option func(*clientOptions)

type clientOptions struct {
	base    *http.Client
	table   string
	timeout time.Duration
}

// WithHTTPClient sets the base HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.base = c
	}
}

// WithTable overrides the vault table.
func WithTable(table string) Option {
	return func(o *clientOptions) {
		if table != "" {
			o.table = table
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// NewClient returns a vault client authorizing every call with a bearer
// token from ts.
func NewClient(coords payment.VaultCoordinates, ts TokenSource, opts ...Option) *Client {
	o := &clientOptions{
		base:    &http.Client{},
		table:   DefaultTable,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	httpClient := *o.base
	httpClient.Timeout = o.timeout

	return &Client{
		coords:     coords,
		table:      o.table,
		tokens:     ts,
		httpClient: &httpClient,
	}
}

// NewCollectContainer implements tokenization.Vault.
func (c *Client) NewCollectContainer(ctx context.Context) (tokenization.Container, error) {
	if c.coords.ID == "" || c.coords.URL == "" {
		return nil, fmt.Errorf("vault coordinates are not configured")
	}
	return &collectContainer{client: c}, nil
}

type insertRequest struct {
	Records      []insertRecord `json:"records"`
	Tokenization bool           `json:"tokenization"`
}

type insertRecord struct {
	Fields map[tokenization.FieldType]string `json:"fields"`
}

type insertResponse struct {
	Records []struct {
		ID     string                            `json:"id"`
		Tokens map[tokenization.FieldType]string `json:"tokens"`
	} `json:"records"`
}

func (c *Client) insert(ctx context.Context, fields map[tokenization.FieldType]string) (map[tokenization.FieldType]string, error) {
	data, err := json.Marshal(insertRequest{
		Records:      []insertRecord{{Fields: fields}},
		Tokenization: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	target := fmt.Sprintf("%s/v1/vaults/%s/%s", strings.TrimRight(c.coords.URL, "/"), c.coords.ID, c.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("authorize vault call: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewHTTPError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result insertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, fmt.Errorf("vault returned no records")
	}
	return result.Records[0].Tokens, nil
}

type collectContainer struct {
	client *Client

	mu       sync.Mutex
	elements []*element
}

func (c *collectContainer) Create(spec tokenization.FieldSpec) (tokenization.Element, error) {
	el := &element{spec: spec}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.elements {
		if existing.spec.Type == spec.Type && !existing.isDetached() {
			return nil, fmt.Errorf("field %s already exists in container", spec.Type)
		}
	}
	c.elements = append(c.elements, el)
	return el, nil
}

// Collect posts every mounted field value and returns the vault tokens.
func (c *collectContainer) Collect(ctx context.Context) (map[tokenization.FieldType]string, error) {
	c.mu.Lock()
	fields := make(map[tokenization.FieldType]string, len(c.elements))
	var missing []string
	for _, el := range c.elements {
		value, mounted := el.snapshot()
		if !mounted {
			continue
		}
		if value == "" {
			if el.spec.Required {
				missing = append(missing, string(el.spec.Type))
			}
			continue
		}
		fields[el.spec.Type] = value
	}
	c.mu.Unlock()

	if len(missing) > 0 {
		return nil, apperrors.New(apperrors.CodeCollectFailed,
			apperrors.WithStatus(400),
			apperrors.WithDetails(map[string]any{"missing_fields": missing}))
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no field values to collect")
	}

	return c.client.insert(ctx, fields)
}

type element struct {
	spec tokenization.FieldSpec

	mu       sync.Mutex
	target   string
	mounted  bool
	detached bool
	value    string
}

func (e *element) Mount(target string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detached {
		return fmt.Errorf("field %s was unmounted", e.spec.Type)
	}
	e.target = target
	e.mounted = true
	return nil
}

func (e *element) IsMounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounted
}

func (e *element) SetValue(value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.mounted {
		return fmt.Errorf("field %s is not mounted", e.spec.Type)
	}
	e.value = value
	return nil
}

// Unmount clears the held value so it cannot be collected again.
func (e *element) Unmount() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mounted = false
	e.detached = true
	e.value = ""
	return nil
}

func (e *element) isDetached() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detached
}

func (e *element) snapshot() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, e.mounted
}
