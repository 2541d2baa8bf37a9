// Package checkout is the merchant-facing checkout SDK. A Client is configured
// once with the merchant's public API key and then pays, verifies pending 3DS
// challenges and manages saved cards for the customers of that merchant.
package checkout

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	appcheckout "github.com/orris-inc/checkout/internal/application/checkout"
	"github.com/orris-inc/checkout/internal/application/tokenization"
	"github.com/orris-inc/checkout/internal/domain/challenge"
	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/infrastructure/backend"
	"github.com/orris-inc/checkout/internal/infrastructure/cache"
	"github.com/orris-inc/checkout/internal/infrastructure/telemetry"
	"github.com/orris-inc/checkout/internal/shared/constants"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

// Facade step names reported with failures.
const (
	StepConfigure          = "configure"
	StepPay                = "payment"
	StepCollect            = "collectCardFields"
	StepMount              = "mountCardFields"
	StepSecureToken        = "secureToken"
	StepListCards          = "listCards"
	StepSaveCard           = "saveCard"
	StepRemoveCard         = "removeCard"
	StepListPaymentMethods = "listPaymentMethods"
)

// Config identifies the merchant and tunes the orchestration.
type Config struct {
	APIURL       string
	PublicAPIKey string
	// Env is "sandbox" or "production".
	Env          string
	Locale       string
	Timeout      time.Duration
	MaxResumes   int
	ChallengeKey string
	ChallengeTTL time.Duration
	// ChallengeTimeout bounds the wait for a challenge frame to load.
	ChallengeTimeout time.Duration
}

// Callback receives every outcome returned by Pay.
type Callback func(outcome *Outcome)

// Client is one shopper's checkout: it owns that shopper's mounted fields,
// pending challenge slot and rendered page. Its methods are safe for
// concurrent use, and vault calls always run as the customer of the call.
// Serve several shoppers with one Client each. Configure may be called again
// to switch merchants; caches of the previous configuration are dropped.
type Client struct {
	httpClient    *http.Client
	storage       challenge.Storage
	document      Document
	vault         tokenization.Vault
	fingerprinter DeviceFingerprinter
	reporter      telemetry.Reporter
	journal       payment.AttemptJournal
	callback      Callback
	logger        logger.Interface
	pollInterval  time.Duration
	vaultTimeout  time.Duration

	tokens *tokenization.Manager

	mu      sync.RWMutex
	session *session
}

// session is everything bound to one configuration.
type session struct {
	config       Config
	backend      *backend.Client
	orchestrator *appcheckout.Orchestrator
	store        *challenge.Store

	tokenMu      sync.Mutex
	tokenSources map[string]oauth2.TokenSource
	vaultReady   bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for backend calls.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithStorage sets where the pending 3DS challenge is persisted. It must be
// shared by every Client that may resume a challenge. Defaults to process
// memory.
func WithStorage(s Storage) Option {
	return func(client *Client) {
		client.storage = s
	}
}

// WithDocument sets where challenges are shown and redirects performed.
func WithDocument(d Document) Option {
	return func(client *Client) {
		client.document = d
	}
}

// WithVault replaces the merchant's tokenization vault.
func WithVault(v Vault) Option {
	return func(client *Client) {
		client.vault = v
	}
}

func WithFingerprinter(f DeviceFingerprinter) Option {
	return func(client *Client) {
		client.fingerprinter = f
	}
}

func WithReporter(r telemetry.Reporter) Option {
	return func(client *Client) {
		client.reporter = r
	}
}

func WithLogger(l logger.Interface) Option {
	return func(client *Client) {
		client.logger = l
	}
}

// WithCallback is invoked once for each Pay that resolves with an outcome.
func WithCallback(cb Callback) Option {
	return func(client *Client) {
		client.callback = cb
	}
}

func WithJournal(j payment.AttemptJournal) Option {
	return func(client *Client) {
		client.journal = j
	}
}

// WithPollInterval sets how often a mounting field is checked before its
// prefilled value is written.
func WithPollInterval(d time.Duration) Option {
	return func(client *Client) {
		client.pollInterval = d
	}
}

// WithVaultTimeout bounds each call to the merchant's tokenization vault.
func WithVaultTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.vaultTimeout = d
	}
}

// New creates an unconfigured client. Every operation except Configure fails
// with SDK_NOT_CONFIGURED until Configure succeeds.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		reporter:   telemetry.NopReporter{},
		logger:     logger.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage == nil {
		c.storage = cache.NewMemoryStorage()
	}
	c.logger = c.logger.Named("checkout")

	c.tokens = tokenization.NewManager(c.vault, c.logger, tokenization.WithPollInterval(c.pollInterval))
	return c
}

// Configure binds the client to a merchant.
func (c *Client) Configure(cfg Config) error {
	if cfg.PublicAPIKey == "" {
		err := apperrors.New(apperrors.CodeNotConfigured,
			apperrors.WithStatus(http.StatusBadRequest),
			apperrors.WithMessage("a public API key is required"),
			apperrors.Locked(),
		)
		c.reporter.Report(context.Background(), telemetry.NewEvent(err, StepConfigure, nil))
		return err
	}
	if cfg.Env == "" {
		cfg.Env = constants.CheckoutEnvSandbox
	}
	if cfg.Locale != "" {
		apperrors.SetLocale(cfg.Locale)
	}

	backendOpts := []backend.Option{backend.WithHTTPClient(c.httpClient)}
	if cfg.Timeout > 0 {
		backendOpts = append(backendOpts, backend.WithTimeout(cfg.Timeout))
	}

	s := &session{
		config:       cfg,
		backend:      backend.NewClient(cfg.APIURL, cfg.PublicAPIKey, backendOpts...),
		store:        challenge.NewStore(c.storage, challenge.WithKey(cfg.ChallengeKey), challenge.WithTTL(cfg.ChallengeTTL)),
		tokenSources: make(map[string]oauth2.TokenSource),
		vaultReady:   c.vault != nil,
	}

	orchestratorOpts := []appcheckout.Option{
		appcheckout.WithReporter(c.reporter),
		appcheckout.WithMaxResumes(cfg.MaxResumes),
		appcheckout.WithChallengeTimeout(cfg.ChallengeTimeout),
	}
	if c.document != nil {
		orchestratorOpts = append(orchestratorOpts, appcheckout.WithDocument(c.document))
	}
	if c.fingerprinter != nil {
		orchestratorOpts = append(orchestratorOpts, appcheckout.WithFingerprinter(c.fingerprinter))
	}
	if c.journal != nil {
		orchestratorOpts = append(orchestratorOpts, appcheckout.WithJournal(c.journal))
	}
	s.orchestrator = appcheckout.NewOrchestrator(s.backend, s.store, c.logger, orchestratorOpts...)

	c.mu.Lock()
	previous := c.session
	c.session = s
	c.mu.Unlock()

	if previous != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := previous.orchestrator.Close(ctx); err != nil {
			c.logger.Warnw("previous session did not stop in time", "error", err)
		}
	}

	c.logger.Infow("checkout configured",
		"env", cfg.Env,
		"request_id", s.orchestrator.RequestID())
	return nil
}

func (c *Client) current() (*session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, apperrors.New(apperrors.CodeNotConfigured,
			apperrors.WithStatus(http.StatusPreconditionFailed),
			apperrors.Locked(),
		)
	}
	return c.session, nil
}

// RequestID is the correlation id of the current configuration.
func (c *Client) RequestID() string {
	s, err := c.current()
	if err != nil {
		return ""
	}
	return s.orchestrator.RequestID()
}

// Abort cancels in-flight merchant and customer lookups.
func (c *Client) Abort() {
	if s, err := c.current(); err == nil {
		s.orchestrator.Abort()
	}
}

// Pay charges req. A card without tokens is collected first from the mounted
// "update:<id>" context of a saved card, or from the "create" context.
func (c *Client) Pay(ctx context.Context, req *Request) (*Outcome, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}

	// tokens may still be missing here; the orchestrator checks them after collection
	if err := req.ValidateShape(); err != nil {
		return nil, c.fail(ctx, s, appcheckout.StepValidate, apperrors.CodeInvalidRequest, err)
	}

	charge, err := c.withCollectedCard(ctx, s, req)
	if err != nil {
		return nil, err
	}

	outcome, err := s.orchestrator.Pay(ctx, charge)
	if err != nil {
		return nil, err
	}

	if c.callback != nil {
		c.callback(outcome)
	}
	return outcome, nil
}

// withCollectedCard returns req, or a copy carrying freshly collected tokens.
func (c *Client) withCollectedCard(ctx context.Context, s *session, req *Request) (*Request, error) {
	if req == nil || !req.Card.NeedsCollect() {
		return req, nil
	}

	key := CreateContext
	if req.Card.ID != "" {
		key = UpdateContext(req.Card.ID)
		if !c.tokens.IsMounted(key) {
			// saved card charged by id alone
			return req, nil
		}
	}

	record, err := s.orchestrator.ResolveCustomer(ctx, &req.Customer)
	if err != nil {
		return nil, c.fail(ctx, s, StepCollect, apperrors.CodeCustomerOperation, err)
	}
	if err := c.ensureVault(ctx, s); err != nil {
		return nil, err
	}

	fields, err := c.tokens.Collect(withCustomerAuth(ctx, record.AuthToken), key)
	if err != nil {
		return nil, c.fail(ctx, s, StepCollect, apperrors.CodeCollectFailed, err)
	}

	charge := *req
	card := *req.Card
	card.Fields = fields
	charge.Card = &card
	return &charge, nil
}

// VerifyPendingChallenge resumes a challenge persisted by any client sharing
// the same storage. It returns nil when nothing is pending.
func (c *Client) VerifyPendingChallenge(ctx context.Context) (*Outcome, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}
	return s.orchestrator.VerifyPendingChallenge(ctx)
}

// ListPaymentMethods lists the alternative payment methods of the merchant.
func (c *Client) ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}

	methods, err := s.backend.ListPaymentMethods(ctx)
	if err != nil {
		return nil, c.fail(ctx, s, StepListPaymentMethods, apperrors.CodePaymentMethodsFailed, err)
	}
	return methods, nil
}

// Close unmounts every field, stops detached work and flushes telemetry.
func (c *Client) Close(ctx context.Context) error {
	c.tokens.Unmount(AllContexts)

	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		if err := s.orchestrator.Close(ctx); err != nil {
			return err
		}
	}

	if closer, ok := c.reporter.(interface{ Close(context.Context) error }); ok {
		return closer.Close(ctx)
	}
	return nil
}

// fail reports err for step and returns it as a locked CheckoutError.
func (c *Client) fail(ctx context.Context, s *session, step string, code apperrors.ErrorCode, err error) error {
	wrapped := apperrors.Wrap(err, code, apperrors.Locked())
	c.logger.Errorw("checkout operation failed",
		"step", step,
		"code", wrapped.Code,
		"error", err,
	)
	s.orchestrator.Report(ctx, step, wrapped, map[string]any{"step": step})
	return wrapped
}
