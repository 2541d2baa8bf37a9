// Package checkout drives a payment attempt from request to settled outcome:
// customer resolution, order and payment creation, router submission, resume
// and the 3DS detour.
package checkout

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/orris-inc/checkout/internal/domain/challenge"
	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/infrastructure/telemetry"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/goroutine"
	"github.com/orris-inc/checkout/internal/shared/id"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

const (
	// DefaultMaxResumes bounds resubmissions for a router that never finishes.
	DefaultMaxResumes = 5
	// DefaultChallengeTimeout bounds the wait for a challenge frame to load.
	DefaultChallengeTimeout = challenge.DefaultTTL
)

// Orchestrator runs payment attempts for one merchant session. Merchant and
// customer lookups are cached for its lifetime and never shared with another
// instance.
type Orchestrator struct {
	backend       Backend
	store         *challenge.Store
	fingerprinter DeviceFingerprinter
	document      Document
	reporter      telemetry.Reporter
	journal       payment.AttemptJournal
	logger        logger.Interface

	maxResumes       int
	challengeTimeout time.Duration
	now              func() time.Time

	requestID string

	// lookups is cancelled by Abort; lifetime by Close.
	lookups      context.Context
	abort        context.CancelFunc
	lifetime     context.Context
	endLifetime  context.CancelFunc
	background   *goroutine.Tracker
	lookupGroup  singleflight.Group
	mu           sync.Mutex
	merchant     *payment.MerchantContext
	customers    map[string]*payment.CustomerRecord
	lastCustomer string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithFingerprinter(f DeviceFingerprinter) Option {
	return func(o *Orchestrator) {
		o.fingerprinter = f
	}
}

func WithDocument(d Document) Option {
	return func(o *Orchestrator) {
		o.document = d
	}
}

func WithReporter(r telemetry.Reporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithJournal records every state transition.
func WithJournal(j payment.AttemptJournal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

func WithMaxResumes(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxResumes = n
		}
	}
}

func WithChallengeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.challengeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func NewOrchestrator(backend Backend, store *challenge.Store, log logger.Interface, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:          backend,
		store:            store,
		reporter:         telemetry.NopReporter{},
		logger:           log,
		maxResumes:       DefaultMaxResumes,
		challengeTimeout: DefaultChallengeTimeout,
		now:              time.Now,
		customers:        make(map[string]*payment.CustomerRecord),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.requestID = id.NewRequestID(o.now())
	o.logger = o.logger.With("request_id", o.requestID)
	o.lookups, o.abort = context.WithCancel(context.Background())
	o.lifetime, o.endLifetime = context.WithCancel(context.Background())
	o.background = goroutine.NewTracker(o.logger)

	return o
}

// RequestID is the correlation id attached to every telemetry event.
func (o *Orchestrator) RequestID() string {
	return o.requestID
}

// Abort cancels in-flight and future merchant and customer lookups. Orders and
// payments already created on the backend are not rolled back.
func (o *Orchestrator) Abort() {
	o.abort()
}

// Close stops pending challenge waits and blocks until detached work returns
// or ctx ends.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.abort()
	o.endLifetime()
	return o.background.Wait(ctx)
}

// withLookupCancel ties ctx to the instance abort signal.
func (o *Orchestrator) withLookupCancel(ctx context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancelCause(ctx)
	if o.lookups.Err() != nil {
		cancel(context.Canceled)
	}
	stop := context.AfterFunc(o.lookups, func() {
		cancel(context.Canceled)
	})
	return merged, func() {
		stop()
		cancel(nil)
	}
}

// Merchant returns the merchant context, fetching it on first use.
func (o *Orchestrator) Merchant(ctx context.Context) (*payment.MerchantContext, error) {
	o.mu.Lock()
	cached := o.merchant
	o.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := o.lookupGroup.Do("merchant", func() (any, error) {
		lookupCtx, cancel := o.withLookupCancel(ctx)
		defer cancel()

		merchant, err := o.backend.FetchMerchant(lookupCtx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeMerchantFetchFailed, apperrors.Locked())
		}

		o.mu.Lock()
		o.merchant = merchant
		o.mu.Unlock()

		o.logger.Infow("merchant context loaded", "business_id", merchant.BusinessID)
		return merchant, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*payment.MerchantContext), nil
}

// ResolveCustomer registers or fetches the customer. Records are memoized by
// email, so a second call for the same email makes no network call.
func (o *Orchestrator) ResolveCustomer(ctx context.Context, customer *payment.Customer) (*payment.CustomerRecord, error) {
	if customer == nil || customer.Email == "" {
		return nil, apperrors.New(apperrors.CodeCustomerOperation,
			apperrors.WithStatus(400),
			apperrors.WithMessage("customer email is required"),
			apperrors.Locked(),
		)
	}

	o.mu.Lock()
	cached := o.customers[customer.Email]
	o.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := o.lookupGroup.Do("customer:"+customer.Email, func() (any, error) {
		lookupCtx, cancel := o.withLookupCancel(ctx)
		defer cancel()

		record, err := o.backend.RegisterCustomer(lookupCtx, customer)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeCustomerOperation, apperrors.Locked())
		}

		o.mu.Lock()
		o.customers[customer.Email] = record
		o.lastCustomer = customer.Email
		o.mu.Unlock()

		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*payment.CustomerRecord), nil
}

// CurrentCustomer returns the most recently resolved customer, if any.
func (o *Orchestrator) CurrentCustomer() (*payment.CustomerRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	record, ok := o.customers[o.lastCustomer]
	return record, ok
}

// Bootstrap loads the merchant and resolves the customer concurrently.
func (o *Orchestrator) Bootstrap(ctx context.Context, customer *payment.Customer) (*payment.MerchantContext, *payment.CustomerRecord, error) {
	var (
		merchant *payment.MerchantContext
		record   *payment.CustomerRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		merchant, err = o.Merchant(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		record, err = o.ResolveCustomer(gctx, customer)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return merchant, record, nil
}

// Report sends a failure event for step. Used by callers that wrap the
// orchestrator with their own steps.
func (o *Orchestrator) Report(ctx context.Context, step string, err error, metadata map[string]any) {
	event := telemetry.NewEvent(err, step, metadata)
	event.RequestID = o.requestID
	if record, ok := o.CurrentCustomer(); ok {
		event.UserID = record.ID
	}
	if processID, ok := metadata["process_id"].(string); ok {
		event.ProcessID = processID
	}
	o.reporter.Report(ctx, event)
}
