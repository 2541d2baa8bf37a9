package checkout

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/checkout/internal/domain/challenge"
	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/infrastructure/cache"
	"github.com/orris-inc/checkout/internal/infrastructure/telemetry"
	"github.com/orris-inc/checkout/internal/shared/logger"
)

type fakeBackend struct {
	mu sync.Mutex

	merchant     *payment.MerchantContext
	merchantErr  error
	customerErr  error
	orderErr     error
	paymentErr   error
	routerAnswer func(call int, payload any) (*payment.RouterResponse, error)
	verifyAnswer func(url string) (int, *payment.RouterResponse, error)
	formAnswer   func(postURL string, form url.Values) (int, []byte, error)

	merchantCalls  int
	customerCalls  int
	orderKeys      []string
	paymentInputs  []*payment.PaymentInput
	routerPayloads []any
	verifyURLs     []string
	forms          []url.Values
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		merchant: &payment.MerchantContext{
			BusinessID: "biz_1",
			BusinessPK: 7,
			Currency:   "COP",
		},
	}
}

func (b *fakeBackend) FetchMerchant(ctx context.Context) (*payment.MerchantContext, error) {
	b.mu.Lock()
	b.merchantCalls++
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.merchantErr != nil {
		return nil, b.merchantErr
	}
	return b.merchant, nil
}

func (b *fakeBackend) RegisterCustomer(ctx context.Context, customer *payment.Customer) (*payment.CustomerRecord, error) {
	b.mu.Lock()
	b.customerCalls++
	b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.customerErr != nil {
		return nil, b.customerErr
	}
	return &payment.CustomerRecord{ID: "cus_" + customer.Email, AuthToken: "auth_1", Email: customer.Email}, nil
}

func (b *fakeBackend) CreateOrder(_ context.Context, _ *payment.OrderInput, key string) (*payment.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderKeys = append(b.orderKeys, key)
	if b.orderErr != nil {
		return nil, b.orderErr
	}
	return &payment.Order{ID: "ord_1"}, nil
}

func (b *fakeBackend) CreatePayment(_ context.Context, input *payment.PaymentInput, _ string) (*payment.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paymentInputs = append(b.paymentInputs, input)
	if b.paymentErr != nil {
		return nil, b.paymentErr
	}
	return &payment.Record{PK: 99, OrderID: input.OrderID}, nil
}

func (b *fakeBackend) SubmitRouter(_ context.Context, payload any) (*payment.RouterResponse, error) {
	b.mu.Lock()
	b.routerPayloads = append(b.routerPayloads, payload)
	call := len(b.routerPayloads)
	answer := b.routerAnswer
	b.mu.Unlock()

	if answer == nil {
		return payment.ParseRouterResponse([]byte(`{"transaction_status":"Success","is_route_finished":true}`))
	}
	return answer(call, payload)
}

func (b *fakeBackend) GetVerification(_ context.Context, verificationURL string) (int, *payment.RouterResponse, error) {
	b.mu.Lock()
	b.verifyURLs = append(b.verifyURLs, verificationURL)
	answer := b.verifyAnswer
	b.mu.Unlock()

	if answer == nil {
		resp, _ := payment.ParseRouterResponse([]byte(`{"transaction_status":"Success"}`))
		return 200, resp, nil
	}
	return answer(verificationURL)
}

func (b *fakeBackend) SubmitChallengeForm(_ context.Context, postURL string, form url.Values) (int, []byte, error) {
	b.mu.Lock()
	b.forms = append(b.forms, form)
	answer := b.formAnswer
	b.mu.Unlock()

	if answer == nil {
		return 200, []byte(`{"transaction_status":"Success"}`), nil
	}
	return answer(postURL, form)
}

func (b *fakeBackend) verifyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.verifyURLs)
}

func (b *fakeBackend) routerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.routerPayloads)
}

type fakeDocument struct {
	mu        sync.Mutex
	fragments []string
	navigated []string
	loaded    chan error
	showErr   error
}

func newFakeDocument() *fakeDocument {
	return &fakeDocument{loaded: make(chan error, 1)}
}

func (d *fakeDocument) ShowChallenge(_ context.Context, fragment string) (<-chan error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.showErr != nil {
		return nil, d.showErr
	}
	d.fragments = append(d.fragments, fragment)
	return d.loaded, nil
}

func (d *fakeDocument) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, url)
	return nil
}

type recordingReporter struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (r *recordingReporter) Report(_ context.Context, event telemetry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingReporter) steps() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	steps := make([]string, 0, len(r.events))
	for _, e := range r.events {
		steps = append(steps, e.Metadata["step"].(string))
	}
	return steps
}

type memoryJournal struct {
	mu          sync.Mutex
	transitions []*payment.Transition
}

func (j *memoryJournal) Append(_ context.Context, t *payment.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, t)
	return nil
}

func (j *memoryJournal) ListByProcessID(_ context.Context, processID string) ([]*payment.Transition, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*payment.Transition
	for _, t := range j.transitions {
		if t.ProcessID == processID {
			out = append(out, t)
		}
	}
	return out, nil
}

type harness struct {
	orchestrator *Orchestrator
	backend      *fakeBackend
	document     *fakeDocument
	reporter     *recordingReporter
	journal      *memoryJournal
	store        *challenge.Store
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		backend:  newFakeBackend(),
		document: newFakeDocument(),
		reporter: &recordingReporter{},
		journal:  &memoryJournal{},
		store:    challenge.NewStore(cache.NewMemoryStorage()),
	}

	base := []Option{
		WithDocument(h.document),
		WithReporter(h.reporter),
		WithJournal(h.journal),
	}
	h.orchestrator = NewOrchestrator(h.backend, h.store, logger.NewNopLogger(), append(base, opts...)...)
	t.Cleanup(func() {
		require.NoError(t, h.orchestrator.Close(context.Background()))
	})
	return h
}

func cardRequest() *payment.Request {
	return &payment.Request{
		Customer: payment.Customer{Email: "a@b.com", FirstName: "Ada"},
		Cart: payment.Cart{
			Total: decimal.NewFromInt(100),
			Items: []payment.Item{{Name: "Plan", Quantity: 1, UnitPrice: decimal.NewFromInt(100)}},
		},
		Card: &payment.CardReference{Fields: payment.TokenizedCard{
			CardNumber:      "tok_pan",
			CVC:             "tok_cvv",
			ExpirationMonth: "12",
			ExpirationYear:  "2030",
		}},
	}
}

func routerJSON(body string) func(int, any) (*payment.RouterResponse, error) {
	return func(int, any) (*payment.RouterResponse, error) {
		return payment.ParseRouterResponse([]byte(body))
	}
}
