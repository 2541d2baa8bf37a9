package checkout

import (
	"context"
	"net/url"

	"github.com/orris-inc/checkout/internal/domain/payment"
)

// Backend is the payment-orchestration API the orchestrator drives.
type Backend interface {
	FetchMerchant(ctx context.Context) (*payment.MerchantContext, error)
	RegisterCustomer(ctx context.Context, customer *payment.Customer) (*payment.CustomerRecord, error)
	CreateOrder(ctx context.Context, input *payment.OrderInput, idempotencyKey string) (*payment.Order, error)
	CreatePayment(ctx context.Context, input *payment.PaymentInput, idempotencyKey string) (*payment.Record, error)
	SubmitRouter(ctx context.Context, payload any) (*payment.RouterResponse, error)
	GetVerification(ctx context.Context, verificationURL string) (int, *payment.RouterResponse, error)
	SubmitChallengeForm(ctx context.Context, postURL string, form url.Values) (int, []byte, error)
}

// DeviceFingerprinter registers an antifraud session with the acquirer and
// returns its id.
type DeviceFingerprinter interface {
	Fingerprint(ctx context.Context, keys *payment.AcquirerKeys) (string, error)
}

// Document is where challenge artifacts are shown. The channel returned by
// ShowChallenge yields one value when the challenge frame has loaded, or the
// error that kept it from loading.
type Document interface {
	ShowChallenge(ctx context.Context, fragment string) (<-chan error, error)
	Navigate(ctx context.Context, url string) error
}
