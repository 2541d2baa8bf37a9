package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/checkout/internal/infrastructure/page"
	"github.com/orris-inc/checkout/sdk/checkout"
)

// CheckoutService is the part of the checkout client the HTTP API exposes.
type CheckoutService interface {
	Pay(ctx context.Context, req *checkout.Request) (*checkout.Outcome, error)
	VerifyPendingChallenge(ctx context.Context) (*checkout.Outcome, error)
	ListPaymentMethods(ctx context.Context) ([]checkout.PaymentMethod, error)
	ListCards(ctx context.Context, customer *checkout.Customer) ([]checkout.SavedCard, error)
	SaveCard(ctx context.Context, customer *checkout.Customer, card *checkout.TokenizedCard) (*checkout.SavedCard, error)
	RemoveCard(ctx context.Context, customer *checkout.Customer, cardID string) error
	MountCardFields(ctx context.Context, opts checkout.MountOptions) error
	UnmountCardFields(key checkout.ContextKey) int
	MountedContexts() []checkout.ContextKey
	RequestID() string
}

// PageSource is the document challenges and redirects are rendered into.
type PageSource interface {
	Current() (page.Page, bool)
	MarkLoaded(frameID string, loadErr error) bool
}

// Shopper is the checkout state of one shopper session. Tokenization contexts,
// the resolved customers and the rendered page never cross shoppers.
type Shopper struct {
	ID       string
	Checkout CheckoutService
	Pages    PageSource
}

// ShopperSource resolves the shopper behind a request.
type ShopperSource interface {
	Shopper(c *gin.Context) (*Shopper, error)
}

// SingleShopper serves every request from one shopper.
type SingleShopper Shopper

func (s *SingleShopper) Shopper(*gin.Context) (*Shopper, error) {
	return (*Shopper)(s), nil
}
