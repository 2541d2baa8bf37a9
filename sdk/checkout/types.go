package checkout

import (
	appcheckout "github.com/orris-inc/checkout/internal/application/checkout"
	"github.com/orris-inc/checkout/internal/application/tokenization"
	"github.com/orris-inc/checkout/internal/domain/challenge"
	"github.com/orris-inc/checkout/internal/domain/payment"
	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
)

// Request and response types.
type (
	Request        = payment.Request
	Customer       = payment.Customer
	Cart           = payment.Cart
	Item           = payment.Item
	CardReference  = payment.CardReference
	TokenizedCard  = payment.TokenizedCard
	Identification = payment.Identification
	SavedCard      = payment.SavedCard
	PaymentMethod  = payment.PaymentMethod
	RouterResponse = payment.RouterResponse
	Outcome        = appcheckout.Outcome
	State          = vo.State
)

// Tokenization types.
type (
	ContextKey    = tokenization.ContextKey
	UnmountPolicy = tokenization.UnmountPolicy
	FieldSpec     = tokenization.FieldSpec
	FieldType     = tokenization.FieldType
	Vault         = tokenization.Vault
)

// Collaborator ports.
type (
	Storage             = challenge.Storage
	Document            = appcheckout.Document
	DeviceFingerprinter = appcheckout.DeviceFingerprinter
)

// Error types.
type (
	Error     = apperrors.CheckoutError
	ErrorCode = apperrors.ErrorCode
)

const (
	CreateContext = tokenization.CreateContext
	AllContexts   = tokenization.AllContexts
)

var (
	UpdateContext      = tokenization.UpdateContext
	UnmountNone        = tokenization.UnmountNone
	UnmountCurrent     = tokenization.UnmountCurrent
	UnmountAll         = tokenization.UnmountAll
	UnmountTarget      = tokenization.UnmountTarget
	ParseUnmountPolicy = tokenization.ParseUnmountPolicy
	CodeOf             = apperrors.CodeOf
	AsError            = apperrors.GetCheckoutError
)

// MountOptions describe a set of card fields to mount. Unmount is "none",
// "current", "all" or a context key; empty means "current".
type MountOptions struct {
	Context ContextKey  `json:"context" yaml:"context"`
	Fields  []FieldSpec `json:"fields" yaml:"fields"`
	Unmount string      `json:"unmount,omitempty" yaml:"unmount,omitempty"`
}
