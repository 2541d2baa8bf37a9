package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
	"github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/utils"
)

// Customer identifies the payer. Email is the lookup key for register-or-fetch.
type Customer struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	FirstName string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Email     string `json:"email" yaml:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Country   string `json:"country,omitempty" yaml:"country,omitempty"`
}

type Item struct {
	Name      string          `json:"name" yaml:"name" validate:"required"`
	Quantity  int             `json:"quantity" yaml:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" yaml:"unit_price"`
	SKU       string          `json:"sku,omitempty" yaml:"sku,omitempty"`
}

type Cart struct {
	Total decimal.Decimal `json:"total" yaml:"total"`
	Items []Item          `json:"items" yaml:"items" validate:"dive"`
}

// TokenizedCard holds vault references, never raw card data.
type TokenizedCard struct {
	CardholderName  string `json:"card_holder_name,omitempty" yaml:"card_holder_name,omitempty"`
	CardNumber      string `json:"card_number,omitempty" yaml:"card_number,omitempty"`
	ExpirationMonth string `json:"expiration_month,omitempty" yaml:"expiration_month,omitempty"`
	ExpirationYear  string `json:"expiration_year,omitempty" yaml:"expiration_year,omitempty"`
	CVC             string `json:"cvv,omitempty" yaml:"cvv,omitempty"`
}

// IsEmpty reports whether no tokenized field was supplied.
func (t TokenizedCard) IsEmpty() bool {
	return t == TokenizedCard{}
}

// LogValue masks every token so a card can be logged as a whole.
func (t TokenizedCard) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("holder", utils.MaskToken(t.CardholderName)),
		slog.String("number", utils.MaskToken(t.CardNumber)),
		slog.Bool("has_cvc", t.CVC != ""),
	)
}

// CardReference is either a saved card id or a set of tokenized fields, or
// both when a saved card is charged with a re-collected CVV.
// In JSON it accepts a bare string id or an object.
type CardReference struct {
	ID     string        `json:"id,omitempty" yaml:"id,omitempty"`
	Fields TokenizedCard `json:"-" yaml:",inline"`
}

func (c *CardReference) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.ID)
	}

	var fields struct {
		ID string `json:"id"`
		TokenizedCard
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("card must be an id or an object: %w", err)
	}
	c.ID = fields.ID
	c.Fields = fields.TokenizedCard
	return nil
}

func (c *CardReference) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&c.ID)
	}

	var fields struct {
		ID            string `yaml:"id"`
		TokenizedCard `yaml:",inline"`
	}
	if err := value.Decode(&fields); err != nil {
		return fmt.Errorf("card must be an id or a mapping: %w", err)
	}
	c.ID = fields.ID
	c.Fields = fields.TokenizedCard
	return nil
}

func (c CardReference) MarshalJSON() ([]byte, error) {
	if c.Fields.IsEmpty() {
		return json.Marshal(c.ID)
	}
	return json.Marshal(struct {
		ID string `json:"id,omitempty"`
		TokenizedCard
	}{ID: c.ID, TokenizedCard: c.Fields})
}

// NeedsCollect reports whether tokens must still be collected from mounted fields.
func (c *CardReference) NeedsCollect() bool {
	return c != nil && c.Fields.IsEmpty()
}

type Identification struct {
	Type   string `json:"type" yaml:"type" validate:"required"`
	Number string `json:"number" yaml:"number" validate:"required"`
}

// Request is what a merchant front end asks the SDK to pay.
type Request struct {
	Customer       Customer        `json:"customer" yaml:"customer"`
	Cart           Cart            `json:"cart" yaml:"cart"`
	Currency       string          `json:"currency,omitempty" yaml:"currency,omitempty" validate:"omitempty,iso4217"`
	Card           *CardReference  `json:"card,omitempty" yaml:"card,omitempty" validate:"required_without=PaymentMethod,excluded_with=PaymentMethod"`
	PaymentMethod  string          `json:"payment_method,omitempty" yaml:"payment_method,omitempty" validate:"required_without=Card"`
	APMConfig      map[string]any  `json:"apm_config,omitempty" yaml:"apm_config,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	OrderReference string          `json:"order_reference,omitempty" yaml:"order_reference,omitempty"`
	Identification *Identification `json:"identification,omitempty" yaml:"identification,omitempty"`
	ReturnURL      string          `json:"return_url,omitempty" yaml:"return_url,omitempty" validate:"omitempty,url"`
	CardOnFile     bool            `json:"card_on_file,omitempty" yaml:"card_on_file,omitempty"`
}

// Validate rejects a request before any network call. Exactly one of card and
// payment method must be present, a card must name an id or carry tokens, and
// the cart total must be positive.
func (r *Request) Validate() error {
	if err := r.ValidateShape(); err != nil {
		return err
	}
	if r.Card != nil && r.Card.ID == "" && r.Card.Fields.IsEmpty() {
		return invalidField("Request.card")
	}
	return nil
}

// ValidateShape is Validate without the card token check, for requests whose
// card tokens are still to be collected from mounted fields.
func (r *Request) ValidateShape() error {
	if r == nil {
		return errors.New(errors.CodeInvalidRequest, errors.WithStatus(400))
	}
	if (r.Card != nil) == (r.PaymentMethod != "") {
		return invalidField("Request.card", "Request.payment_method")
	}
	if err := utils.ValidateStruct(r); err != nil {
		return err
	}
	if !r.Cart.Total.IsPositive() {
		return invalidField("Request.cart.total")
	}
	return nil
}

func invalidField(fields ...string) error {
	return errors.New(errors.CodeInvalidRequest,
		errors.WithStatus(400),
		errors.WithDetails(map[string]any{"fields": fields}),
	)
}

// Amount returns the cart total in the request or fallback currency.
func (r *Request) Amount(fallbackCurrency string) vo.Money {
	currency := r.Currency
	if currency == "" {
		currency = fallbackCurrency
	}
	return vo.NewMoney(r.Cart.Total, currency)
}
