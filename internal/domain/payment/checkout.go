package payment

import (
	"time"
)

// OrderInput is posted to create the backend order of an attempt.
type OrderInput struct {
	BusinessID        string         `json:"business_id"`
	CustomerAuthToken string         `json:"customer_auth_token"`
	CustomerID        string         `json:"customer_id,omitempty"`
	Reference         string         `json:"reference,omitempty"`
	Total             float64        `json:"total"`
	Currency          string         `json:"currency"`
	Items             []OrderItem    `json:"items"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

type OrderItem struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	SKU       string  `json:"sku,omitempty"`
}

// PaymentInput is posted to create the payment record for an order.
type PaymentInput struct {
	BusinessPK int64   `json:"business"`
	OrderID    string  `json:"order"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Date       string  `json:"date"`
}

// RouterCustomer carries the identity fragments the router needs.
type RouterCustomer struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

// RouterPlaceholder fills the shipping and product blocks the router contract
// requires even when the merchant has nothing to ship.
type RouterPlaceholder struct {
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// RouterPayload is the composite checkout submitted to the router. Exactly one
// of Card and PaymentMethod is set.
type RouterPayload struct {
	BusinessID        string            `json:"business_id"`
	OrderID           string            `json:"order_id"`
	PaymentPK         int64             `json:"payment_pk"`
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	Customer          RouterCustomer    `json:"customer"`
	Shipping          RouterPlaceholder `json:"shipping"`
	Product           RouterPlaceholder `json:"product"`
	DeviceFingerprint string            `json:"device_fingerprint,omitempty"`
	Card              *CardReference    `json:"card,omitempty"`
	PaymentMethod     string            `json:"payment_method,omitempty"`
	APMConfig         map[string]any    `json:"apm_config,omitempty"`
	Identification    *Identification   `json:"identification,omitempty"`
	CardOnFile        bool              `json:"card_on_file,omitempty"`
	ReturnURL         string            `json:"return_url,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
}

// ResumePayload resubmits a checkout the router has not finished routing.
type ResumePayload struct {
	CheckoutID string `json:"checkout_id"`
}

// SecureToken authorizes card operations for one customer.
type SecureToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// SavedCard is a card on file as listed by the backend.
type SavedCard struct {
	ID              string `json:"id"`
	Brand           string `json:"brand,omitempty"`
	LastFour        string `json:"last_four,omitempty"`
	ExpirationMonth string `json:"expiration_month,omitempty"`
	ExpirationYear  string `json:"expiration_year,omitempty"`
	CardholderName  string `json:"card_holder_name,omitempty"`
}

// PaymentMethod is an alternative payment method the merchant accepts.
type PaymentMethod struct {
	Code    string         `json:"code"`
	Name    string         `json:"name"`
	Country string         `json:"country,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// NewOrderInput builds the order body from a validated request.
func NewOrderInput(req *Request, merchant *MerchantContext, customer *CustomerRecord) *OrderInput {
	amount := req.Amount(merchant.Currency)

	items := make([]OrderItem, 0, len(req.Cart.Items))
	for _, item := range req.Cart.Items {
		items = append(items, OrderItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Round(2).InexactFloat64(),
			SKU:       item.SKU,
		})
	}

	reference := req.OrderReference
	if reference == "" {
		reference = merchant.OrderReference
	}

	return &OrderInput{
		BusinessID:        merchant.BusinessID,
		CustomerAuthToken: customer.AuthToken,
		CustomerID:        customer.ID,
		Reference:         reference,
		Total:             amount.Float64(),
		Currency:          amount.Currency(),
		Items:             items,
		Metadata:          req.Metadata,
	}
}

// NewPaymentInput builds the payment record body for order.
func NewPaymentInput(req *Request, merchant *MerchantContext, order *Order, now time.Time) *PaymentInput {
	amount := req.Amount(merchant.Currency)
	return &PaymentInput{
		BusinessPK: merchant.BusinessPK,
		OrderID:    order.ID,
		Amount:     amount.Float64(),
		Currency:   amount.Currency(),
		Date:       now.UTC().Format(time.RFC3339),
	}
}

// NewRouterPayload composes the router submission. fingerprint is empty when
// the merchant has no acquirer keys.
func NewRouterPayload(req *Request, merchant *MerchantContext, customer *CustomerRecord, order *Order, record *Record, fingerprint string) *RouterPayload {
	amount := req.Amount(merchant.Currency)

	payload := &RouterPayload{
		BusinessID: merchant.BusinessID,
		OrderID:    order.ID,
		PaymentPK:  record.PK,
		Amount:     amount.Float64(),
		Currency:   amount.Currency(),
		Customer: RouterCustomer{
			ID:        customer.ID,
			FirstName: req.Customer.FirstName,
			LastName:  req.Customer.LastName,
			Email:     req.Customer.Email,
			Phone:     req.Customer.Phone,
			Country:   req.Customer.Country,
		},
		Shipping:          RouterPlaceholder{Name: "N/A", Country: req.Customer.Country},
		Product:           RouterPlaceholder{Name: "N/A"},
		DeviceFingerprint: fingerprint,
		APMConfig:         req.APMConfig,
		Identification:    req.Identification,
		CardOnFile:        req.CardOnFile,
		ReturnURL:         req.ReturnURL,
		Metadata:          req.Metadata,
	}

	if req.Card != nil {
		payload.Card = req.Card
	} else {
		payload.PaymentMethod = req.PaymentMethod
	}

	return payload
}
