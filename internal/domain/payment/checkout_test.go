package payment

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMerchant() *MerchantContext {
	return &MerchantContext{
		BusinessID:     "biz_1",
		BusinessPK:     42,
		OrderReference: "merchant-ref",
		Currency:       "COP",
	}
}

func TestNewOrderInput(t *testing.T) {
	req := validRequest()
	req.Cart.Total = decimal.RequireFromString("100.456")
	req.Metadata = map[string]any{"campaign": "spring"}

	input := NewOrderInput(req, testMerchant(), &CustomerRecord{ID: "cus_1", AuthToken: "auth_1"})

	assert.Equal(t, "biz_1", input.BusinessID)
	assert.Equal(t, "auth_1", input.CustomerAuthToken)
	assert.Equal(t, "cus_1", input.CustomerID)
	assert.Equal(t, "merchant-ref", input.Reference)
	assert.Equal(t, 100.46, input.Total)
	assert.Equal(t, "COP", input.Currency)
	require.Len(t, input.Items, 1)
	assert.Equal(t, OrderItem{Name: "T-shirt", Quantity: 1, UnitPrice: 100}, input.Items[0])
	assert.Equal(t, "spring", input.Metadata["campaign"])
}

func TestNewOrderInput_RequestOverrides(t *testing.T) {
	req := validRequest()
	req.Currency = "USD"
	req.OrderReference = "order-9"

	input := NewOrderInput(req, testMerchant(), &CustomerRecord{})

	assert.Equal(t, "USD", input.Currency)
	assert.Equal(t, "order-9", input.Reference)
}

func TestNewPaymentInput(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 0, 0, time.FixedZone("COT", -5*3600))
	merchant := testMerchant()
	merchant.Currency = ""

	input := NewPaymentInput(validRequest(), merchant, &Order{ID: "ord_1"}, now)

	assert.Equal(t, int64(42), input.BusinessPK)
	assert.Equal(t, "ord_1", input.OrderID)
	assert.Equal(t, float64(100), input.Amount)
	assert.Equal(t, "USD", input.Currency)
	assert.Equal(t, "2024-03-01T17:30:00Z", input.Date)
}

func TestNewRouterPayload(t *testing.T) {
	t.Run("card", func(t *testing.T) {
		req := validRequest()
		req.Customer.Country = "CO"
		req.CardOnFile = true

		payload := NewRouterPayload(req, testMerchant(), &CustomerRecord{ID: "cus_1"}, &Order{ID: "ord_1"}, &Record{PK: 7}, "fp_1")

		assert.Equal(t, "ord_1", payload.OrderID)
		assert.Equal(t, int64(7), payload.PaymentPK)
		assert.Equal(t, "cus_1", payload.Customer.ID)
		assert.Equal(t, "a@b.com", payload.Customer.Email)
		assert.Equal(t, RouterPlaceholder{Name: "N/A", Country: "CO"}, payload.Shipping)
		assert.Equal(t, "N/A", payload.Product.Name)
		assert.Equal(t, "fp_1", payload.DeviceFingerprint)
		assert.Same(t, req.Card, payload.Card)
		assert.Empty(t, payload.PaymentMethod)
		assert.True(t, payload.CardOnFile)
	})

	t.Run("payment method", func(t *testing.T) {
		req := validRequest()
		req.Card = nil
		req.PaymentMethod = "PSE"
		req.APMConfig = map[string]any{"bank": "007"}

		payload := NewRouterPayload(req, testMerchant(), &CustomerRecord{}, &Order{ID: "ord_1"}, &Record{PK: 7}, "")

		assert.Nil(t, payload.Card)
		assert.Equal(t, "PSE", payload.PaymentMethod)
		assert.Equal(t, "007", payload.APMConfig["bank"])
		assert.Empty(t, payload.DeviceFingerprint)
	})
}

func TestAcquirerKeys_IsConfigured(t *testing.T) {
	var keys *AcquirerKeys
	assert.False(t, keys.IsConfigured())
	assert.False(t, (&AcquirerKeys{MerchantID: "m"}).IsConfigured())
	assert.True(t, (&AcquirerKeys{MerchantID: "m", PublicKey: "k"}).IsConfigured())
}
