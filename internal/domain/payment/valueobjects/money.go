package valueobjects

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when neither the request nor the merchant names one.
const DefaultCurrency = "USD"

type Money struct {
	amount   decimal.Decimal
	currency string
}

func NewMoney(amount decimal.Decimal, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{
		amount:   amount,
		currency: currency,
	}
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Currency() string {
	return m.currency
}

// Float64 is the wire representation expected by the backend.
func (m Money) Float64() float64 {
	return m.amount.Round(2).InexactFloat64()
}

func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount) && m.currency == other.currency
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}
