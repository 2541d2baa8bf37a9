package payment

// VaultCoordinates locate the tokenization vault for this merchant.
type VaultCoordinates struct {
	ID  string `json:"vault_id"`
	URL string `json:"vault_url"`
}

// AcquirerKeys configure device fingerprinting for the card-on-file acquirer.
type AcquirerKeys struct {
	MerchantID string `json:"merchant_id"`
	PublicKey  string `json:"public_key"`
	Sandbox    bool   `json:"sandbox,omitempty"`
}

// IsConfigured reports whether fingerprinting can run.
func (k *AcquirerKeys) IsConfigured() bool {
	return k != nil && k.MerchantID != "" && k.PublicKey != ""
}

// MerchantContext is fetched once per orchestrator and never refreshed.
type MerchantContext struct {
	BusinessID     string           `json:"id"`
	BusinessPK     int64            `json:"pk"`
	Name           string           `json:"name,omitempty"`
	OrderReference string           `json:"order_reference,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Vault          VaultCoordinates `json:"vault"`
	Acquirer       *AcquirerKeys    `json:"acquirer,omitempty"`
	CardOnFileKey  string           `json:"card_on_file_public_key,omitempty"`
	Features       map[string]bool  `json:"features,omitempty"`
}

// CustomerRecord is the backend's answer to register-or-fetch.
type CustomerRecord struct {
	ID        string `json:"id"`
	AuthToken string `json:"auth_token"`
	Email     string `json:"email"`
}

// Order is the backend order created for an attempt.
type Order struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference,omitempty"`
	Total     float64 `json:"total,omitempty"`
}

// Record is the backend payment record linked to an order.
type Record struct {
	PK      int64   `json:"pk"`
	OrderID string  `json:"order_id,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Status  string  `json:"status,omitempty"`
}
