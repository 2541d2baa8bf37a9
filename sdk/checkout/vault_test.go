package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/checkout/internal/application/tokenization"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/sdk/checkout"
)

// shopperAPI issues one auth token per customer and one secure token per auth
// token, and serves the merchant vault on the same host.
type shopperAPI struct {
	mu           sync.Mutex
	vaultBearers []string
}

func (a *shopperAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/merchants/me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "biz_1", "pk": 7, "currency": "USD",
			"vault": map[string]string{"vault_id": "v", "vault_url": "http://" + r.Host},
		})
	})
	mux.HandleFunc("POST /v1/customers", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Email string `json:"email"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		name, _, _ := strings.Cut(body.Email, "@")
		json.NewEncoder(w).Encode(map[string]string{
			"id": "cus_" + name, "auth_token": "auth_" + name, "email": body.Email,
		})
	})
	mux.HandleFunc("POST /v1/secure-token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CustomerAuthToken string `json:"customer_auth_token"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{"token": "st_" + body.CustomerAuthToken})
	})
	mux.HandleFunc("POST /v1/vaults/v/cards", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.vaultBearers = append(a.vaultBearers, r.Header.Get("Authorization"))
		a.mu.Unlock()
		w.Write([]byte(`{"records":[{"id":"rec_1","tokens":{"card_number":"tok_pan","cvv":"tok_cvv"}}]}`))
	})
	mux.HandleFunc("GET /v1/customers/cards", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cards":[]}`))
	})
	mux.HandleFunc("POST /v1/customers/cards", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"card_9","brand":"visa","last_four":"1111"}`))
	})
	mux.HandleFunc("POST /v1/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"ord_1"}`))
	})
	mux.HandleFunc("POST /v1/payments", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pk":55}`))
	})
	mux.HandleFunc("POST /v1/checkout/router", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transaction_status":"Authorized","is_route_finished":true}`))
	})
	return mux
}

func newVaultClient(t *testing.T, api *shopperAPI) *checkout.Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	client := checkout.New(checkout.WithLogger(logger.NewNopLogger()))
	require.NoError(t, client.Configure(checkout.Config{APIURL: srv.URL, PublicAPIKey: "pk_test"}))
	t.Cleanup(func() { client.Close(context.Background()) })
	return client
}

func prefilledCardFields() []checkout.FieldSpec {
	return []checkout.FieldSpec{
		{Type: tokenization.FieldCardNumber, Value: "4111111111111111", Required: true},
		{Type: tokenization.FieldCVV, Value: "123", Required: true},
	}
}

func TestClient_VaultCallsRunAsPayingCustomer(t *testing.T) {
	api := &shopperAPI{}
	client := newVaultClient(t, api)
	ctx := context.Background()

	require.NoError(t, client.MountCardFields(ctx, checkout.MountOptions{
		Context: checkout.CreateContext,
		Fields:  prefilledCardFields(),
	}))

	// bob is the most recently resolved customer when alice pays
	_, err := client.ListCards(ctx, &checkout.Customer{Email: "bob@b.com"})
	require.NoError(t, err)

	req := payRequest(&checkout.CardReference{})
	req.Customer = checkout.Customer{Email: "alice@b.com"}
	_, err = client.Pay(ctx, req)
	require.NoError(t, err)

	_, err = client.SaveCard(ctx, &checkout.Customer{Email: "bob@b.com"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer st_auth_alice", "Bearer st_auth_bob"}, api.vaultBearers)
}
