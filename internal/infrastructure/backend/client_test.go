package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/checkout/internal/domain/payment"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", "pk_test"), srv
}

func TestClient_AuthAndDecode(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token pk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/merchants/me", r.URL.Path)
		w.Write([]byte(`{"id":"biz_1","pk":7,"currency":"COP","vault":{"vault_id":"v1","vault_url":"https://vault"},"acquirer":{"merchant_id":"m","public_key":"k"}}`))
	})

	merchant, err := client.FetchMerchant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "biz_1", merchant.BusinessID)
	assert.Equal(t, int64(7), merchant.BusinessPK)
	assert.Equal(t, "v1", merchant.Vault.ID)
	assert.True(t, merchant.Acquirer.IsConfigured())
}

func TestClient_CreateOrderSendsIdempotencyKey(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("X-Idempotency-Key"))

		var input payment.OrderInput
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&input))
		assert.Equal(t, "biz_1", input.BusinessID)
		assert.Equal(t, 100.0, input.Total)

		w.Write([]byte(`{"id":"ord_1"}`))
	})

	order, err := client.CreateOrder(context.Background(), &payment.OrderInput{BusinessID: "biz_1", Total: 100}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "ord_1", order.ID)
}

func TestClient_NonSuccessBecomesHTTPError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"ROUTER_DOWN","message":"boom"}`))
	})

	_, err := client.SubmitRouter(context.Background(), map[string]string{"checkout_id": "chk_1"})
	require.Error(t, err)

	httpErr := apperrors.GetHTTPError(err)
	require.NotNil(t, httpErr)
	assert.Equal(t, 500, httpErr.Status)
	assert.Equal(t, "ROUTER_DOWN", httpErr.SystemError())
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := NewClient(srv.URL, "pk")
	srv.Close()

	_, err := client.ListPaymentMethods(context.Background())
	require.Error(t, err)
	assert.Nil(t, apperrors.GetHTTPError(err))
}

func TestClient_SubmitRouterKeepsRawBody(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/checkout/router", r.URL.Path)
		w.Write([]byte(`{"transaction_status":"Authorized","is_route_finished":true,"extra":1}`))
	})

	resp, err := client.SubmitRouter(context.Background(), &payment.RouterPayload{})
	require.NoError(t, err)
	assert.True(t, resp.RouteFinished())
	assert.Equal(t, float64(1), resp.Map()["extra"])
}

func TestClient_GetVerification(t *testing.T) {
	var paths []string
	client, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/api/v1/verify/bad" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`not found`))
			return
		}
		w.Write([]byte(`{"status":"Success"}`))
	})

	status, resp, err := client.GetVerification(context.Background(), "/v1/verify/ok")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "Success", string(resp.TxStatus()))

	status, resp, err = client.GetVerification(context.Background(), "/v1/verify/bad")
	require.NoError(t, err)
	assert.Equal(t, 404, status)
	assert.Equal(t, "not found", resp.Map()["body"])

	_, _, err = client.GetVerification(context.Background(), srv.URL+"/api/v1/verify/ok")
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/v1/verify/ok", "/api/v1/verify/bad", "/api/v1/verify/ok"}, paths)
}

func TestClient_CardOperationsUseBearer(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sec_1", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"cards":[{"id":"card_1","last_four":"4242"}]}`))
		case http.MethodPost:
			w.Write([]byte(`{"id":"card_2"}`))
		case http.MethodDelete:
			assert.Equal(t, "/api/v1/customers/cards/card%2F1", r.URL.EscapedPath())
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	cards, err := client.ListCards(ctx, "sec_1")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "4242", cards[0].LastFour)

	saved, err := client.SaveCard(ctx, "sec_1", &payment.TokenizedCard{CardNumber: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "card_2", saved.ID)

	require.NoError(t, client.RemoveCard(ctx, "sec_1", "card/1"))
}

func TestClient_SubmitChallengeForm(t *testing.T) {
	client, srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		values, err := url.ParseQuery(string(body))
		assert.NoError(t, err)
		assert.Equal(t, "creq-data", values.Get("creq"))
		assert.Equal(t, "https://merchant/term", values.Get("TermUrl"))
		w.Write([]byte(`<html>ok</html>`))
	})

	status, body, err := client.SubmitChallengeForm(context.Background(), srv.URL+"/acs",
		url.Values{"creq": {"creq-data"}, "TermUrl": {"https://merchant/term"}})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "<html>ok</html>", string(body))
}
