package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "github.com/orris-inc/checkout/internal/domain/payment/valueobjects"
)

func mustParse(t *testing.T, body string) *RouterResponse {
	t.Helper()
	resp, err := ParseRouterResponse([]byte(body))
	require.NoError(t, err)
	return resp
}

// =============================================================================
// Classify
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		want vo.State
	}{
		{
			name: "hard decline wins over everything",
			body: `{"decline":{"error_type":"Hard"},"checkout_id":"chk_1","transaction_status":"Processing"}`,
			want: vo.StateSettled,
		},
		{
			name: "top level route finished",
			body: `{"is_route_finished":true,"checkout_id":"chk_1"}`,
			want: vo.StateSettled,
		},
		{
			name: "nested route finished",
			body: `{"response":{"is_route_finished":true},"checkout_id":"chk_1"}`,
			want: vo.StateSettled,
		},
		{
			name: "pending without decline or finished flag",
			body: `{"transaction_status":"Pending"}`,
			want: vo.StateSettled,
		},
		{
			name: "pending with checkout id is still settled",
			body: `{"transaction_status":"Pending","checkout_id":"chk_1"}`,
			want: vo.StateSettled,
		},
		{
			name: "success",
			body: `{"transaction_status":"Success","checkout_id":"chk_1"}`,
			want: vo.StateSettled,
		},
		{
			name: "authorized",
			body: `{"transaction_status":"Authorized"}`,
			want: vo.StateSettled,
		},
		{
			name: "ambiguous with checkout id resumes",
			body: `{"transaction_status":"Processing","checkout_id":"chk_1"}`,
			want: vo.StateResuming,
		},
		{
			name: "nested checkout id resumes",
			body: `{"checkout":{"id":"chk_2"}}`,
			want: vo.StateResuming,
		},
		{
			name: "soft decline with checkout id resumes",
			body: `{"decline":{"error_type":"Soft"},"checkout_id":"chk_1"}`,
			want: vo.StateResuming,
		},
		{
			name: "nothing to go on",
			body: `{}`,
			want: vo.StateSettled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := mustParse(t, tt.body)
			assert.Equal(t, tt.want, Classify(resp))
			// Pure: same input, same answer.
			assert.Equal(t, tt.want, Classify(resp))
		})
	}

	assert.Equal(t, vo.StateSettled, Classify(nil))
}

func TestNextStep(t *testing.T) {
	tests := []struct {
		name string
		body string
		want vo.State
	}{
		{name: "iframe", body: `{"next_action":{"iframe_resources":{"iframe":"<form></form>"}}}`, want: vo.StateChallenging},
		{name: "redirect", body: `{"next_action":{"redirect_to_url":{"url":"https://acs.test/r"}}}`, want: vo.StateRedirecting},
		{name: "legacy redirect", body: `{"redirect_to_url":{"url":"https://acs.test/r"}}`, want: vo.StateRedirecting},
		{name: "iframe beats redirect", body: `{"next_action":{"iframe_resources":{"iframe":"<form></form>"},"redirect_to_url":{"url":"https://acs.test/r"}}}`, want: vo.StateChallenging},
		{name: "hard decline never challenges", body: `{"decline":{"error_type":"hard"},"next_action":{"iframe_resources":{"iframe":"<form></form>"}}}`, want: vo.StateSettled},
		{name: "plain", body: `{"transaction_status":"Authorized"}`, want: vo.StateSettled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStep(mustParse(t, tt.body)))
		})
	}
}

// =============================================================================
// Accessors
// =============================================================================

func TestVerificationURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "iframe resources",
			body: `{"next_action":{"iframe_resources":{"iframe":"x","verify_transaction_status_url":"/v1/verify/1"},"redirect_to_url":{"verify_transaction_status_url":"/v1/verify/2"}}}`,
			want: "/v1/verify/1",
		},
		{
			name: "redirect action",
			body: `{"next_action":{"redirect_to_url":{"url":"https://acs","verify_transaction_status_url":"/v1/verify/2"}}}`,
			want: "/v1/verify/2",
		},
		{
			name: "legacy redirect url",
			body: `{"redirect_to_url":{"url":"/v1/verify/3"}}`,
			want: "/v1/verify/3",
		},
		{
			name: "none",
			body: `{"next_action":{"iframe_resources":{"iframe":"x"}}}`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mustParse(t, tt.body).VerificationURL())
		})
	}
}

func TestRouterResponse_KeepsOriginalBody(t *testing.T) {
	body := `{"transaction_status":"Authorized","is_route_finished":true,"extra":{"n":1}}`
	resp := mustParse(t, body)

	encoded, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(encoded))
	assert.Equal(t, map[string]any{"n": float64(1)}, resp.Map()["extra"])
}

func TestParseRouterResponse_Errors(t *testing.T) {
	_, err := ParseRouterResponse([]byte("not json"))
	assert.Error(t, err)

	empty, err := ParseRouterResponse(nil)
	require.NoError(t, err)
	assert.Equal(t, vo.StateSettled, Classify(empty))
}

func TestHasChallengeForm(t *testing.T) {
	assert.True(t, mustParse(t, `{"status":"Pending","redirect_post_url":"https://acs/post","creq":"abc"}`).HasChallengeForm())
	assert.False(t, mustParse(t, `{"status":"Success","redirect_post_url":"https://acs/post"}`).HasChallengeForm())
	assert.False(t, mustParse(t, `{"status":"Pending"}`).HasChallengeForm())
}
