package id

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, id, DefaultLength)

	for _, r := range MustGenerate(64) {
		assert.True(t, strings.ContainsRune(alphabet, r), "unexpected rune %q", r)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)

	requestID := NewRequestID(now)
	assert.True(t, strings.HasPrefix(requestID, "req_1700000000123_"))

	ts, random, err := ParseRequestID(requestID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(now))
	assert.Len(t, random, 9)
}

func TestParseRequestID_Invalid(t *testing.T) {
	for _, input := range []string{"", "req", "req_abc_x", "ord_1_x", "req_1_"} {
		_, _, err := ParseRequestID(input)
		assert.Error(t, err, input)
	}
}

func FuzzParseRequestID(f *testing.F) {
	f.Add("req_1700000000123_abcDEF123")
	f.Add("req__")
	f.Add("中文_测试")

	f.Fuzz(func(t *testing.T, input string) {
		ts, random, err := ParseRequestID(input)
		if err != nil {
			return
		}
		if random == "" {
			t.Fatalf("empty random part accepted for %q", input)
		}
		if NewRequestID(ts)[:len(PrefixRequest)] != PrefixRequest {
			t.Fatalf("prefix lost for %q", input)
		}
	})
}

func TestUUIDKeys(t *testing.T) {
	_, err := uuid.Parse(NewIdempotencyKey())
	assert.NoError(t, err)
	assert.NotEqual(t, NewProcessID(), NewProcessID())
}
