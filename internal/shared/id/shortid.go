package id

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Base62 alphabet: 0-9, A-Z, a-z
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// DefaultLength is the default length for generated short IDs
	DefaultLength = 12
)

// PrefixRequest marks request correlation ids.
const PrefixRequest = "req"

// Generate creates a random short ID with the specified length using Base62 encoding.
// The generated ID is cryptographically random and URL-safe.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(alphabet)))

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = alphabet[num.Int64()]
	}

	return string(result), nil
}

// MustGenerate creates a random short ID and panics on error.
func MustGenerate(length int) string {
	id, err := Generate(length)
	if err != nil {
		panic(err)
	}
	return id
}

// NewRequestID returns a correlation id of the form req_<unix ms>_<random>.
func NewRequestID(now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", PrefixRequest, now.UnixMilli(), MustGenerate(9))
}

// ParseRequestID splits a correlation id into its timestamp and random part.
func ParseRequestID(requestID string) (time.Time, string, error) {
	parts := strings.SplitN(requestID, "_", 3)
	if len(parts) != 3 || parts[0] != PrefixRequest || parts[2] == "" {
		return time.Time{}, "", fmt.Errorf("invalid request id format: %s", requestID)
	}
	ms, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid request id timestamp: %w", err)
	}
	return time.UnixMilli(ms), parts[2], nil
}

// NewIdempotencyKey returns a fresh key for the X-Idempotency-Key header.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// NewProcessID identifies one payment attempt across telemetry events.
func NewProcessID() string {
	return uuid.NewString()
}
