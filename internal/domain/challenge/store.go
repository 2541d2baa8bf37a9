// Package challenge persists the single outstanding 3DS verification URL so
// it survives a full-page redirect and a new SDK instance.
package challenge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultKey is the well-known slot holding the pending challenge.
	DefaultKey = "checkout:3ds:pending"
	// DefaultTTL is how long a pending challenge stays readable.
	DefaultTTL = 20 * time.Minute
)

// Storage is a persistent string key-value store shared by every SDK
// instance of the process. Get returns ok=false for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// PendingChallenge is the persisted record.
type PendingChallenge struct {
	VerificationURL  string `json:"verificationUrl"`
	ExpiresAtEpochMs int64  `json:"expiresAtEpochMs"`
}

// Expired reports whether the record is past its expiry at now.
func (p PendingChallenge) Expired(now time.Time) bool {
	return now.UnixMilli() >= p.ExpiresAtEpochMs
}

// Store reads and writes the pending challenge slot. Only one challenge is
// tracked at a time; saving a new one overwrites the previous record.
type Store struct {
	storage Storage
	key     string
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the slot name.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTTL overrides the expiry window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the slot name.
func (s *Store) Key() string {
	return s.key
}

// Save stores url with an expiry of now + TTL.
func (s *Store) Save(ctx context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("verification url cannot be empty")
	}

	record := PendingChallenge{
		VerificationURL:  url,
		ExpiresAtEpochMs: s.now().Add(s.ttl).UnixMilli(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal pending challenge: %w", err)
	}

	if err := s.storage.Set(ctx, s.key, string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to store pending challenge: %w", err)
	}
	return nil
}

// Read returns the pending url. Expired or unreadable records are purged and
// reported as absent.
func (s *Store) Read(ctx context.Context) (string, bool, error) {
	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return "", false, fmt.Errorf("failed to read pending challenge: %w", err)
	}
	if !ok {
		return "", false, nil
	}

	var record PendingChallenge
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record.VerificationURL == "" {
		return "", false, s.Clear(ctx)
	}

	if record.Expired(s.now()) {
		return "", false, s.Clear(ctx)
	}

	return record.VerificationURL, true, nil
}

// Clear removes the record unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear pending challenge: %w", err)
	}
	return nil
}
