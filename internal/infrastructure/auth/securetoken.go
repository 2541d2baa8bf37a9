package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/shared/constants"
)

// DefaultSecureTokenTTL applies when the token carries no usable expiry.
const DefaultSecureTokenTTL = 5 * time.Minute

// SecureTokenIssuer exchanges a customer auth token for a secure token.
type SecureTokenIssuer interface {
	SecureToken(ctx context.Context, customerAuthToken string) (*payment.SecureToken, error)
}

type secureTokenSource struct {
	ctx               context.Context
	issuer            SecureTokenIssuer
	customerAuthToken string
	now               func() time.Time
}

// NewSecureTokenSource returns a source that fetches a new secure token only
// once the cached one has expired.
func NewSecureTokenSource(ctx context.Context, issuer SecureTokenIssuer, customerAuthToken string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &secureTokenSource{
		ctx:               ctx,
		issuer:            issuer,
		customerAuthToken: customerAuthToken,
		now:               time.Now,
	})
}

func (s *secureTokenSource) Token() (*oauth2.Token, error) {
	st, err := s.issuer.SecureToken(s.ctx, s.customerAuthToken)
	if err != nil {
		return nil, err
	}
	if st.Token == "" {
		return nil, fmt.Errorf("secure token response has no token")
	}

	expiry := st.ExpiresAt
	if expiry.IsZero() {
		expiry, err = ExpiryFromJWT(st.Token)
		if err != nil || expiry.IsZero() {
			expiry = s.now().Add(DefaultSecureTokenTTL)
		}
	}

	return &oauth2.Token{
		AccessToken: st.Token,
		TokenType:   constants.AuthSchemeBearer,
		Expiry:      expiry,
	}, nil
}

// ExpiryFromJWT reads the exp claim without verifying the signature. The
// token is only used as an opaque bearer value; the server verifies it.
func ExpiryFromJWT(raw string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}
