package checkout

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/orris-inc/checkout/internal/application/tokenization"
	"github.com/orris-inc/checkout/internal/domain/payment"
	"github.com/orris-inc/checkout/internal/infrastructure/auth"
	"github.com/orris-inc/checkout/internal/infrastructure/vault"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
)

// MountCardFields mounts card inputs for a tokenization context. The vault of
// the merchant is bound on first use unless one was supplied with WithVault.
func (c *Client) MountCardFields(ctx context.Context, opts MountOptions) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if err := c.ensureVault(ctx, s); err != nil {
		return err
	}

	policy := tokenization.ParseUnmountPolicy(opts.Unmount)
	if err := c.tokens.Mount(ctx, opts.Context, opts.Fields, policy); err != nil {
		return c.fail(ctx, s, StepMount, apperrors.CodeMountFailed, err)
	}
	return nil
}

// UnmountCardFields tears down one context, or every context when key is
// empty or AllContexts. It returns the number of contexts removed.
func (c *Client) UnmountCardFields(key ContextKey) int {
	if key == "" {
		key = AllContexts
	}
	return c.tokens.Unmount(key)
}

// MountedContexts lists the live tokenization contexts.
func (c *Client) MountedContexts() []ContextKey {
	return c.tokens.Keys()
}

// ListCards lists the saved cards of customer.
func (c *Client) ListCards(ctx context.Context, customer *Customer) ([]SavedCard, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}

	_, token, err := c.secureToken(ctx, s, customer, StepListCards)
	if err != nil {
		return nil, err
	}

	cards, err := s.backend.ListCards(ctx, token)
	if err != nil {
		return nil, c.fail(ctx, s, StepListCards, apperrors.CodeCardFetchFailed, err)
	}
	return cards, nil
}

// SaveCard stores a card for customer. When card is nil or empty the fields
// mounted in the "create" context are collected first.
func (c *Client) SaveCard(ctx context.Context, customer *Customer, card *TokenizedCard) (*SavedCard, error) {
	s, err := c.current()
	if err != nil {
		return nil, err
	}

	record, token, err := c.secureToken(ctx, s, customer, StepSaveCard)
	if err != nil {
		return nil, err
	}

	if card == nil || card.IsEmpty() {
		if err := c.ensureVault(ctx, s); err != nil {
			return nil, err
		}
		collected, err := c.tokens.Collect(withCustomerAuth(ctx, record.AuthToken), CreateContext)
		if err != nil {
			return nil, c.fail(ctx, s, StepSaveCard, apperrors.CodeCollectFailed, err)
		}
		card = &collected
	}

	saved, err := s.backend.SaveCard(ctx, token, card)
	if err != nil {
		return nil, c.fail(ctx, s, StepSaveCard, apperrors.CodeCardSaveFailed, err)
	}
	return saved, nil
}

// RemoveCard deletes a saved card and unmounts its update context.
func (c *Client) RemoveCard(ctx context.Context, customer *Customer, cardID string) error {
	s, err := c.current()
	if err != nil {
		return err
	}
	if cardID == "" {
		return c.fail(ctx, s, StepRemoveCard, apperrors.CodeCardRemoveFailed,
			apperrors.New(apperrors.CodeCardRemoveFailed, apperrors.WithStatus(http.StatusBadRequest)))
	}

	_, token, err := c.secureToken(ctx, s, customer, StepRemoveCard)
	if err != nil {
		return err
	}

	if err := s.backend.RemoveCard(ctx, token, cardID); err != nil {
		return c.fail(ctx, s, StepRemoveCard, apperrors.CodeCardRemoveFailed, err)
	}

	c.tokens.Unmount(UpdateContext(cardID))
	return nil
}

// secureToken resolves customer and returns a bearer token for its card
// operations.
func (c *Client) secureToken(ctx context.Context, s *session, customer *Customer, step string) (*payment.CustomerRecord, string, error) {
	record, err := s.orchestrator.ResolveCustomer(ctx, customer)
	if err != nil {
		return nil, "", c.fail(ctx, s, step, apperrors.CodeCustomerOperation, err)
	}

	token, err := s.tokenSource(record.AuthToken).Token()
	if err != nil {
		return nil, "", c.fail(ctx, s, StepSecureToken, apperrors.CodeSecureTokenFailed, err)
	}
	return record, token.AccessToken, nil
}

// tokenSource returns the cached secure token source of one customer.
func (s *session) tokenSource(customerAuthToken string) oauth2.TokenSource {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	ts, ok := s.tokenSources[customerAuthToken]
	if !ok {
		ts = auth.NewSecureTokenSource(context.Background(), s.backend, customerAuthToken)
		s.tokenSources[customerAuthToken] = ts
	}
	return ts
}

// ensureVault binds the merchant's vault to the field manager once per session.
func (c *Client) ensureVault(ctx context.Context, s *session) error {
	s.tokenMu.Lock()
	ready := s.vaultReady
	s.tokenMu.Unlock()
	if ready {
		return nil
	}

	merchant, err := s.orchestrator.Merchant(ctx)
	if err != nil {
		return c.fail(ctx, s, StepMount, apperrors.CodeMerchantFetchFailed, err)
	}

	vaultOpts := []vault.Option{vault.WithHTTPClient(c.httpClient)}
	if c.vaultTimeout > 0 {
		vaultOpts = append(vaultOpts, vault.WithTimeout(c.vaultTimeout))
	}
	c.tokens.SetVault(vault.NewClient(merchant.Vault, &customerTokenSource{session: s}, vaultOpts...))

	s.tokenMu.Lock()
	s.vaultReady = true
	s.tokenMu.Unlock()
	return nil
}

type customerAuthKey struct{}

// withCustomerAuth binds the customer whose secure token authorizes vault
// calls made with ctx.
func withCustomerAuth(ctx context.Context, authToken string) context.Context {
	return context.WithValue(ctx, customerAuthKey{}, authToken)
}

// customerTokenSource authorizes vault calls as the customer bound to the
// call's context.
type customerTokenSource struct {
	session *session
}

func (t *customerTokenSource) Token(ctx context.Context) (*oauth2.Token, error) {
	authToken, _ := ctx.Value(customerAuthKey{}).(string)
	if authToken == "" {
		return nil, fmt.Errorf("no customer bound to vault call")
	}
	return t.session.tokenSource(authToken).Token()
}
