package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orris-inc/checkout/internal/infrastructure/page"
	"github.com/orris-inc/checkout/internal/interfaces/http/handlers"
	"github.com/orris-inc/checkout/internal/interfaces/http/middleware"
	apperrors "github.com/orris-inc/checkout/internal/shared/errors"
	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/sdk/checkout"
)

const (
	// SessionCookieName holds the shopper session id in browsers.
	SessionCookieName = "checkout_session"
	// CLISessionID is the session shared by the command line pay and verify runs.
	CLISessionID = "cli"
)

// ClientFactory builds the configured checkout client of one session. The
// client must render into renderer.
type ClientFactory func(sessionID string, renderer *page.Renderer) (*checkout.Client, error)

type shopperSession struct {
	shopper  handlers.Shopper
	client   *checkout.Client
	renderer *page.Renderer
	lastSeen time.Time
}

// SessionPool keeps one checkout client and one page per shopper session, so
// mounted fields, resolved customers and challenge pages never cross shoppers.
// Idle sessions are closed by PurgeExpired.
type SessionPool struct {
	factory      ClientFactory
	callbackBase string
	idle         time.Duration
	secureCookie bool
	logger       logger.Interface

	mu       sync.Mutex
	sessions map[string]*shopperSession
	closed   bool
	now      func() time.Time
}

// NewSessionPool builds an empty pool. callbackBase is the frame load callback
// prefix of every session renderer.
func NewSessionPool(factory ClientFactory, callbackBase string, idle time.Duration, log logger.Interface) *SessionPool {
	return &SessionPool{
		factory:      factory,
		callbackBase: callbackBase,
		idle:         idle,
		secureCookie: strings.HasPrefix(callbackBase, "https://"),
		logger:       log.Named("sessions"),
		sessions:     make(map[string]*shopperSession),
		now:          time.Now,
	}
}

// Shopper implements handlers.ShopperSource. A request without a valid
// session id starts a new session; the id goes back in the cookie and header.
func (p *SessionPool) Shopper(c *gin.Context) (*handlers.Shopper, error) {
	id := requestSessionID(c)
	if id == "" {
		id = uuid.NewString()
	}

	s, err := p.acquire(id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeNotConfigured,
			apperrors.WithStatus(http.StatusServiceUnavailable))
	}

	c.Header(middleware.HeaderSessionID, id)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, id, int(p.idle/time.Second), "/", "", p.secureCookie, true)
	return &s.shopper, nil
}

func requestSessionID(c *gin.Context) string {
	id := c.GetHeader(middleware.HeaderSessionID)
	if id == "" {
		id, _ = c.Cookie(SessionCookieName)
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

// Session returns the client and page of id, creating the session when needed.
func (p *SessionPool) Session(id string) (*checkout.Client, *page.Renderer, error) {
	s, err := p.acquire(id)
	if err != nil {
		return nil, nil, err
	}
	return s.client, s.renderer, nil
}

func (p *SessionPool) acquire(id string) (*shopperSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("session pool is closed")
	}
	if s, ok := p.sessions[id]; ok {
		s.lastSeen = p.now()
		return s, nil
	}

	renderer := page.NewRenderer(p.callbackBase, p.logger.With("session_id", id))
	client, err := p.factory(id, renderer)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}

	s := &shopperSession{
		shopper:  handlers.Shopper{ID: id, Checkout: client, Pages: renderer},
		client:   client,
		renderer: renderer,
		lastSeen: p.now(),
	}
	p.sessions[id] = s
	p.logger.Debugw("shopper session started", "session_id", id, "sessions", len(p.sessions))
	return s, nil
}

// Len returns the number of live sessions.
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// PurgeExpired closes sessions idle for longer than the idle timeout. A
// pending challenge stays in storage and resumes under the same session id.
func (p *SessionPool) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.idle)

	p.mu.Lock()
	var expired []*shopperSession
	for id, s := range p.sessions {
		if s.lastSeen.Before(cutoff) {
			expired = append(expired, s)
			delete(p.sessions, id)
		}
	}
	p.mu.Unlock()

	var errs []error
	for _, s := range expired {
		if err := s.client.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", s.shopper.ID, err))
		}
	}
	return int64(len(expired)), errors.Join(errs...)
}

// Close closes every session and refuses new ones.
func (p *SessionPool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	sessions := p.sessions
	p.sessions = make(map[string]*shopperSession)
	p.mu.Unlock()

	var errs []error
	for id, s := range sessions {
		if err := s.client.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
