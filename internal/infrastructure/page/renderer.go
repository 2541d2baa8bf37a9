// Package page keeps the document a merchant front end renders: an injected
// 3DS challenge frame or a pending full-page navigation.
package page

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orris-inc/checkout/internal/shared/logger"
	"github.com/orris-inc/checkout/internal/shared/services/sanitize"
)

type Kind string

const (
	KindChallenge Kind = "challenge"
	KindRedirect  Kind = "redirect"
)

// Page is what the front end must show next.
type Page struct {
	Kind      Kind      `json:"kind"`
	FrameID   string    `json:"frame_id,omitempty"`
	HTML      string    `json:"html,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Frame is an injected challenge. Loaded receives exactly one value when the
// frame reports its load event, or ctx.Err() of the injecting call.
type Frame struct {
	ID     string
	HTML   string
	Loaded <-chan error
}

var frameTemplate = template.Must(template.New("frame").Parse(
	`<div class="checkout-3ds" data-frame-id="{{.ID}}">` +
		`<iframe name="{{.Target}}" id="{{.Target}}" width="100%" height="600" frameborder="0"></iframe>` +
		`<div hidden>{{.Fragment}}</div>` +
		`<script>(function(){var f=document.getElementById({{.Target}});` +
		`f.addEventListener("load",function(){fetch({{.Callback}},{method:"POST"})},{once:true});` +
		`var form=f.parentNode.querySelector("form");if(form){form.target={{.Target}};form.submit();}})();</script>` +
		`</div>`))

type pendingFrame struct {
	loaded chan error
	stop   func() bool
}

// Renderer is the process-side document.
type Renderer struct {
	sanitizer    sanitize.ChallengeSanitizer
	callbackBase string
	logger       logger.Interface

	mu      sync.Mutex
	frames  map[string]*pendingFrame
	current *Page
	now     func() time.Time
}

// NewRenderer builds a renderer. callbackBase is the URL prefix the frame
// posts to when loaded; "/{frameID}/loaded" is appended.
func NewRenderer(callbackBase string, log logger.Interface) *Renderer {
	return &Renderer{
		sanitizer:    sanitize.NewChallengeSanitizer(),
		callbackBase: callbackBase,
		logger:       log.Named("page"),
		frames:       make(map[string]*pendingFrame),
		now:          time.Now,
	}
}

// InjectChallenge sanitizes fragment and renders it inside an auto-submitting
// frame. The returned frame's Loaded channel fires once MarkLoaded is called
// for its id or ctx ends.
func (r *Renderer) InjectChallenge(ctx context.Context, fragment string) (*Frame, error) {
	clean := r.sanitizer.Sanitize(fragment)
	if clean == "" {
		return nil, fmt.Errorf("challenge fragment is empty after sanitizing")
	}

	id := uuid.NewString()
	target := "checkout_3ds_" + id[:8]

	var buf bytes.Buffer
	err := frameTemplate.Execute(&buf, map[string]any{
		"ID":       id,
		"Target":   target,
		"Fragment": template.HTML(clean),
		"Callback": fmt.Sprintf("%s/%s/loaded", r.callbackBase, id),
	})
	if err != nil {
		return nil, fmt.Errorf("render challenge frame: %w", err)
	}

	pending := &pendingFrame{loaded: make(chan error, 1)}

	r.mu.Lock()
	r.frames[id] = pending
	r.current = &Page{Kind: KindChallenge, FrameID: id, HTML: buf.String(), CreatedAt: r.now()}
	pending.stop = context.AfterFunc(ctx, func() {
		r.resolve(id, ctx.Err())
	})
	r.mu.Unlock()

	r.logger.Infow("challenge frame injected", "frame_id", id)
	return &Frame{ID: id, HTML: buf.String(), Loaded: pending.loaded}, nil
}

// Navigate records a full-page navigation for the front end.
func (r *Renderer) Navigate(_ context.Context, url string) error {
	if url == "" {
		return fmt.Errorf("navigation url cannot be empty")
	}

	r.mu.Lock()
	r.current = &Page{Kind: KindRedirect, URL: url, CreatedAt: r.now()}
	r.mu.Unlock()

	r.logger.Infow("navigation requested", "url", url)
	return nil
}

// MarkLoaded resolves the frame. loadErr reports a frame that failed to load.
// It returns false for an unknown or already resolved frame.
func (r *Renderer) MarkLoaded(frameID string, loadErr error) bool {
	return r.resolve(frameID, loadErr)
}

func (r *Renderer) resolve(frameID string, err error) bool {
	r.mu.Lock()
	pending, ok := r.frames[frameID]
	if ok {
		delete(r.frames, frameID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if pending.stop != nil {
		pending.stop()
	}
	pending.loaded <- err
	close(pending.loaded)
	return true
}

// Pending reports whether frameID still waits for its load event.
func (r *Renderer) Pending(frameID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.frames[frameID]
	return ok
}

// Current returns the page the front end should render.
func (r *Renderer) Current() (Page, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Page{}, false
	}
	return *r.current, true
}

// Reset forgets the current page.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = nil
}

// ShowChallenge injects fragment and returns only the load signal.
func (r *Renderer) ShowChallenge(ctx context.Context, fragment string) (<-chan error, error) {
	frame, err := r.InjectChallenge(ctx, fragment)
	if err != nil {
		return nil, err
	}
	return frame.Loaded, nil
}
