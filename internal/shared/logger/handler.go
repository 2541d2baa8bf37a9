package logger

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveKeys are attribute keys whose values never reach the output.
var sensitiveKeys = map[string]struct{}{
	"authorization":  {},
	"card_number":    {},
	"cvc":            {},
	"cvv":            {},
	"public_api_key": {},
	"secure_token":   {},
	"token":          {},
}

// checkoutHandler masks card data and credentials, and attaches a source
// location to records at the configured levels.
type checkoutHandler struct {
	next         slog.Handler
	sourceLevels map[slog.Level]bool
}

// NewCheckoutHandler wraps next. The wrapped handler must not add source itself.
func NewCheckoutHandler(next slog.Handler, sourceLevels ...slog.Level) slog.Handler {
	levels := make(map[slog.Level]bool, len(sourceLevels))
	for _, level := range sourceLevels {
		levels[level] = true
	}
	return &checkoutHandler{next: next, sourceLevels: levels}
}

func (h *checkoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *checkoutHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})

	if h.sourceLevels[r.Level] && r.PC != 0 {
		f, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		out.AddAttrs(slog.Any(slog.SourceKey, &slog.Source{
			Function: f.Function,
			File:     f.File,
			Line:     f.Line,
		}))
	}

	return h.next.Handle(ctx, out)
}

func (h *checkoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = redact(a)
	}
	return &checkoutHandler{next: h.next.WithAttrs(masked), sourceLevels: h.sourceLevels}
}

func (h *checkoutHandler) WithGroup(name string) slog.Handler {
	return &checkoutHandler{next: h.next.WithGroup(name), sourceLevels: h.sourceLevels}
}

func redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redactedValue)
	}
	return a
}
