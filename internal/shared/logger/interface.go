package logger

import "log/slog"

// Interface is the structured logger injected into every component.
type Interface interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Interface
	// Named tags every record with the emitting component. Nested names are
	// joined with a dot.
	Named(name string) Interface
}

type slogLogger struct {
	// base carries the With attributes, logger adds the component on top.
	base   *slog.Logger
	logger *slog.Logger
	name   string
}

func newSlogLogger(base *slog.Logger, name string) *slogLogger {
	l := &slogLogger{base: base, logger: base, name: name}
	if name != "" {
		l.logger = base.With("component", name)
	}
	return l
}

// NewLogger returns a logger backed by the process logger set up by Init.
func NewLogger() Interface {
	return newSlogLogger(Get(), "")
}

// NewNopLogger returns a logger that drops every record.
func NewNopLogger() Interface {
	return newSlogLogger(slog.New(slog.DiscardHandler), "")
}

func (l *slogLogger) Debugw(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *slogLogger) Infow(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *slogLogger) Warnw(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *slogLogger) Errorw(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *slogLogger) With(keysAndValues ...any) Interface {
	return newSlogLogger(l.base.With(keysAndValues...), l.name)
}

func (l *slogLogger) Named(name string) Interface {
	if l.name != "" {
		name = l.name + "." + name
	}
	return newSlogLogger(l.base, name)
}
