// SPDX-License-Identifier: Unlicense OR MIT

// Package xlog is a thin structured-logging helper built on log/slog.
// The teacher has no logging package of its own — it logs ad hoc via
// fmt/panics and a platform log redirector under app/internal/log — and
// no example repo in the retrieval pack reaches for a third-party
// structured logger, so this wraps the standard library directly
// instead of inventing a dependency for an ambient concern.
package xlog

import (
	"context"
	"log/slog"
	"os"
)

// base is the process-wide handler every component logger is derived
// from. Set it once at startup via SetHandler; component loggers
// created before that call still pick up the new handler, since they
// only hold the component name until first use.
var base = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetHandler replaces the handler every component logger writes
// through. Intended to be called once during process startup (e.g. to
// switch to JSON output, or to a test-capturing handler).
func SetHandler(h slog.Handler) {
	base = slog.New(h)
}

// Logger is a component-scoped wrapper around *slog.Logger: every
// record it emits carries a "component" attribute, so log lines from
// the backend, the glyph rasterizer's worker pool, and capture replay
// can be told apart without each call site repeating it.
type Logger struct {
	component string
}

// For returns the logger for component, e.g. xlog.For("backend").
func For(component string) Logger { return Logger{component: component} }

func (l Logger) with() *slog.Logger { return base.With(slog.String("component", l.component)) }

func (l Logger) Debug(msg string, args ...any) { l.with().Debug(msg, args...) }
func (l Logger) Info(msg string, args ...any)  { l.with().Info(msg, args...) }
func (l Logger) Warn(msg string, args ...any)  { l.with().Warn(msg, args...) }
func (l Logger) Error(msg string, args ...any) { l.with().Error(msg, args...) }

// DebugContext/InfoContext/WarnContext/ErrorContext forward ctx so a
// handler that extracts trace/span attributes (none configured here,
// but slog.Handler implementations commonly do) still sees it.
func (l Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.with().DebugContext(ctx, msg, args...)
}
func (l Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.with().InfoContext(ctx, msg, args...)
}
func (l Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.with().WarnContext(ctx, msg, args...)
}
func (l Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.with().ErrorContext(ctx, msg, args...)
}
