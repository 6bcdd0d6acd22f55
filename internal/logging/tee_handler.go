package logging

import (
	"context"
	"errors"
	"log/slog"
)

// sink pairs a handler with its own minimum level so the log file can keep
// debug records while the console stays at the configured level.
type sink struct {
	handler slog.Handler
	level   slog.Leveler
}

type teeHandler struct {
	sinks []sink
}

func newTeeHandler(sinks ...sink) slog.Handler {
	kept := make([]sink, 0, len(sinks))
	for _, s := range sinks {
		if s.handler == nil {
			continue
		}
		if s.level == nil {
			s.level = slog.LevelInfo
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return NoopHandler{}
	}
	return &teeHandler{sinks: kept}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.accepts(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, s := range h.sinks {
		if !s.accepts(ctx, record.Level) {
			continue
		}
		if err := s.handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *teeHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]sink, len(h.sinks))
	for i, s := range h.sinks {
		next[i] = sink{handler: fn(s.handler), level: s.level}
	}
	return &teeHandler{sinks: next}
}

func (s sink) accepts(ctx context.Context, level slog.Level) bool {
	return level >= s.level.Level() && s.handler.Enabled(ctx, level)
}
