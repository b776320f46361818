package util

import (
	"context"
	"log/slog"
	"strings"
)

// redactedKeys are attribute keys whose values must never reach the log
// sink verbatim. Matching is case-insensitive on the attribute key as set
// by the caller; callers that log credential material must use one of these
// keys (or a key containing one as a substring, see containsRedactedKey).
var redactedKeys = []string{
	"cookie", "cookie_string", "xsrf_token", "api_key", "password", "token",
}

// RedactingHandler wraps a slog.Handler and blanks out the value of any
// attribute whose key names or resembles a credential field, so provider
// adapters can log their request context without risk of leaking a
// barchart cookie or tiingo API key into a log aggregator.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next with credential redaction.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, record slog.Record) error {
	redacted := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(out)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if containsRedactedKey(a.Key) {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

func containsRedactedKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range redactedKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
