// Package correlation carries request-scoped log fields (request, session and
// user) through a context and stamps them onto every slog record.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

const maxInboundIDLength = 64

type fieldsKey struct{}

type fields struct {
	requestID string
	sessionID string
	userID    string
}

func fromContext(ctx context.Context) fields {
	f, _ := ctx.Value(fieldsKey{}).(fields)
	return f
}

func with(ctx context.Context, update func(*fields)) context.Context {
	f := fromContext(ctx)
	update(&f)
	return context.WithValue(ctx, fieldsKey{}, f)
}

// NewID generates an 8-character hex request ID.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// FromHeader returns the inbound request ID when it is short and printable,
// otherwise a fresh one.
func FromHeader(value string) string {
	if value == "" || len(value) > maxInboundIDLength {
		return NewID()
	}
	for _, r := range value {
		if r < 0x21 || r > 0x7e {
			return NewID()
		}
	}
	return value
}

func WithID(ctx context.Context, id string) context.Context {
	return with(ctx, func(f *fields) { f.requestID = id })
}

func ID(ctx context.Context) (string, bool) {
	id := fromContext(ctx).requestID
	return id, id != ""
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return with(ctx, func(f *fields) { f.sessionID = sessionID })
}

func SessionID(ctx context.Context) (string, bool) {
	id := fromContext(ctx).sessionID
	return id, id != ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return with(ctx, func(f *fields) { f.userID = userID })
}

func UserID(ctx context.Context) (string, bool) {
	id := fromContext(ctx).userID
	return id, id != ""
}

// Handler wraps a slog.Handler and adds correlation_id, session_id and
// user_id when the context carries them.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	f := fromContext(ctx)
	for _, a := range []slog.Attr{
		slog.String("correlation_id", f.requestID),
		slog.String("session_id", f.sessionID),
		slog.String("user_id", f.userID),
	} {
		if a.Value.String() != "" {
			r.AddAttrs(a)
		}
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
