package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// scope travels in a context. unscoped is the logger before any document fields were added.
type scope struct {
	log        *zap.Logger
	unscoped   *zap.Logger
	documentID string
}

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, scope{log: l, unscoped: l})
}

// FromContext returns the logger stored in ctx, or fallback when there is none.
// A nil fallback yields a no-op logger.
func FromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if s, ok := ctx.Value(ctxKey{}).(scope); ok && s.log != nil {
		return s.log
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

// ForDocument scopes the context logger (or base) to one curriculum document and returns a context
// carrying it. If ctx is already scoped to documentID the existing logger is reused, so a worker and
// the run it drives do not repeat the document_id field.
func ForDocument(ctx context.Context, base *zap.Logger, documentID string, fields ...zap.Field) (context.Context, *zap.Logger) {
	parent := base
	if s, ok := ctx.Value(ctxKey{}).(scope); ok && s.log != nil {
		if s.documentID == documentID {
			l := s.log
			if len(fields) > 0 {
				l = l.With(fields...)
			}
			return context.WithValue(ctx, ctxKey{}, scope{log: l, unscoped: s.unscoped, documentID: documentID}), l
		}
		parent = s.unscoped
	}
	if parent == nil {
		parent = zap.NewNop()
	}
	l := parent.With(append([]zap.Field{zap.String("document_id", documentID)}, fields...)...)
	return context.WithValue(ctx, ctxKey{}, scope{log: l, unscoped: parent, documentID: documentID}), l
}
