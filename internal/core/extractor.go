package core

import (
	"context"
)

// TextExtractor converts a stored binary document into plain text.
// The URL must stay readable for the duration of the call (a short-lived signed URL).
// Implementations return ErrExtractionFailed when the service fails or yields only whitespace.
type TextExtractor interface {
	ExtractText(ctx context.Context, url string) (string, error)
}
