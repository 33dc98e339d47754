package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/learnbridge/internal/core"
)

const maxDocumentBytes = 100 << 20

// DocconvExtractor downloads the document through the signed URL and converts it locally with sajari/docconv.
type DocconvExtractor struct {
	client         *http.Client
	useReadability bool
}

var _ core.TextExtractor = (*DocconvExtractor)(nil)

func NewDocconvExtractor(client *http.Client, useReadability bool) *DocconvExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &DocconvExtractor{client: client, useReadability: useReadability}
}

func (e *DocconvExtractor) ExtractText(ctx context.Context, signedURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signedURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build download request: %w", core.ErrExtractionFailed, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download: %w", core.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: download: %w", core.ErrExtractionFailed,
			&core.StatusError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", core.ErrExtractionFailed, err)
	}

	mimeType := detectMimeType(resp.Header.Get("Content-Type"), signedURL)
	res, err := docconv.Convert(bytes.NewReader(data), mimeType, e.useReadability)
	if err != nil {
		return "", fmt.Errorf("%w: docconv (%s): %w", core.ErrExtractionFailed, mimeType, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if strings.TrimSpace(res.Body) == "" {
		return "", fmt.Errorf("%w: no text content extracted", core.ErrExtractionFailed)
	}
	return res.Body, nil
}

// detectMimeType prefers a specific response Content-Type and falls back to the URL's file extension.
func detectMimeType(header, rawURL string) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if u, err := url.Parse(rawURL); err == nil {
		if mt := docconv.MimeTypeByExtension(path.Base(u.Path)); mt != "" && mt != "application/octet-stream" {
			return mt
		}
	}
	return "application/pdf"
}
