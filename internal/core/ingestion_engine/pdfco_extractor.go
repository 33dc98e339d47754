package ingestion_engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/markdave123-py/learnbridge/internal/core"
)

// PDFCoExtractor hands the signed URL to the PDF.co text-simple converter.
type PDFCoExtractor struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

var _ core.TextExtractor = (*PDFCoExtractor)(nil)

func NewPDFCoExtractor(client *http.Client, endpoint, apiKey string) *PDFCoExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &PDFCoExtractor{client: client, endpoint: endpoint, apiKey: apiKey}
}

type pdfcoRequest struct {
	URL    string `json:"url"`
	Inline bool   `json:"inline"`
	Async  bool   `json:"async"`
}

type pdfcoResponse struct {
	Body    string `json:"body"`
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

func (e *PDFCoExtractor) ExtractText(ctx context.Context, signedURL string) (string, error) {
	payload, err := json.Marshal(pdfcoRequest{URL: signedURL, Inline: true})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %w", core.ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", core.ErrExtractionFailed, err)
	}
	req.Header.Set("x-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: pdf.co unreachable: %w", core.ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", core.ErrExtractionFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: pdf.co: %w", core.ErrExtractionFailed,
			&core.StatusError{StatusCode: resp.StatusCode, Body: string(raw)})
	}

	var out pdfcoResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: malformed pdf.co response: %w", core.ErrExtractionFailed, err)
	}
	if out.Error {
		return "", fmt.Errorf("%w: pdf.co: %s", core.ErrExtractionFailed, out.Message)
	}
	if strings.TrimSpace(out.Body) == "" {
		return "", fmt.Errorf("%w: no text content extracted from PDF", core.ErrExtractionFailed)
	}
	return out.Body, nil
}
