// Package media uploads inbound attachments to an external document store.
// The store is optional; all failures here are advisory and never block
// message handling.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"
)

// Uploader ships one attachment to the document store. A nil result with
// a nil error means the store accepted it without a reference.
type Uploader interface {
	Upload(ctx context.Context, displayName, chatID string, data []byte, mimeType string) (*Result, error)
}

// Result describes where the store filed an uploaded attachment.
type Result struct {
	Reference string `json:"reference"`
}

// HTTPUploader posts attachments as multipart form data.
type HTTPUploader struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewHTTPUploader creates an uploader targeting the given endpoint.
func NewHTTPUploader(url string, logger *slog.Logger) *HTTPUploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPUploader{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Upload posts one attachment. The form carries the sender's display name
// and chat id alongside the file part so the store can index it.
func (u *HTTPUploader) Upload(ctx context.Context, displayName, chatID string, data []byte, mimeType string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("display_name", displayName); err != nil {
		return nil, fmt.Errorf("write display_name field: %w", err)
	}
	if err := writer.WriteField("chat_id", chatID); err != nil {
		return nil, fmt.Errorf("write chat_id field: %w", err)
	}

	filename := "attachment" + extensionFor(mimeType)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post attachment: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			u.logger.Warn("failed to close upload response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("document store returned %d: %s", resp.StatusCode, snippet)
	}

	ref, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &Result{Reference: string(bytes.TrimSpace(ref))}, nil
}

func extensionFor(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}

var _ Uploader = (*HTTPUploader)(nil)
