// Package analysis is the HTTP client for the external AI analysis backend.
// The backend parses uploaded tabular files and answers questions over them;
// none of that logic lives in this service.
package analysis

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	uploadEndpoint   = "/api/files/upload"
	titleEndpoint    = "/api/chat/generate-title"
	questionEndpoint = "/api/chat/unified-question-stream"

	// DefaultTitle is used when title generation fails; questions should
	// never fail because a title could not be produced.
	DefaultTitle = "New chat"

	// Matches the backend's own cap on a single analysis stream.
	DefaultStreamTimeout = 3 * time.Minute
)

type Client struct {
	http *resty.Client

	// The stream client carries no client-level timeout: a client timeout
	// covers the whole body read, which would cut long analyses short. The
	// per-request context deadline bounds streams instead.
	stream        *resty.Client
	streamTimeout time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
		stream:        resty.New().SetBaseURL(baseURL),
		streamTimeout: DefaultStreamTimeout,
	}
}

func (c *Client) SetStreamTimeout(d time.Duration) {
	c.streamTimeout = d
}

// ParsedFile is the backend's view of an uploaded file: its id plus the
// schema and a bounded row preview extracted at parse time.
type ParsedFile struct {
	FileID   string           `json:"file_id"`
	Filename string           `json:"filename"`
	FileSize int64            `json:"file_size"`
	Columns  []string         `json:"columns"`
	RowCount int64            `json:"row_count"`
	Preview  []map[string]any `json:"preview"`
}

// UploadFile sends the file bytes to the backend for parsing and schema
// extraction. The object-store copy is made separately by the caller.
func (c *Client) UploadFile(ctx context.Context, filename string, data io.Reader) (ParsedFile, error) {
	var parsed ParsedFile

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, data).
		SetResult(&parsed).
		Post(uploadEndpoint)
	if err != nil {
		return ParsedFile{}, fmt.Errorf("uploading file to analysis backend: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ParsedFile{}, fmt.Errorf("analysis backend rejected file upload: status %d: %s", resp.StatusCode(), resp.String())
	}

	return parsed, nil
}

// GenerateTitle asks the backend for a short title for a session based on its
// first message. Failures fall back to DefaultTitle rather than propagating:
// a missing title is never worth surfacing to the user.
func (c *Client) GenerateTitle(ctx context.Context, message string) string {
	var result struct {
		Title string `json:"title"`
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"message": message}).
		SetResult(&result).
		Post(titleEndpoint)
	if err != nil || resp.StatusCode() != http.StatusOK || result.Title == "" {
		return DefaultTitle
	}

	return result.Title
}
