package analysis

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"datachat-backend/internal/chunk"
)

// ConversationTurn is one prior exchange passed to the backend for context.
// Only a bounded window of recent turns is sent (see HistoryWindow).
type ConversationTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HistoryWindow bounds how many prior turns accompany a question.
const HistoryWindow = 10

type QuestionRequest struct {
	Question string             `json:"question"`
	FileID   string             `json:"file_id,omitempty"`
	History  []ConversationTurn `json:"conversation_history,omitempty"`
}

// Stream is the chunk sequence of one analysis response. Chunks arrive as
// newline-delimited records prefixed with "data: "; malformed records are
// logged and skipped so a single bad line never kills the stream.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
}

var dataPrefix = []byte("data: ")

// StreamQuestion opens the long-lived analysis request. The returned stream
// carries its own deadline (the backend caps a single analysis at 3 minutes);
// the caller must Close it.
func (c *Client) StreamQuestion(ctx context.Context, req QuestionRequest) (*Stream, error) {
	if len(req.History) > HistoryWindow {
		req.History = req.History[len(req.History)-HistoryWindow:]
	}

	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)

	resp, err := c.stream.R().
		SetContext(ctx).
		SetBody(req).
		SetDoNotParseResponse(true).
		Post(questionEndpoint)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening analysis stream: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.RawBody(), 4096))
		resp.RawBody().Close()
		cancel()
		return nil, fmt.Errorf("analysis backend refused question: status %d: %s", resp.StatusCode(), string(body))
	}

	scanner := bufio.NewScanner(resp.RawBody())
	// Chart payloads can be large; give the scanner plenty of headroom.
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	return &Stream{body: resp.RawBody(), scanner: scanner, cancel: cancel}, nil
}

// Next returns the next well-formed chunk. It skips blank lines, non-data
// lines, and records that fail to decode. Returns io.EOF at end of stream.
func (s *Stream) Next() (chunk.Chunk, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || !bytes.HasPrefix(line, dataPrefix) {
			continue
		}

		c, err := chunk.Decode(bytes.TrimPrefix(line, dataPrefix))
		if err != nil {
			slog.Warn("skipping malformed stream record", "error", err)
			continue
		}
		return c, nil
	}

	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading analysis stream: %w", err)
	}
	return nil, io.EOF
}

func (s *Stream) Close() error {
	s.cancel()
	return s.body.Close()
}

// FormatTimestamp renders message timestamps the way the backend expects.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
