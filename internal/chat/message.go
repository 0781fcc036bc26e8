package chat

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CodeBlock is generated analysis code attached to a message, split into
// lines the way the analysis backend emits it.
type CodeBlock struct {
	Lines     []string `json:"lines"`
	Executing bool     `json:"executing"`
	Result    string   `json:"result,omitempty"`
}

// Message is one entry in a session transcript. Chart, Table and Code are
// opaque payloads produced by the analysis backend; once set by a terminal
// chunk they are never overwritten by later text deltas.
type Message struct {
	ID                uuid.UUID       `json:"id"`
	Role              string          `json:"role"`
	Content           string          `json:"content"`
	Timestamp         time.Time       `json:"timestamp"`
	Chart             json.RawMessage `json:"chart,omitempty"`
	Table             json.RawMessage `json:"table,omitempty"`
	Code              *CodeBlock      `json:"code,omitempty"`
	FollowUpQuestions []string        `json:"follow_up_questions,omitempty"`
	Streaming         bool            `json:"streaming,omitempty"`
}

func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// FileRef identifies the uploaded file currently associated with a session's
// questions. Exactly one may be active per session; re-upload replaces it.
type FileRef struct {
	FileID    string   `json:"file_id"`
	ObjectURL string   `json:"object_url"`
	Filename  string   `json:"filename"`
	FileSize  int64    `json:"file_size"`
	Columns   []string `json:"columns,omitempty"`
	RowCount  int64    `json:"row_count"`
}
