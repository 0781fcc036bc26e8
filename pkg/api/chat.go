package api

import (
	"encoding/json"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

type ChatSessionMetadata struct {
	ID         uuid.UUID       `json:"id"`
	Title      string          `json:"title"`
	Status     string          `json:"status"`
	ProjectID  *uuid.UUID      `json:"project_id,omitempty"`
	ActiveFile json.RawMessage `json:"active_file,omitempty"`
	CreatedAt  string          `json:"created_at"`
	UpdatedAt  string          `json:"updated_at"`
}

type GetSessionsResponse struct {
	Sessions []ChatSessionMetadata `json:"sessions"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type AssignProjectRequest struct {
	ProjectID uuid.UUID `json:"project_id"`
}

type CodeExecution struct {
	Lines     []string `json:"lines"`
	Executing bool     `json:"executing"`
	Result    string   `json:"result,omitempty"`
}

type ChatMessage struct {
	ID                uuid.UUID       `json:"id"`
	Role              string          `json:"role"` // "user" or "assistant"
	Content           string          `json:"content"`
	Timestamp         string          `json:"timestamp"`
	Chart             json.RawMessage `json:"chart,omitempty"`
	Table             json.RawMessage `json:"table,omitempty"`
	Code              *CodeExecution  `json:"code,omitempty"`
	FollowUpQuestions []string        `json:"follow_up_questions,omitempty"`
	Streaming         bool            `json:"streaming,omitempty"`
}

type GetHistoryResponse struct {
	Messages []ChatMessage `json:"messages"`
}

type AskQuestionRequest struct {
	SessionID *uuid.UUID `json:"session_id,omitempty"`
	Question  string     `json:"question"`
}

// QuestionUpdate is one line of the question stream: a snapshot of the
// assistant message as it is assembled, plus the id of the session the
// exchange belongs to (assigned lazily on the first message).
type QuestionUpdate struct {
	SessionID uuid.UUID   `json:"session_id"`
	Message   ChatMessage `json:"message"`
}

type GenerateTitleRequest struct {
	Message string `json:"message"`
}

type GenerateTitleResponse struct {
	Title string `json:"title"`
}

type ListSessionsParams struct {
	ProjectID *uuid.UUID `schema:"project_id"`
	Limit     int        `schema:"limit"`
}
