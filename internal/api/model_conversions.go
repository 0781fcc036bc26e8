package api

import (
	"encoding/json"
	"time"

	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/pkg/api"

	"github.com/google/uuid"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toSessionMetadata(session database.ChatSession) api.ChatSessionMetadata {
	var projectID *uuid.UUID
	if session.ProjectId.Valid {
		id := session.ProjectId.UUID
		projectID = &id
	}
	return api.ChatSessionMetadata{
		ID:         session.Id,
		Title:      session.Title,
		Status:     session.Status,
		ProjectID:  projectID,
		ActiveFile: json.RawMessage(session.ActiveFile),
		CreatedAt:  formatTime(session.CreationTime),
		UpdatedAt:  formatTime(session.UpdateTime),
	}
}

func toChatMessage(msg chat.Message) api.ChatMessage {
	var code *api.CodeExecution
	if msg.Code != nil {
		code = &api.CodeExecution{
			Lines:     msg.Code.Lines,
			Executing: msg.Code.Executing,
			Result:    msg.Code.Result,
		}
	}
	return api.ChatMessage{
		ID:                msg.ID,
		Role:              msg.Role,
		Content:           msg.Content,
		Timestamp:         formatTime(msg.Timestamp),
		Chart:             msg.Chart,
		Table:             msg.Table,
		Code:              code,
		FollowUpQuestions: msg.FollowUpQuestions,
		Streaming:         msg.Streaming,
	}
}

func toProject(project database.Project) api.Project {
	return api.Project{
		ID:          project.Id,
		Title:       project.Title,
		Description: project.Description,
		Starred:     project.Starred,
		Status:      project.Status,
		CreatedAt:   formatTime(project.CreationTime),
		UpdatedAt:   formatTime(project.UpdateTime),
	}
}

func toFileUploadResponse(metadata database.FileMetadata) api.FileUploadResponse {
	var columns []string
	if len(metadata.Columns) > 0 {
		_ = json.Unmarshal(metadata.Columns, &columns)
	}
	return api.FileUploadResponse{
		FileID:     metadata.FileId,
		Filename:   metadata.Filename,
		FileSize:   metadata.FileSize,
		ObjectURL:  metadata.ObjectUrl,
		Columns:    columns,
		RowCount:   metadata.RowCount,
		Preview:    json.RawMessage(metadata.Preview),
		UploadedAt: formatTime(metadata.UploadedAt),
	}
}
