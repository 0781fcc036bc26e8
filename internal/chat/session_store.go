package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"datachat-backend/internal/database"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrVersionConflict is returned when a concurrent writer updated the
	// session between our read and write. Callers decide whether to retry;
	// nothing is silently lost.
	ErrVersionConflict = errors.New("chat session was modified concurrently")
)

// SessionStore maps in-memory sessions and messages onto the relational
// store. Messages live as an ordered JSON list on the session row, so an
// append is a read-modify-write guarded by the session's version column.
//
// Read failures on history and listing degrade to empty results (logged);
// callers cannot distinguish "truly empty" from "fetch failed". Create,
// delete and append propagate errors.
type SessionStore struct {
	db *gorm.DB
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(ctx context.Context, userID, title string) (uuid.UUID, error) {
	now := time.Now().UTC()
	session := database.ChatSession{
		Id:           uuid.New(),
		UserId:       userID,
		Title:        title,
		Status:       database.SessionActive,
		CreationTime: now,
		UpdateTime:   now,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return uuid.Nil, fmt.Errorf("creating chat session: %w", err)
	}
	return session.Id, nil
}

func (s *SessionStore) GetSession(ctx context.Context, sessionID uuid.UUID) (database.ChatSession, error) {
	var session database.ChatSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, ErrSessionNotFound
	}
	if err != nil {
		return session, fmt.Errorf("reading chat session %s: %w", sessionID, err)
	}
	return session, nil
}

// AppendMessage appends one message to the session transcript and bumps the
// updated timestamp (monotonically non-decreasing). Reports
// ErrVersionConflict if a concurrent append won the race.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, msg Message) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.TryAppend(ctx, session, msg)
}

// TryAppend performs one compare-and-swap append against an already-read
// session row. Exposed separately so conflict handling (worker retries,
// tests) can control the re-read.
func (s *SessionStore) TryAppend(ctx context.Context, session database.ChatSession, msg Message) error {
	messages, err := decodeMessages(session.Messages)
	if err != nil {
		return fmt.Errorf("decoding messages for session %s: %w", session.Id, err)
	}

	encoded, err := encodeMessages(append(messages, msg))
	if err != nil {
		return fmt.Errorf("encoding messages for session %s: %w", session.Id, err)
	}

	updateTime := time.Now().UTC()
	if updateTime.Before(session.UpdateTime) {
		updateTime = session.UpdateTime
	}

	res := s.db.WithContext(ctx).
		Model(&database.ChatSession{}).
		Where("id = ? AND version = ?", session.Id, session.Version).
		Updates(map[string]any{
			"messages":    encoded,
			"version":     session.Version + 1,
			"update_time": updateTime,
		})
	if res.Error != nil {
		return fmt.Errorf("writing messages for session %s: %w", session.Id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

// GetMessages returns the transcript in stored (chronological) order. An
// empty result is ambiguous between "no messages" and "fetch failed"; the
// failure is logged either way.
func (s *SessionStore) GetMessages(ctx context.Context, sessionID uuid.UUID) []Message {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		slog.Error("error loading session for history", "session_id", sessionID, "error", err)
		return nil
	}

	messages, err := decodeMessages(session.Messages)
	if err != nil {
		slog.Error("error decoding session history", "session_id", sessionID, "error", err)
		return nil
	}
	return messages
}

// ListSessions returns the user's non-deleted sessions, most recently
// updated first. Failures degrade to an empty list.
func (s *SessionStore) ListSessions(ctx context.Context, userID string) []database.ChatSession {
	var sessions []database.ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, database.SessionActive).
		Order("update_time DESC").
		Find(&sessions).Error
	if err != nil {
		slog.Error("error listing chat sessions", "user_id", userID, "error", err)
		return nil
	}
	return sessions
}

// ListProjectSessions is ListSessions restricted to one project.
func (s *SessionStore) ListProjectSessions(ctx context.Context, userID string, projectID uuid.UUID) []database.ChatSession {
	var sessions []database.ChatSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND project_id = ?", userID, database.SessionActive, projectID).
		Order("update_time DESC").
		Find(&sessions).Error
	if err != nil {
		slog.Error("error listing project chat sessions", "user_id", userID, "project_id", projectID, "error", err)
		return nil
	}
	return sessions
}

// SoftDelete marks the session deleted without removing its data.
func (s *SessionStore) SoftDelete(ctx context.Context, sessionID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&database.ChatSession{}).
		Where("id = ?", sessionID).
		Update("status", database.SessionDeleted)
	if res.Error != nil {
		return fmt.Errorf("deleting chat session %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Rename(ctx context.Context, sessionID uuid.UUID, title string) error {
	res := s.db.WithContext(ctx).
		Model(&database.ChatSession{}).
		Where("id = ?", sessionID).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("renaming chat session %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) AssignProject(ctx context.Context, sessionID, projectID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&database.ChatSession{}).
		Where("id = ?", sessionID).
		Update("project_id", projectID)
	if res.Error != nil {
		return fmt.Errorf("assigning session %s to project %s: %w", sessionID, projectID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SetActiveFile persists the session's active file reference; a later upload
// fully replaces an earlier one.
func (s *SessionStore) SetActiveFile(ctx context.Context, sessionID uuid.UUID, ref FileRef) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshalling file reference: %w", err)
	}

	res := s.db.WithContext(ctx).
		Model(&database.ChatSession{}).
		Where("id = ?", sessionID).
		Update("active_file", datatypes.JSON(data))
	if res.Error != nil {
		return fmt.Errorf("setting active file for session %s: %w", sessionID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ActiveFile returns the persisted active file reference, if any. A missing
// session or unreadable reference yields (nil, logged) like other reads.
func (s *SessionStore) ActiveFile(ctx context.Context, sessionID uuid.UUID) *FileRef {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		slog.Error("error loading session for active file", "session_id", sessionID, "error", err)
		return nil
	}
	if len(session.ActiveFile) == 0 {
		return nil
	}

	var ref FileRef
	if err := json.Unmarshal(session.ActiveFile, &ref); err != nil {
		slog.Error("error decoding active file reference", "session_id", sessionID, "error", err)
		return nil
	}
	return &ref
}
