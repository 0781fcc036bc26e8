// Package upload coordinates the two-step file upload: a durable copy in the
// object store, then a parse by the analysis backend. The steps run in order;
// a backend failure after the object write leaves an orphaned object behind,
// which is accepted rather than cleaned up.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"datachat-backend/internal/analysis"
	"datachat-backend/internal/cache"
	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/internal/messaging"
	"datachat-backend/internal/storage"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultMaxFileSize = 50 * 1024 * 1024

var (
	ErrFileTooLarge        = errors.New("file exceeds the maximum upload size")
	ErrUnsupportedFileType = errors.New("only .csv, .xlsx and .xls files are supported")
	ErrFileNotFound        = errors.New("file not found")
)

var supportedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
}

// ParseBackend is the slice of the analysis client the orchestrator needs.
type ParseBackend interface {
	UploadFile(ctx context.Context, filename string, data io.Reader) (analysis.ParsedFile, error)
}

type Orchestrator struct {
	db          *gorm.DB
	objects     storage.ObjectStore
	backend     ParseBackend
	sessions    *chat.SessionStore
	fileCache   cache.FileCache
	publisher   messaging.Publisher
	maxFileSize int64
}

func NewOrchestrator(db *gorm.DB, objects storage.ObjectStore, backend ParseBackend, sessions *chat.SessionStore, fileCache cache.FileCache, publisher messaging.Publisher) *Orchestrator {
	return &Orchestrator{
		db:          db,
		objects:     objects,
		backend:     backend,
		sessions:    sessions,
		fileCache:   fileCache,
		publisher:   publisher,
		maxFileSize: DefaultMaxFileSize,
	}
}

func (o *Orchestrator) SetMaxFileSize(limit int64) {
	o.maxFileSize = limit
}

// Upload runs the full pipeline for one file. If sessionID is non-nil the
// file becomes the session's active file (replacing any previous one) and a
// file-card message lands in the transcript. On failure the session's active
// file is untouched.
func (o *Orchestrator) Upload(ctx context.Context, userID string, sessionID *uuid.UUID, filename string, data io.Reader) (database.FileMetadata, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !supportedExtensions[ext] {
		return database.FileMetadata{}, ErrUnsupportedFileType
	}

	// The bytes feed both the object store and the backend, so buffer them
	// once. The read is capped at one byte over the limit to detect oversize
	// uploads without draining an unbounded stream.
	content, err := io.ReadAll(io.LimitReader(data, o.maxFileSize+1))
	if err != nil {
		return database.FileMetadata{}, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(content)) > o.maxFileSize {
		return database.FileMetadata{}, ErrFileTooLarge
	}

	now := time.Now().UTC()

	key := storage.UploadKey(userID, filename, now)
	if err := o.objects.PutObject(ctx, key, bytes.NewReader(content)); err != nil {
		return database.FileMetadata{}, fmt.Errorf("storing upload: %w", err)
	}
	objectURL := o.objects.URL(key)

	parsed, err := o.backend.UploadFile(ctx, filename, bytes.NewReader(content))
	if err != nil {
		// The stored object stays behind; file ids come from the backend so
		// there is no metadata row to point at it.
		slog.Warn("analysis backend rejected upload, stored object orphaned", "key", key, "error", err)
		return database.FileMetadata{}, err
	}

	metadata, err := o.recordFile(ctx, userID, objectURL, filename, int64(len(content)), now, parsed)
	if err != nil {
		return database.FileMetadata{}, err
	}

	if sessionID != nil {
		o.activateFile(ctx, *sessionID, metadata, parsed)
	}

	return metadata, nil
}

func (o *Orchestrator) recordFile(ctx context.Context, userID, objectURL, filename string, size int64, now time.Time, parsed analysis.ParsedFile) (database.FileMetadata, error) {
	columns, err := json.Marshal(parsed.Columns)
	if err != nil {
		return database.FileMetadata{}, fmt.Errorf("encoding file columns: %w", err)
	}
	preview, err := json.Marshal(parsed.Preview)
	if err != nil {
		return database.FileMetadata{}, fmt.Errorf("encoding file preview: %w", err)
	}

	metadata := database.FileMetadata{
		FileId:     parsed.FileID,
		UserId:     userID,
		ObjectUrl:  objectURL,
		Filename:   filename,
		FileSize:   size,
		Columns:    datatypes.JSON(columns),
		RowCount:   parsed.RowCount,
		Preview:    datatypes.JSON(preview),
		UploadedAt: now,
	}

	// The backend may hand out the same file id for an identical re-upload.
	err = o.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&metadata).Error
	if err != nil {
		return database.FileMetadata{}, fmt.Errorf("recording file metadata: %w", err)
	}
	return metadata, nil
}

// activateFile makes the uploaded file the session's active file and drops a
// file-card message into the transcript. Both are best-effort relative to the
// upload itself, which has already succeeded.
func (o *Orchestrator) activateFile(ctx context.Context, sessionID uuid.UUID, metadata database.FileMetadata, parsed analysis.ParsedFile) {
	ref := chat.FileRef{
		FileID:    metadata.FileId,
		ObjectURL: metadata.ObjectUrl,
		Filename:  metadata.Filename,
		FileSize:  metadata.FileSize,
		Columns:   parsed.Columns,
		RowCount:  parsed.RowCount,
	}

	if err := o.sessions.SetActiveFile(ctx, sessionID, ref); err != nil {
		slog.Error("error persisting active file", "session_id", sessionID, "file_id", ref.FileID, "error", err)
	}
	if err := o.fileCache.SetActiveFile(ctx, sessionID, ref); err != nil {
		slog.Error("error caching active file", "session_id", sessionID, "file_id", ref.FileID, "error", err)
	}

	card := chat.Message{
		ID:        uuid.New(),
		Role:      chat.RoleUser,
		Content:   fmt.Sprintf("Uploaded %s (%d rows)", metadata.Filename, metadata.RowCount),
		Timestamp: time.Now().UTC(),
		Table:     json.RawMessage(metadata.Preview),
	}
	if err := o.publisher.PublishAppendMessage(ctx, messaging.AppendMessagePayload{SessionId: sessionID, Message: card}); err != nil {
		slog.Error("error publishing file card message", "session_id", sessionID, "error", err)
	}
}

// GetFile looks up previously uploaded file metadata by the backend's id.
func (o *Orchestrator) GetFile(ctx context.Context, fileID string) (database.FileMetadata, error) {
	var metadata database.FileMetadata
	err := o.db.WithContext(ctx).First(&metadata, "file_id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return metadata, ErrFileNotFound
	}
	if err != nil {
		return metadata, fmt.Errorf("reading file metadata %s: %w", fileID, err)
	}
	return metadata, nil
}
