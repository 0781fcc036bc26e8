package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"datachat-backend/internal/upload"
	"datachat-backend/pkg/api"
)

// multipartMemoryLimit is how much of the multipart form is held in memory
// before spilling to disk; the upload itself is size-checked downstream.
const multipartMemoryLimit = 10 * 1024 * 1024

type FileService struct {
	orchestrator *upload.Orchestrator
}

func NewFileService(orchestrator *upload.Orchestrator) *FileService {
	return &FileService{orchestrator: orchestrator}
}

func (s *FileService) AddRoutes(r chi.Router) {
	r.Route("/files", func(r chi.Router) {
		r.Post("/upload", RestHandler(s.Upload))
		r.Get("/{file_id}/preview", RestHandler(s.Preview))
	})
}

func (s *FileService) Upload(r *http.Request) (any, error) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "missing 'file' form field")
	}
	defer file.Close()

	var sessionID *uuid.UUID
	if raw := r.FormValue("session_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid session_id %q", raw)
		}
		sessionID = &id
	}

	metadata, err := s.orchestrator.Upload(r.Context(), UserID(r), sessionID, header.Filename, file)
	if errors.Is(err, upload.ErrUnsupportedFileType) || errors.Is(err, upload.ErrFileTooLarge) {
		return nil, CodedError(http.StatusBadRequest, err)
	}
	if err != nil {
		return nil, CodedErrorf(http.StatusBadGateway, "file upload failed: %v", err)
	}

	return toFileUploadResponse(metadata), nil
}

func (s *FileService) Preview(r *http.Request) (any, error) {
	fileID := chi.URLParam(r, "file_id")
	if fileID == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "missing {file_id} url parameter")
	}

	metadata, err := s.orchestrator.GetFile(r.Context(), fileID)
	if errors.Is(err, upload.ErrFileNotFound) {
		return nil, CodedErrorf(http.StatusNotFound, "file %v not found", fileID)
	}
	if err != nil {
		return nil, err
	}
	if metadata.UserId != UserID(r) {
		return nil, CodedErrorf(http.StatusNotFound, "file %v not found", fileID)
	}

	resp := toFileUploadResponse(metadata)
	return api.FilePreviewResponse{
		Columns:  resp.Columns,
		RowCount: resp.RowCount,
		Preview:  resp.Preview,
	}, nil
}
