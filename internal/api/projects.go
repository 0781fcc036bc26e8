package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/pkg/api"
)

type ProjectService struct {
	db       *gorm.DB
	sessions *chat.SessionStore
}

func NewProjectService(db *gorm.DB, sessions *chat.SessionStore) *ProjectService {
	return &ProjectService{db: db, sessions: sessions}
}

func (s *ProjectService) AddRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", RestHandler(s.GetProjects))
		r.Post("/", RestHandler(s.CreateProject))
		r.Get("/{project_id}", RestHandler(s.GetProject))
		r.Patch("/{project_id}", RestHandler(s.UpdateProject))
		r.Delete("/{project_id}", RestHandler(s.ArchiveProject))
		r.Get("/{project_id}/sessions", RestHandler(s.GetProjectSessions))
	})
}

func (s *ProjectService) ownedProject(r *http.Request, projectID uuid.UUID) (database.Project, error) {
	var project database.Project
	err := s.db.WithContext(r.Context()).First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && project.OwnerId != UserID(r)) {
		return project, CodedErrorf(http.StatusNotFound, "project %v not found", projectID)
	}
	if err != nil {
		return project, err
	}
	return project, nil
}

func (s *ProjectService) GetProjects(r *http.Request) (any, error) {
	var projects []database.Project
	err := s.db.WithContext(r.Context()).
		Where("owner_id = ? AND status = ?", UserID(r), database.ProjectActive).
		Order("starred DESC, update_time DESC").
		Find(&projects).Error
	if err != nil {
		return nil, err
	}

	resp := api.GetProjectsResponse{Projects: make([]api.Project, 0, len(projects))}
	for _, project := range projects {
		resp.Projects = append(resp.Projects, toProject(project))
	}
	return resp, nil
}

func (s *ProjectService) CreateProject(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateProjectRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "title must not be empty")
	}

	now := time.Now().UTC()
	project := database.Project{
		Id:           uuid.New(),
		OwnerId:      UserID(r),
		Title:        req.Title,
		Description:  req.Description,
		Status:       database.ProjectActive,
		CreationTime: now,
		UpdateTime:   now,
	}
	if err := s.db.WithContext(r.Context()).Create(&project).Error; err != nil {
		return nil, err
	}

	return api.CreateProjectResponse{ProjectID: project.Id}, nil
}

func (s *ProjectService) GetProject(r *http.Request) (any, error) {
	projectID, err := URLParamUUID(r, "project_id")
	if err != nil {
		return nil, err
	}

	project, err := s.ownedProject(r, projectID)
	if err != nil {
		return nil, err
	}
	return toProject(project), nil
}

func (s *ProjectService) UpdateProject(r *http.Request) (any, error) {
	projectID, err := URLParamUUID(r, "project_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedProject(r, projectID); err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.UpdateProjectRequest](r)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"update_time": time.Now().UTC()}
	if req.Title != nil {
		if *req.Title == "" {
			return nil, CodedErrorf(http.StatusBadRequest, "title must not be empty")
		}
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Starred != nil {
		updates["starred"] = *req.Starred
	}
	if req.Status != nil {
		if *req.Status != database.ProjectActive && *req.Status != database.ProjectArchived {
			return nil, CodedErrorf(http.StatusBadRequest, "invalid project status %q", *req.Status)
		}
		updates["status"] = *req.Status
	}

	err = s.db.WithContext(r.Context()).
		Model(&database.Project{}).
		Where("id = ?", projectID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *ProjectService) ArchiveProject(r *http.Request) (any, error) {
	projectID, err := URLParamUUID(r, "project_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedProject(r, projectID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(r.Context()).
		Model(&database.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{
			"status":      database.ProjectArchived,
			"update_time": time.Now().UTC(),
		}).Error
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *ProjectService) GetProjectSessions(r *http.Request) (any, error) {
	projectID, err := URLParamUUID(r, "project_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedProject(r, projectID); err != nil {
		return nil, err
	}

	rows := s.sessions.ListProjectSessions(r.Context(), UserID(r), projectID)

	resp := api.GetSessionsResponse{Sessions: make([]api.ChatSessionMetadata, 0, len(rows))}
	for _, row := range rows {
		resp.Sessions = append(resp.Sessions, toSessionMetadata(row))
	}
	return resp, nil
}
