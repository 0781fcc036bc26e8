package api

import "github.com/google/uuid"

type Project struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Starred     bool      `json:"starred"`
	Status      string    `json:"status"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

type CreateProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type CreateProjectResponse struct {
	ProjectID uuid.UUID `json:"project_id"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Starred     *bool   `json:"starred,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type GetProjectsResponse struct {
	Projects []Project `json:"projects"`
}
