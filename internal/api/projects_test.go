package api

import (
	"net/http"
	"testing"

	"datachat-backend/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProject(t *testing.T, env *testEnv, title string) uuid.UUID {
	t.Helper()
	var resp api.CreateProjectResponse
	rec := env.request(t, http.MethodPost, "/api/projects/", api.CreateProjectRequest{Title: title}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	return resp.ProjectID
}

func TestCreateAndGetProject(t *testing.T) {
	env := setupTestEnv(t)

	projectID := createProject(t, env, "Q3 analysis")

	var project api.Project
	rec := env.request(t, http.MethodGet, "/api/projects/"+projectID.String(), nil, &project)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Q3 analysis", project.Title)
	assert.Equal(t, "ACTIVE", project.Status)
	assert.False(t, project.Starred)
}

func TestCreateProject_RequiresTitle(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/projects/", api.CreateProjectRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProject(t *testing.T) {
	env := setupTestEnv(t)

	projectID := createProject(t, env, "original")

	title := "renamed"
	starred := true
	rec := env.request(t, http.MethodPatch, "/api/projects/"+projectID.String(), api.UpdateProjectRequest{Title: &title, Starred: &starred}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var project api.Project
	env.request(t, http.MethodGet, "/api/projects/"+projectID.String(), nil, &project)
	assert.Equal(t, "renamed", project.Title)
	assert.True(t, project.Starred)
}

func TestUpdateProject_InvalidStatus(t *testing.T) {
	env := setupTestEnv(t)

	projectID := createProject(t, env, "p")
	status := "BOGUS"
	rec := env.request(t, http.MethodPatch, "/api/projects/"+projectID.String(), api.UpdateProjectRequest{Status: &status}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveProjectHidesItFromList(t *testing.T) {
	env := setupTestEnv(t)

	keep := createProject(t, env, "keep")
	archive := createProject(t, env, "archive")

	rec := env.request(t, http.MethodDelete, "/api/projects/"+archive.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var projects api.GetProjectsResponse
	env.request(t, http.MethodGet, "/api/projects/", nil, &projects)
	require.Len(t, projects.Projects, 1)
	assert.Equal(t, keep, projects.Projects[0].ID)
}

func TestStarredProjectsListFirst(t *testing.T) {
	env := setupTestEnv(t)

	createProject(t, env, "plain")
	starredID := createProject(t, env, "important")

	starred := true
	env.request(t, http.MethodPatch, "/api/projects/"+starredID.String(), api.UpdateProjectRequest{Starred: &starred}, nil)

	var projects api.GetProjectsResponse
	env.request(t, http.MethodGet, "/api/projects/", nil, &projects)
	require.Len(t, projects.Projects, 2)
	assert.Equal(t, starredID, projects.Projects[0].ID)
}

func TestAssignSessionToProject(t *testing.T) {
	env := setupTestEnv(t)

	projectID := createProject(t, env, "with sessions")

	var created api.CreateSessionResponse
	env.request(t, http.MethodPost, "/api/chat/sessions", api.CreateSessionRequest{Title: "session"}, &created)

	rec := env.request(t, http.MethodPost, "/api/chat/sessions/"+created.SessionID+"/project", api.AssignProjectRequest{ProjectID: projectID}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sessions api.GetSessionsResponse
	rec = env.request(t, http.MethodGet, "/api/projects/"+projectID.String()+"/sessions", nil, &sessions)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, created.SessionID, sessions.Sessions[0].ID.String())

	// The project filter on the main session list matches too.
	rec = env.request(t, http.MethodGet, "/api/chat/sessions?project_id="+projectID.String(), nil, &sessions)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sessions.Sessions, 1)
}

func TestProjectsScopedToOwner(t *testing.T) {
	env := setupTestEnv(t)

	projectID := createProject(t, env, "private")

	req, rec := env.requestAs(t, "someone-else", http.MethodGet, "/api/projects/"+projectID.String())
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
