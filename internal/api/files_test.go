package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"datachat-backend/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileUpload(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.uploadFile(t, "sales.csv", "region,revenue\nwest,100\neast,50\n", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.FileUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "file-1", resp.FileID)
	assert.Equal(t, "sales.csv", resp.Filename)
	assert.Equal(t, []string{"region", "revenue"}, resp.Columns)
	assert.Equal(t, int64(2), resp.RowCount)
	assert.NotEmpty(t, resp.ObjectURL)
}

func TestFileUpload_RejectsUnsupportedType(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.uploadFile(t, "notes.txt", "hello", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileUpload_BackendFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.backend.uploadFail = true

	rec := env.uploadFile(t, "sales.csv", "a,b\n1,2\n", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFileUpload_SetsSessionActiveFile(t *testing.T) {
	env := setupTestEnv(t)

	var created api.CreateSessionResponse
	env.request(t, http.MethodPost, "/api/chat/sessions", api.CreateSessionRequest{Title: "with file"}, &created)

	rec := env.uploadFile(t, "sales.csv", "region,revenue\nwest,100\n", created.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)

	var session api.ChatSessionMetadata
	env.request(t, http.MethodGet, "/api/chat/sessions/"+created.SessionID, nil, &session)
	require.NotEmpty(t, session.ActiveFile)
	assert.Contains(t, string(session.ActiveFile), "file-1")

	// The file card lands in the transcript via the persistence worker.
	require.Eventually(t, func() bool {
		var history api.GetHistoryResponse
		env.request(t, http.MethodGet, "/api/chat/sessions/"+created.SessionID+"/history", nil, &history)
		return len(history.Messages) == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileUpload_InvalidSessionID(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.uploadFile(t, "sales.csv", "a,b\n1,2\n", "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilePreview(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.uploadFile(t, "sales.csv", "region,revenue\nwest,100\n", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var preview api.FilePreviewResponse
	rec = env.request(t, http.MethodGet, "/api/files/file-1/preview", nil, &preview)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"region", "revenue"}, preview.Columns)
	assert.Equal(t, int64(2), preview.RowCount)
	assert.Contains(t, string(preview.Preview), "west")
}

func TestFilePreview_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/files/missing/preview", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilePreview_OtherUsersFileHidden(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.uploadFile(t, "sales.csv", "a,b\n1,2\n", "")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/files/file-1/preview", nil)
	req.Header.Set("X-User-ID", "someone-else")
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusNotFound, out.Code)
}
