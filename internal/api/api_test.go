package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"datachat-backend/internal/analysis"
	"datachat-backend/internal/cache"
	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/internal/messaging"
	"datachat-backend/internal/storage"
	"datachat-backend/internal/upload"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testUserID = "user-1"

// fakeAnalysisBackend stands in for the external analysis service. Stream
// lines and responses are set per test.
type fakeAnalysisBackend struct {
	mu          sync.Mutex
	streamLines []string
	title       string
	parsed      analysis.ParsedFile
	uploadFail  bool
}

func (f *fakeAnalysisBackend) setStream(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamLines = lines
}

func (f *fakeAnalysisBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat/unified-question-stream", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		lines := f.streamLines
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range lines {
			fmt.Fprintf(w, "data: %s\n", line)
		}
	})
	mux.HandleFunc("/api/chat/generate-title", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		title := f.title
		f.mu.Unlock()
		if title == "" {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"title":%q}`, title)
	})
	mux.HandleFunc("/api/files/upload", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.uploadFail {
			http.Error(w, "parse failed", http.StatusUnprocessableEntity)
			return
		}
		data, err := json.Marshal(f.parsed)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	return mux
}

type testEnv struct {
	router   chi.Router
	db       *gorm.DB
	sessions *chat.SessionStore
	backend  *fakeAnalysisBackend
	queue    *messaging.InMemoryQueue
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	backend := &fakeAnalysisBackend{
		parsed: analysis.ParsedFile{
			FileID:   "file-1",
			Filename: "sales.csv",
			Columns:  []string{"region", "revenue"},
			RowCount: 2,
			Preview:  []map[string]any{{"region": "west", "revenue": 100}},
		},
	}
	backendServer := httptest.NewServer(backend.handler())
	t.Cleanup(backendServer.Close)

	client := analysis.NewClient(backendServer.URL)

	sessions := chat.NewSessionStore(db)
	fileCache := cache.NewMemoryFileCache()
	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	wg := &sync.WaitGroup{}
	ctx, cancel := context.WithCancel(context.Background())
	worker := &messaging.Worker{Sessions: sessions, Reciever: queue, WaitGroup: wg}
	worker.Start(ctx)
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	objects, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	orchestrator := upload.NewOrchestrator(db, objects, client, sessions, fileCache, queue)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Use(AuthMiddleware)
		NewChatService(sessions, client, fileCache, queue).AddRoutes(r)
		NewFileService(orchestrator).AddRoutes(r)
		NewProjectService(db, sessions).AddRoutes(r)
	})

	return &testEnv{
		router:   router,
		db:       db,
		sessions: sessions,
		backend:  backend,
		queue:    queue,
	}
}

func (env *testEnv) request(t *testing.T, method, path string, body any, result any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-User-ID", testUserID)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if result != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), result))
	}
	return rec
}

func (env *testEnv) requestAs(t *testing.T, userID, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-User-ID", userID)
	return req, httptest.NewRecorder()
}

func (env *testEnv) uploadFile(t *testing.T, filename, content, sessionID string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if sessionID != "" {
		require.NoError(t, writer.WriteField("session_id", sessionID))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", &buf)
	req.Header.Set("X-User-ID", testUserID)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}
