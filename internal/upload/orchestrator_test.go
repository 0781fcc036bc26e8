package upload

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"datachat-backend/internal/analysis"
	"datachat-backend/internal/cache"
	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"
	"datachat-backend/internal/messaging"
	"datachat-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeBackend struct {
	parsed analysis.ParsedFile
	err    error
	calls  int
}

func (b *fakeBackend) UploadFile(ctx context.Context, filename string, data io.Reader) (analysis.ParsedFile, error) {
	b.calls++
	if b.err != nil {
		return analysis.ParsedFile{}, b.err
	}
	return b.parsed, nil
}

type fixture struct {
	orchestrator *Orchestrator
	backend      *fakeBackend
	objects      *storage.LocalObjectStore
	sessions     *chat.SessionStore
	fileCache    *cache.MemoryFileCache
	queue        *messaging.InMemoryQueue
	db           *gorm.DB
}

func setupOrchestrator(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	objects, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	backend := &fakeBackend{
		parsed: analysis.ParsedFile{
			FileID:   "file-abc",
			Filename: "sales.csv",
			Columns:  []string{"region", "revenue"},
			RowCount: 3,
			Preview:  []map[string]any{{"region": "west", "revenue": 100}},
		},
	}

	sessions := chat.NewSessionStore(db)
	fileCache := cache.NewMemoryFileCache()
	queue := messaging.NewInMemoryQueue()
	t.Cleanup(queue.Close)

	return &fixture{
		orchestrator: NewOrchestrator(db, objects, backend, sessions, fileCache, queue),
		backend:      backend,
		objects:      objects,
		sessions:     sessions,
		fileCache:    fileCache,
		queue:        queue,
		db:           db,
	}
}

func TestUpload_RejectsUnsupportedExtension(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orchestrator.Upload(context.Background(), "user-1", nil, "report.pdf", strings.NewReader("%PDF"))
	require.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Zero(t, f.backend.calls)
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	f := setupOrchestrator(t)
	f.orchestrator.SetMaxFileSize(10)

	_, err := f.orchestrator.Upload(context.Background(), "user-1", nil, "big.csv", strings.NewReader("a,b\n1,2\n3,4\n5,6\n"))
	require.ErrorIs(t, err, ErrFileTooLarge)
	assert.Zero(t, f.backend.calls)

	objs, err := f.objects.ListObjects(context.Background(), "user-files/")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestUpload_StoresObjectAndMetadata(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	metadata, err := f.orchestrator.Upload(ctx, "user-1", nil, "sales.csv", strings.NewReader("region,revenue\nwest,100\n"))
	require.NoError(t, err)

	assert.Equal(t, "file-abc", metadata.FileId)
	assert.Equal(t, "sales.csv", metadata.Filename)
	assert.Equal(t, int64(3), metadata.RowCount)
	assert.NotEmpty(t, metadata.ObjectUrl)

	objs, err := f.objects.ListObjects(ctx, "user-files/user-1/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.True(t, strings.HasSuffix(objs[0].Name, "_sales.csv"))

	got, err := f.orchestrator.GetFile(ctx, "file-abc")
	require.NoError(t, err)
	assert.Equal(t, metadata.FileId, got.FileId)
	assert.JSONEq(t, `["region","revenue"]`, string(got.Columns))
}

func TestUpload_ActivatesFileForSession(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	sessionID, err := f.sessions.CreateSession(ctx, "user-1", "New chat")
	require.NoError(t, err)

	_, err = f.orchestrator.Upload(ctx, "user-1", &sessionID, "sales.csv", strings.NewReader("region,revenue\nwest,100\n"))
	require.NoError(t, err)

	ref := f.sessions.ActiveFile(ctx, sessionID)
	require.NotNil(t, ref)
	assert.Equal(t, "file-abc", ref.FileID)

	cached, ok, err := f.fileCache.GetActiveFile(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "file-abc", cached.FileID)

	// The file card lands on the queue for the persistence worker.
	select {
	case task := <-f.queue.Tasks():
		assert.Equal(t, messaging.PersistenceQueue, task.Type())
		assert.Contains(t, string(task.Payload()), "sales.csv")
	case <-time.After(time.Second):
		t.Fatal("expected a file card task on the persistence queue")
	}
}

func TestUpload_ReuploadReplacesActiveFile(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	sessionID, err := f.sessions.CreateSession(ctx, "user-1", "New chat")
	require.NoError(t, err)

	_, err = f.orchestrator.Upload(ctx, "user-1", &sessionID, "sales.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	f.backend.parsed.FileID = "file-def"
	f.backend.parsed.Filename = "costs.xlsx"

	_, err = f.orchestrator.Upload(ctx, "user-1", &sessionID, "costs.xlsx", strings.NewReader("c,d\n3,4\n"))
	require.NoError(t, err)

	ref := f.sessions.ActiveFile(ctx, sessionID)
	require.NotNil(t, ref)
	assert.Equal(t, "file-def", ref.FileID)
}

func TestUpload_BackendFailureLeavesActiveFileUntouched(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	sessionID, err := f.sessions.CreateSession(ctx, "user-1", "New chat")
	require.NoError(t, err)

	_, err = f.orchestrator.Upload(ctx, "user-1", &sessionID, "sales.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)

	f.backend.err = errors.New("parse failed")

	_, err = f.orchestrator.Upload(ctx, "user-1", &sessionID, "broken.csv", strings.NewReader("x"))
	require.Error(t, err)

	ref := f.sessions.ActiveFile(ctx, sessionID)
	require.NotNil(t, ref)
	assert.Equal(t, "file-abc", ref.FileID)

	// The object store copy from the failed attempt is orphaned, not removed.
	objs, err := f.objects.ListObjects(ctx, "user-files/user-1/")
	require.NoError(t, err)
	assert.Len(t, objs, 2)

	var count int64
	require.NoError(t, f.db.Model(&database.FileMetadata{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetFile_NotFound(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orchestrator.GetFile(context.Background(), "missing")
	require.ErrorIs(t, err, ErrFileNotFound)
}
