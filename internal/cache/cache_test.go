package cache

import (
	"context"
	"testing"

	"datachat-backend/internal/chat"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileCache(t *testing.T) {
	fileCache := NewMemoryFileCache()
	ctx := context.Background()
	sessionID := uuid.New()

	_, ok, err := fileCache.GetActiveFile(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, ok)

	ref := chat.FileRef{
		FileID:   "file-1",
		Filename: "sales.csv",
		FileSize: 2048,
		Columns:  []string{"region", "revenue"},
		RowCount: 120,
	}
	require.NoError(t, fileCache.SetActiveFile(ctx, sessionID, ref))

	got, ok, err := fileCache.GetActiveFile(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ref, got)

	replacement := chat.FileRef{FileID: "file-2", Filename: "costs.xlsx"}
	require.NoError(t, fileCache.SetActiveFile(ctx, sessionID, replacement))

	got, ok, err = fileCache.GetActiveFile(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "file-2", got.FileID)

	require.NoError(t, fileCache.ClearActiveFile(ctx, sessionID))
	_, ok, err = fileCache.GetActiveFile(ctx, sessionID)
	require.NoError(t, err)
	assert.False(t, ok)
}
