package integrationtests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"datachat-backend/internal/chat"
	"datachat-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresSessionStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode.")
	}

	db := createDB(t)
	store := chat.NewSessionStore(db)
	ctx := context.Background()

	sessionID, err := store.CreateSession(ctx, "user-1", "Revenue analysis")
	require.NoError(t, err)

	question := chat.NewUserMessage("plot revenue by month")
	answer := chat.Message{
		ID:        uuid.New(),
		Role:      chat.RoleAssistant,
		Content:   "Here you go.",
		Timestamp: time.Now().UTC(),
		Chart:     json.RawMessage(`{"type":"line"}`),
	}

	require.NoError(t, store.AppendMessage(ctx, sessionID, question))
	require.NoError(t, store.AppendMessage(ctx, sessionID, answer))

	messages := store.GetMessages(ctx, sessionID)
	require.Len(t, messages, 2)
	assert.JSONEq(t, `{"type":"line"}`, string(messages[1].Chart))

	// Stale-row append conflicts instead of clobbering.
	stale, err := store.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, sessionID, chat.NewUserMessage("winner")))
	err = store.TryAppend(ctx, stale, chat.NewUserMessage("loser"))
	require.ErrorIs(t, err, chat.ErrVersionConflict)

	sessions := store.ListSessions(ctx, "user-1")
	require.Len(t, sessions, 1)
	assert.Equal(t, database.SessionActive, sessions[0].Status)

	require.NoError(t, store.SoftDelete(ctx, sessionID))
	assert.Empty(t, store.ListSessions(ctx, "user-1"))
}
