package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"datachat-backend/internal/chat"

	"github.com/google/uuid"
)

// maxAppendRetries bounds re-reads after a version conflict. Conflicts are
// rare (two writers on the same session) so a small bound is enough.
const maxAppendRetries = 3

// SessionAppender is the slice of the session store the worker writes through.
type SessionAppender interface {
	AppendMessage(ctx context.Context, sessionID uuid.UUID, msg chat.Message) error
}

// Worker drains the persistence queue and applies appends to the session
// store. Append order within a session is whatever order tasks are delivered;
// the queue preserves publish order for a single publisher.
type Worker struct {
	Sessions  SessionAppender
	Reciever  Reciever
	WaitGroup *sync.WaitGroup
}

func (w *Worker) Start(ctx context.Context) {
	w.WaitGroup.Add(1)
	go func() {
		defer w.WaitGroup.Done()
		for {
			select {
			case task, ok := <-w.Reciever.Tasks():
				if !ok {
					slog.Info("persistence task channel closed, worker exiting")
					return
				}
				w.processTask(ctx, task)
			case <-ctx.Done():
				slog.Info("persistence worker stopping", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (w *Worker) processTask(ctx context.Context, task Task) {
	if task.Type() != PersistenceQueue {
		slog.Warn("received task from unknown queue, discarding", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	var payload AppendMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		slog.Error("error unmarshalling append task, discarding", "error", err)
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting task", "error", err)
		}
		return
	}

	if err := w.appendWithRetry(ctx, payload); err != nil {
		slog.Error("error persisting message", "session_id", payload.SessionId, "message_id", payload.Message.ID, "error", err)
		if err := task.Nack(); err != nil {
			slog.Error("error nacking task", "error", err)
		}
		return
	}

	if err := task.Ack(); err != nil {
		slog.Error("error acking task", "error", err)
	}
}

// appendWithRetry re-reads the session row and retries the compare-and-swap
// append when another writer got there first.
func (w *Worker) appendWithRetry(ctx context.Context, payload AppendMessagePayload) error {
	var err error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		err = w.Sessions.AppendMessage(ctx, payload.SessionId, payload.Message)
		if !errors.Is(err, chat.ErrVersionConflict) {
			return err
		}
		slog.Warn("append hit version conflict, retrying", "session_id", payload.SessionId, "attempt", attempt+1)
	}
	return err
}
