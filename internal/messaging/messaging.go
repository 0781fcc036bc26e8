// Package messaging carries fire-and-forget persistence work off the request
// path. Streaming handlers publish append tasks and return immediately; a
// worker drains the queue and writes to the session store.
package messaging

import (
	"context"
	"time"

	"datachat-backend/internal/chat"

	"github.com/google/uuid"
)

const (
	PersistenceQueue = "persistence_queue"
	RetryDelay       = 5 * time.Second
	MaxConnectRetry  = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type AppendMessagePayload struct {
	SessionId uuid.UUID
	Message   chat.Message
}

type Publisher interface {
	PublishAppendMessage(ctx context.Context, payload AppendMessagePayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
