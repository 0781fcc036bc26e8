package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Chart and table payloads are nested JSON structures that used to be
// flattened into plain strings to satisfy the previous document store. They
// are now wrapped in a schema-versioned envelope so the encoding can evolve
// without guessing at read time.
const payloadSchemaVersion = 1

type payloadEnvelope struct {
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

func encodePayload(data json.RawMessage) (*payloadEnvelope, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return &payloadEnvelope{Version: payloadSchemaVersion, Data: data}, nil
}

func decodePayload(env *payloadEnvelope) (json.RawMessage, error) {
	if env == nil {
		return nil, nil
	}
	if env.Version != payloadSchemaVersion {
		return nil, fmt.Errorf("unsupported payload schema version %d", env.Version)
	}
	return env.Data, nil
}

type storedMessage struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Chart     *payloadEnvelope `json:"chart,omitempty"`
	Table     *payloadEnvelope `json:"table,omitempty"`
	Code      *CodeBlock       `json:"code,omitempty"`
	FollowUps []string         `json:"follow_up_questions,omitempty"`
}

func encodeMessages(messages []Message) (datatypes.JSON, error) {
	stored := make([]storedMessage, 0, len(messages))
	for _, msg := range messages {
		chart, err := encodePayload(msg.Chart)
		if err != nil {
			return nil, fmt.Errorf("encoding chart payload for message %s: %w", msg.ID, err)
		}
		table, err := encodePayload(msg.Table)
		if err != nil {
			return nil, fmt.Errorf("encoding table payload for message %s: %w", msg.ID, err)
		}
		stored = append(stored, storedMessage{
			ID:        msg.ID.String(),
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.UTC(),
			Chart:     chart,
			Table:     table,
			Code:      msg.Code,
			FollowUps: msg.FollowUpQuestions,
		})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshalling message list: %w", err)
	}
	return datatypes.JSON(data), nil
}

func parseMessageID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid message id %q: %w", s, err)
	}
	return id, nil
}

func decodeMessages(data datatypes.JSON) ([]Message, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var stored []storedMessage
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("unmarshalling message list: %w", err)
	}

	messages := make([]Message, 0, len(stored))
	for _, sm := range stored {
		id, err := parseMessageID(sm.ID)
		if err != nil {
			return nil, err
		}
		chart, err := decodePayload(sm.Chart)
		if err != nil {
			return nil, fmt.Errorf("decoding chart payload for message %s: %w", sm.ID, err)
		}
		table, err := decodePayload(sm.Table)
		if err != nil {
			return nil, fmt.Errorf("decoding table payload for message %s: %w", sm.ID, err)
		}
		messages = append(messages, Message{
			ID:                id,
			Role:              sm.Role,
			Content:           sm.Content,
			Timestamp:         sm.Timestamp,
			Chart:             chart,
			Table:             table,
			Code:              sm.Code,
			FollowUpQuestions: sm.FollowUps,
		})
	}
	return messages, nil
}
