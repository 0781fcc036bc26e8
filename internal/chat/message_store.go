package chat

import (
	"sync"

	"github.com/google/uuid"
)

// MessageStore holds the ordered transcript of the active session. It is
// mutated by the streaming assembler and by session-load operations, and read
// by whatever renders the transcript. Order equals arrival/load order.
type MessageStore struct {
	mu       sync.Mutex
	messages []Message
	index    map[uuid.UUID]int
}

func NewMessageStore() *MessageStore {
	return &MessageStore{index: make(map[uuid.UUID]int)}
}

func (s *MessageStore) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[msg.ID]; exists {
		return
	}
	s.index[msg.ID] = len(s.messages)
	s.messages = append(s.messages, msg)
}

// UpdateByID applies mutate to the message with the given id, in place.
// Returns false if no such message exists.
func (s *MessageStore) UpdateByID(id uuid.UUID, mutate func(*Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[id]
	if !exists {
		return false
	}
	mutate(&s.messages[i])
	return true
}

func (s *MessageStore) Get(id uuid.UUID) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, exists := s.index[id]
	if !exists {
		return Message{}, false
	}
	return s.messages[i], true
}

// ReplaceAll swaps the entire transcript, used when switching sessions.
func (s *MessageStore) ReplaceAll(messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]Message, len(messages))
	copy(s.messages, messages)
	s.index = make(map[uuid.UUID]int, len(messages))
	for i, msg := range s.messages {
		s.index[msg.ID] = i
	}
}

func (s *MessageStore) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
