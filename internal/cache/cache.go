// Package cache holds the per-session active-file reference. The session row
// is the source of truth; the cache only saves a database read on the hot
// question path, so every operation is best-effort.
package cache

import (
	"context"
	"sync"

	"datachat-backend/internal/chat"

	"github.com/google/uuid"
)

type FileCache interface {
	SetActiveFile(ctx context.Context, sessionID uuid.UUID, ref chat.FileRef) error

	// GetActiveFile returns (ref, true) on a hit. A miss is not an error.
	GetActiveFile(ctx context.Context, sessionID uuid.UUID) (chat.FileRef, bool, error)

	ClearActiveFile(ctx context.Context, sessionID uuid.UUID) error
}

// MemoryFileCache is the single-replica default.
type MemoryFileCache struct {
	mu    sync.RWMutex
	files map[uuid.UUID]chat.FileRef
}

var _ FileCache = (*MemoryFileCache)(nil)

func NewMemoryFileCache() *MemoryFileCache {
	return &MemoryFileCache{files: make(map[uuid.UUID]chat.FileRef)}
}

func (c *MemoryFileCache) SetActiveFile(ctx context.Context, sessionID uuid.UUID, ref chat.FileRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[sessionID] = ref
	return nil
}

func (c *MemoryFileCache) GetActiveFile(ctx context.Context, sessionID uuid.UUID) (chat.FileRef, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ref, ok := c.files[sessionID]
	return ref, ok, nil
}

func (c *MemoryFileCache) ClearActiveFile(ctx context.Context, sessionID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, sessionID)
	return nil
}
