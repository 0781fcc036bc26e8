package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"
)

type Object struct {
	Name string
	Size int64
}

// ObjectStore is the durable home for uploaded file bytes. Implementations
// are bound to a single bucket (or local base directory).
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) error

	GetObject(ctx context.Context, key string) (io.ReadCloser, error)

	ListObjects(ctx context.Context, prefix string) ([]Object, error)

	DeleteObjects(ctx context.Context, prefix string) error

	// URL returns the durable location of a stored object, suitable for
	// persisting in file metadata.
	URL(key string) string
}

// UploadKey builds the object key for a user's uploaded file:
// user-files/{userId}/{timestamp}_{filename}.
func UploadKey(userID, filename string, now time.Time) string {
	return path.Join("user-files", userID, fmt.Sprintf("%d_%s", now.UnixMilli(), filename))
}
