package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader lists stored objects. Retention pruning walks the snapshot
// prefix with it.
type BlobReader interface {
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// BlobDeleter removes objects from storage. Retention pruning uses it to drop
// snapshots past their keep window.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}
