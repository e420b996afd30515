// Package storage owns the canonical persisted snapshot: settings, queues,
// cards, the review log, recovery backups and the session-resume projection.
// Everything is kept in one versioned document written through a pluggable
// blob backend.
package storage

import (
	"context"
	"errors"
)

// Blob keys used by the store. The primary document, the backup ring and the
// session-resume projection are rotated independently.
const (
	KeyPrimary = "state"
	KeyBackups = "backups"
	KeySession = "session"
)

// ErrBlobNotFound is returned by a Backend when the key has never been
// written. Check with errors.Is.
var ErrBlobNotFound = errors.New("storage: blob not found")

// Backend reads and writes opaque blobs by key. Implementations must make
// Write atomic: a reader never observes a partially written blob.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
