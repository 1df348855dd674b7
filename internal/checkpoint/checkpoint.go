// Package checkpoint persists conversation threads between turns and keeps
// at most one turn running per thread.
package checkpoint

import (
	"context"
	"errors"

	"github.com/raphaelgruber/docchat/internal/models"
)

var (
	// ErrVersionConflict means the stored checkpoint changed since it was loaded.
	ErrVersionConflict = errors.New("checkpoint version conflict")

	// ErrThreadBusy means another turn holds the thread.
	ErrThreadBusy = errors.New("thread is busy")
)

// Store loads and commits thread checkpoints.
type Store interface {
	// Load returns nil and no error when the thread has no checkpoint.
	Load(ctx context.Context, threadID string) (*models.ThreadCheckpoint, error)

	// Commit stores cp if the stored version still equals cp.Version, then
	// sets cp.Version to the new version. A cp.Version of zero creates the
	// thread. Otherwise it returns ErrVersionConflict and stores nothing.
	Commit(ctx context.Context, cp *models.ThreadCheckpoint) error

	// Delete removes the thread's checkpoint. Deleting a missing thread is not an error.
	Delete(ctx context.Context, threadID string) error
}

// ReleaseFunc gives a thread lock back.
type ReleaseFunc func(ctx context.Context) error

// Locker grants exclusive access to a thread.
type Locker interface {
	// Acquire returns ErrThreadBusy without waiting if the thread is held.
	Acquire(ctx context.Context, threadID string) (ReleaseFunc, error)
}
