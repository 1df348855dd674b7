package service

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/docchat/internal/checkpoint"
	"github.com/raphaelgruber/docchat/internal/models"
)

// Threads reads and deletes committed conversations.
type Threads struct {
	store  checkpoint.Store
	locker checkpoint.Locker
	logger *slog.Logger
}

// NewThreads creates a Threads over store and locker.
func NewThreads(store checkpoint.Store, locker checkpoint.Locker, logger *slog.Logger) *Threads {
	if logger == nil {
		logger = slog.Default()
	}
	return &Threads{store: store, locker: locker, logger: logger}
}

// History returns the committed messages of a thread, oldest first.
func (t *Threads) History(ctx context.Context, userID, collectionID string, variant models.ThreadVariant) ([]models.Message, error) {
	key, err := models.NewCollectionKey(userID, collectionID)
	if err != nil {
		return nil, err
	}
	cp, err := t.store.Load(ctx, models.ThreadID(key, variant))
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, nil
	}
	return cp.State.Messages, nil
}

// Forget deletes the primary and sub-agent threads of a collection.
func (t *Threads) Forget(ctx context.Context, userID, collectionID string) error {
	key, err := models.NewCollectionKey(userID, collectionID)
	if err != nil {
		return err
	}
	threadID := models.ThreadID(key, models.VariantPrimary)
	release, err := t.locker.Acquire(ctx, threadID)
	if err != nil {
		return err
	}
	defer t.release(ctx, threadID, release)

	for _, v := range []models.ThreadVariant{models.VariantPrimary, models.VariantAsk} {
		if err := t.store.Delete(ctx, models.ThreadID(key, v)); err != nil {
			return err
		}
	}
	t.logger.Info("threads forgotten", "key", key.String())
	return nil
}

func (t *Threads) release(ctx context.Context, threadID string, release checkpoint.ReleaseFunc) {
	if err := release(context.WithoutCancel(ctx)); err != nil {
		t.logger.Warn("failed to release thread lock", "thread_id", threadID, "error", err)
	}
}
