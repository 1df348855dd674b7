package testutil

import (
	"context"
	"testing"

	"github.com/raphaelgruber/docchat/internal/checkpoint"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract exercises the behavior every checkpoint.Store must share.
// threadPrefix keeps runs against a shared backend apart.
func RunStoreContract(t *testing.T, store checkpoint.Store, threadPrefix string) {
	t.Helper()
	key := models.CollectionKey{UserID: threadPrefix + "user", CollectionID: "docs"}

	newCheckpoint := func(variant models.ThreadVariant) *models.ThreadCheckpoint {
		return &models.ThreadCheckpoint{
			ThreadID: models.ThreadID(key, variant),
			Key:      key,
			Variant:  variant,
			Step:     "answer",
			State: models.ConversationState{
				Key:      key,
				Question: "What is the capital of France?",
				Answer:   "Paris",
				Docs:     []models.RetrievedDocument{{Content: "Paris is the capital of France.", Source: "geo.pdf", Page: 1}},
				Messages: []models.Message{
					models.HumanMessage("What is the capital of France?"),
					models.AssistantMessage("Paris"),
				},
			},
		}
	}

	t.Run("missing thread loads nil", func(t *testing.T) {
		cp, err := store.Load(context.Background(), threadPrefix+"never:written")
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("commit then load round trips", func(t *testing.T) {
		ctx := context.Background()
		cp := newCheckpoint(models.VariantPrimary)
		require.NoError(t, store.Commit(ctx, cp))
		assert.Equal(t, int64(1), cp.Version)
		assert.False(t, cp.UpdatedAt.IsZero())

		loaded, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Equal(t, key, loaded.Key)
		assert.Equal(t, "answer", loaded.Step)
		assert.Equal(t, cp.State.Messages, loaded.State.Messages)
		assert.Equal(t, cp.State.Docs, loaded.State.Docs)

		require.NoError(t, store.Delete(ctx, cp.ThreadID))
	})

	t.Run("stale commit conflicts", func(t *testing.T) {
		ctx := context.Background()
		cp := newCheckpoint(models.VariantAsk)
		require.NoError(t, store.Commit(ctx, cp))

		first, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)
		second, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)

		first.State.Answer = "first writer"
		require.NoError(t, store.Commit(ctx, first))
		assert.Equal(t, int64(2), first.Version)

		second.State.Answer = "second writer"
		err = store.Commit(ctx, second)
		require.ErrorIs(t, err, checkpoint.ErrVersionConflict)
		assert.Equal(t, int64(1), second.Version)

		stored, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)
		assert.Equal(t, "first writer", stored.State.Answer)

		require.NoError(t, store.Delete(ctx, cp.ThreadID))
	})

	t.Run("create conflicts with existing thread", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, store.Commit(ctx, newCheckpoint(models.VariantPrimary)))
		err := store.Commit(ctx, newCheckpoint(models.VariantPrimary))
		require.ErrorIs(t, err, checkpoint.ErrVersionConflict)
		require.NoError(t, store.Delete(ctx, models.ThreadID(key, models.VariantPrimary)))
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		ctx := context.Background()
		cp := newCheckpoint(models.VariantPrimary)
		require.NoError(t, store.Commit(ctx, cp))
		require.NoError(t, store.Delete(ctx, cp.ThreadID))
		require.NoError(t, store.Delete(ctx, cp.ThreadID))

		loaded, err := store.Load(ctx, cp.ThreadID)
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})
}
