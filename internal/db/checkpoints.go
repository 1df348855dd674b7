package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CheckpointStore implements checkpoint.Store on the thread_checkpoint table.
type CheckpointStore struct {
	c *Client
}

// NewCheckpointStore returns a checkpoint store backed by c.
func NewCheckpointStore(c *Client) *CheckpointStore {
	return &CheckpointStore{c: c}
}

type checkpointRow struct {
	UserID       string    `json:"user_id"`
	CollectionID string    `json:"collection_id"`
	Variant      string    `json:"variant"`
	Step         string    `json:"step"`
	State        string    `json:"state"`
	Version      int64     `json:"version"`
	Updated      time.Time `json:"updated"`
}

func (s *CheckpointStore) Load(ctx context.Context, threadID string) (*models.ThreadCheckpoint, error) {
	results, err := surrealdb.Query[[]checkpointRow](ctx, s.c.db, `
		SELECT user_id, collection_id, variant, step, state, version, updated
		FROM type::record("thread_checkpoint", $id)
	`, map[string]any{"id": threadID})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}

	row := (*results)[0].Result[0]
	cp := &models.ThreadCheckpoint{
		ThreadID:  threadID,
		Key:       models.CollectionKey{UserID: row.UserID, CollectionID: row.CollectionID},
		Variant:   models.ThreadVariant(row.Variant),
		Step:      row.Step,
		Version:   row.Version,
		UpdatedAt: row.Updated.UTC(),
	}
	if err := json.Unmarshal([]byte(row.State), &cp.State); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return cp, nil
}

// Commit checks and bumps the version inside one transaction. A mismatch
// aborts the transaction and surfaces as checkpoint.ErrVersionConflict.
func (s *CheckpointStore) Commit(ctx context.Context, cp *models.ThreadCheckpoint) error {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", cp.ThreadID, err)
	}
	updated := time.Now().UTC()

	_, err = surrealdb.Query[any](ctx, s.c.db, `
		BEGIN TRANSACTION;
		LET $stored = (SELECT VALUE version FROM ONLY type::record("thread_checkpoint", $id)) ?? 0;
		IF $stored != $expected {
			THROW "`+versionConflictMarker+`: " + <string>$id;
		};
		UPSERT type::record("thread_checkpoint", $id) CONTENT {
			user_id: $user,
			collection_id: $collection,
			variant: $variant,
			step: $step,
			state: $state,
			version: $expected + 1,
			updated: $updated
		};
		COMMIT TRANSACTION;
	`, map[string]any{
		"id":         cp.ThreadID,
		"expected":   cp.Version,
		"user":       cp.Key.UserID,
		"collection": cp.Key.CollectionID,
		"variant":    string(cp.Variant),
		"step":       cp.Step,
		"state":      string(state),
		"updated":    updated,
	})
	if err != nil {
		return fmt.Errorf("commit checkpoint %s: %w", cp.ThreadID, wrapQueryError(err))
	}

	cp.Version++
	cp.UpdatedAt = updated
	return nil
}

func (s *CheckpointStore) Delete(ctx context.Context, threadID string) error {
	_, err := surrealdb.Query[any](ctx, s.c.db, `
		DELETE type::record("thread_checkpoint", $id)
	`, map[string]any{"id": threadID})
	if err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", threadID, wrapQueryError(err))
	}
	return nil
}
