package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/raphaelgruber/docchat/internal/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS thread_checkpoints (
	thread_id  TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	collection TEXT NOT NULL,
	variant    TEXT NOT NULL,
	step       TEXT NOT NULL,
	state      JSONB NOT NULL,
	version    BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps checkpoints in a thread_checkpoints table, created on first use.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresStore connects to dsn. The pool is closed by Close.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaOnce.Do(func() {
		if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
			s.schemaErr = fmt.Errorf("create checkpoint table: %w", err)
			return
		}
		s.logger.Info("checkpoint table ready")
	})
	return s.schemaErr
}

func (s *PostgresStore) Load(ctx context.Context, threadID string) (*models.ThreadCheckpoint, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	cp := models.ThreadCheckpoint{ThreadID: threadID}
	var (
		state   []byte
		variant string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, collection, variant, step, state, version, updated_at
		FROM thread_checkpoints WHERE thread_id = $1`, threadID,
	).Scan(&cp.Key.UserID, &cp.Key.CollectionID, &variant, &cp.Step, &state, &cp.Version, &cp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}
	cp.Variant = models.ThreadVariant(variant)
	if err := json.Unmarshal(state, &cp.State); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return &cp, nil
}

func (s *PostgresStore) Commit(ctx context.Context, cp *models.ThreadCheckpoint) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", cp.ThreadID, err)
	}

	var row pgx.Row
	if cp.Version == 0 {
		row = s.pool.QueryRow(ctx, `
			INSERT INTO thread_checkpoints (thread_id, user_id, collection, variant, step, state, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 1, now())
			ON CONFLICT (thread_id) DO NOTHING
			RETURNING version, updated_at`,
			cp.ThreadID, cp.Key.UserID, cp.Key.CollectionID, string(cp.Variant), cp.Step, state)
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE thread_checkpoints
			SET step = $2, state = $3, version = version + 1, updated_at = now()
			WHERE thread_id = $1 AND version = $4
			RETURNING version, updated_at`,
			cp.ThreadID, cp.Step, state, cp.Version)
	}

	var (
		version int64
		updated time.Time
	)
	err = row.Scan(&version, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s changed since version %d", ErrVersionConflict, cp.ThreadID, cp.Version)
	}
	if err != nil {
		return fmt.Errorf("commit checkpoint %s: %w", cp.ThreadID, err)
	}
	cp.Version, cp.UpdatedAt = version, updated.UTC()
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM thread_checkpoints WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", threadID, err)
	}
	return nil
}
