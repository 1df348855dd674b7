package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// IndexStore implements index.Store on the chunk and collection_index tables.
type IndexStore struct {
	c *Client
}

// NewIndexStore returns an index store backed by c.
func NewIndexStore(c *Client) *IndexStore {
	return &IndexStore{c: c}
}

type chunkRow struct {
	UserID       string    `json:"user_id"`
	CollectionID string    `json:"collection_id"`
	BuildID      string    `json:"build_id"`
	Ordinal      int       `json:"ordinal"`
	Content      string    `json:"content"`
	Source       string    `json:"source"`
	Page         int       `json:"page"`
	Embedding    []float32 `json:"embedding"`
}

type manifestRow struct {
	BuildID    string    `json:"build_id"`
	EmbedModel string    `json:"embed_model"`
	Dimension  int       `json:"dimension"`
	ChunkCount int       `json:"chunk_count"`
	BuiltAt    time.Time `json:"built_at"`
}

type scoredRow struct {
	Ordinal int     `json:"ordinal"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    int     `json:"page"`
	Score   float64 `json:"score"`
}

// Replace deletes the collection's chunks and writes the new build in one
// transaction, so readers never see a mix of two builds.
func (s *IndexStore) Replace(ctx context.Context, key models.CollectionKey, m index.Manifest, chunks []index.Chunk) error {
	if err := key.Validate(); err != nil {
		return err
	}
	rows := make([]chunkRow, len(chunks))
	for i, ch := range chunks {
		rows[i] = chunkRow{
			UserID:       key.UserID,
			CollectionID: key.CollectionID,
			BuildID:      m.BuildID,
			Ordinal:      ch.Ordinal,
			Content:      ch.Content,
			Source:       ch.Source,
			Page:         ch.Page,
			Embedding:    ch.Embedding,
		}
	}

	_, err := surrealdb.Query[any](ctx, s.c.db, `
		BEGIN TRANSACTION;
		DELETE chunk WHERE user_id = $user AND collection_id = $collection;
		IF array::len($rows) > 0 { INSERT INTO chunk $rows };
		UPSERT type::record("collection_index", [$user, $collection]) CONTENT {
			user_id: $user,
			collection_id: $collection,
			build_id: $build_id,
			embed_model: $embed_model,
			dimension: $dimension,
			chunk_count: $chunk_count,
			built_at: $built_at
		};
		COMMIT TRANSACTION;
	`, map[string]any{
		"user":        key.UserID,
		"collection":  key.CollectionID,
		"rows":        rows,
		"build_id":    m.BuildID,
		"embed_model": m.EmbedModel,
		"dimension":   m.Dimension,
		"chunk_count": m.ChunkCount,
		"built_at":    m.BuiltAt,
	})
	if err != nil {
		return fmt.Errorf("replace index %s: %w", key, wrapQueryError(err))
	}
	s.c.logger.Info("index replaced", "key", key.String(), "build_id", m.BuildID, "chunks", len(rows))
	return nil
}

// Manifest returns index.ErrIndexNotFound when key was never indexed.
func (s *IndexStore) Manifest(ctx context.Context, key models.CollectionKey) (index.Manifest, error) {
	if err := key.Validate(); err != nil {
		return index.Manifest{}, err
	}
	results, err := surrealdb.Query[[]manifestRow](ctx, s.c.db, `
		SELECT build_id, embed_model, dimension, chunk_count, built_at
		FROM type::record("collection_index", [$user, $collection])
	`, map[string]any{"user": key.UserID, "collection": key.CollectionID})
	if err != nil {
		return index.Manifest{}, fmt.Errorf("get manifest %s: %w", key, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return index.Manifest{}, fmt.Errorf("%w: %s", index.ErrIndexNotFound, key)
	}
	row := (*results)[0].Result[0]
	return index.Manifest{
		BuildID:    row.BuildID,
		EmbedModel: row.EmbedModel,
		Dimension:  row.Dimension,
		ChunkCount: row.ChunkCount,
		BuiltAt:    row.BuiltAt.UTC(),
	}, nil
}

// Search scores every chunk of the collection exactly. Ties are broken by
// ordinal so results match the file-backed store.
func (s *IndexStore) Search(ctx context.Context, key models.CollectionKey, vec []float32, k int) ([]models.RetrievedDocument, error) {
	if _, err := s.Manifest(ctx, key); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []models.RetrievedDocument{}, nil
	}

	results, err := surrealdb.Query[[]scoredRow](ctx, s.c.db, `
		SELECT ordinal, content, source, page,
			vector::similarity::cosine(embedding, $emb) AS score
		FROM chunk
		WHERE user_id = $user AND collection_id = $collection
		ORDER BY score DESC, ordinal ASC
		LIMIT $limit
	`, map[string]any{
		"user":       key.UserID,
		"collection": key.CollectionID,
		"emb":        vec,
		"limit":      k,
	})
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", key, wrapQueryError(err))
	}

	docs := []models.RetrievedDocument{}
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			docs = append(docs, models.RetrievedDocument{
				Content:    r.Content,
				Source:     r.Source,
				Page:       r.Page,
				ChunkIndex: r.Ordinal,
				Score:      r.Score,
			})
		}
	}
	return docs, nil
}
