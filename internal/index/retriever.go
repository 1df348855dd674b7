package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
)

// Retriever answers nearest-neighbor queries against a built index.
type Retriever struct {
	embedder Embedder
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder Embedder, store Store, logger *slog.Logger, mc *metrics.Collector) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger, metrics: mc}
}

// Retrieve returns the k chunks of key's index most similar to query.
func (r *Retriever) Retrieve(ctx context.Context, key models.CollectionKey, query string, k int) (docs []models.RetrievedDocument, err error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	defer r.metrics.Track(metrics.OpIndexSearch)(&err)

	manifest, err := r.store.Manifest(ctx, key)
	if err != nil {
		return nil, err
	}
	if manifest.EmbedModel != r.embedder.Model() || manifest.Dimension != r.embedder.Dimension() {
		return nil, fmt.Errorf("%w: index built with %s/%d, querying with %s/%d; rebuild the index",
			ErrEmbedderMismatch, manifest.EmbedModel, manifest.Dimension, r.embedder.Model(), r.embedder.Dimension())
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	docs, err = r.store.Search(ctx, key, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	r.logger.Debug("retrieved chunks", "key", key.String(), "k", k, "found", len(docs))
	return docs, nil
}
