// Package index builds and queries the per-collection similarity index.
//
// An index is rebuilt wholesale from the collection's current raw documents;
// there is no incremental update. Queries must use the same embedder
// identity (model and dimension) the index was built with.
package index

import (
	"context"
	"errors"
	"time"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/parser"
)

// Sentinel errors for indexing and retrieval.
var (
	ErrIndexNotFound      = errors.New("index not found")
	ErrNoDocumentsFound   = errors.New("no documents found")
	ErrDocumentUnreadable = errors.New("document unreadable")
	ErrEmbedderMismatch   = errors.New("embedder does not match index")
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// DocumentSource lists a collection's raw documents and extracts their pages.
type DocumentSource interface {
	List(ctx context.Context, key models.CollectionKey) ([]string, error)
	Pages(ctx context.Context, key models.CollectionKey, name string) ([]parser.Page, error)
}

// Manifest describes one built index.
type Manifest struct {
	BuildID    string    `json:"build_id"`
	EmbedModel string    `json:"embed_model"`
	Dimension  int       `json:"dimension"`
	ChunkCount int       `json:"chunk_count"`
	BuiltAt    time.Time `json:"built_at"`
}

// Chunk is one indexed span of text with its vector.
type Chunk struct {
	Ordinal   int       `json:"ordinal"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	Embedding []float32 `json:"embedding"`
}

// Store persists indexes keyed by collection.
type Store interface {
	// Replace swaps the whole index for key in one step. Readers see either
	// the old index or the new one.
	Replace(ctx context.Context, key models.CollectionKey, m Manifest, chunks []Chunk) error

	// Manifest returns ErrIndexNotFound when key has never been indexed.
	Manifest(ctx context.Context, key models.CollectionKey) (Manifest, error)

	// Search returns up to k chunks ordered by descending cosine similarity
	// to vec, ties broken by ascending ordinal.
	Search(ctx context.Context, key models.CollectionKey, vec []float32, k int) ([]models.RetrievedDocument, error)
}
