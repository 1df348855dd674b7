package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/parser"
	"golang.org/x/sync/errgroup"
)

// Options tunes an Indexer.
type Options struct {
	Chunk       parser.ChunkConfig
	BatchSize   int // texts per embedding call
	Concurrency int // embedding calls in flight
}

// DefaultOptions returns the defaults used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Chunk:       parser.DefaultChunkConfig(),
		BatchSize:   32,
		Concurrency: 4,
	}
}

// SkippedDocument is a document left out of a build.
type SkippedDocument struct {
	Name string
	Err  error
}

// BuildReport summarizes one index build.
type BuildReport struct {
	Key       models.CollectionKey
	BuildID   string
	Documents int
	Pages     int
	Chunks    int
	Skipped   []SkippedDocument
	Duration  time.Duration
}

// Indexer runs the indexing pipeline: list, extract, chunk, embed, replace.
type Indexer struct {
	source   DocumentSource
	embedder Embedder
	store    Store
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Collector

	mu    sync.Mutex
	locks map[models.CollectionKey]*sync.Mutex
}

// NewIndexer creates an Indexer. Zero option fields take their defaults.
func NewIndexer(source DocumentSource, embedder Embedder, store Store, opts Options, logger *slog.Logger, mc *metrics.Collector) *Indexer {
	def := DefaultOptions()
	if opts.Chunk.Size == 0 {
		opts.Chunk = def.Chunk
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source:   source,
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger,
		metrics:  mc,
		locks:    make(map[models.CollectionKey]*sync.Mutex),
	}
}

func (ix *Indexer) lock(key models.CollectionKey) func() {
	ix.mu.Lock()
	l, ok := ix.locks[key]
	if !ok {
		l = &sync.Mutex{}
		ix.locks[key] = l
	}
	ix.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Build rebuilds the index for key from its current raw documents.
//
// Unreadable documents are logged and reported in BuildReport.Skipped; they
// do not fail the build. The build fails with ErrNoDocumentsFound when the
// collection has no eligible documents or none of them yields any text.
func (ix *Indexer) Build(ctx context.Context, key models.CollectionKey) (report *BuildReport, err error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	defer ix.metrics.Track(metrics.OpIndexBuild)(&err)

	unlock := ix.lock(key)
	defer unlock()

	start := time.Now()
	report = &BuildReport{Key: key, BuildID: uuid.NewString()}
	log := ix.logger.With("key", key.String(), "build_id", report.BuildID)

	names, err := ix.source.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDocumentsFound, key)
	}
	report.Documents = len(names)

	var pages []parser.Page
	for _, name := range names {
		docPages, err := ix.source.Pages(ctx, key, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			skipErr := fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, name, err)
			log.Warn("skipping unreadable document", "document", name, "error", err)
			report.Skipped = append(report.Skipped, SkippedDocument{Name: name, Err: skipErr})
			continue
		}
		pages = append(pages, docPages...)
	}
	report.Pages = len(pages)

	results, err := parser.ChunkPages(pages, ix.opts.Chunk)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s: no readable text in %d document(s)", ErrNoDocumentsFound, key, len(names))
	}

	chunks, err := ix.embed(ctx, results)
	if err != nil {
		return nil, err
	}

	manifest := Manifest{
		BuildID:    report.BuildID,
		EmbedModel: ix.embedder.Model(),
		Dimension:  ix.embedder.Dimension(),
		ChunkCount: len(chunks),
		BuiltAt:    time.Now().UTC(),
	}
	if err := ix.store.Replace(ctx, key, manifest, chunks); err != nil {
		return nil, fmt.Errorf("replace index: %w", err)
	}

	report.Chunks = len(chunks)
	report.Duration = time.Since(start)
	log.Info("index built", "documents", report.Documents, "skipped", len(report.Skipped),
		"pages", report.Pages, "chunks", report.Chunks, "duration_ms", report.Duration.Milliseconds())
	return report, nil
}

// embed computes vectors in batches, several batches at a time, keeping chunk order.
func (ix *Indexer) embed(ctx context.Context, results []parser.ChunkResult) ([]Chunk, error) {
	chunks := make([]Chunk, len(results))
	for i, r := range results {
		chunks[i] = Chunk{Ordinal: r.Position, Content: r.Content, Source: r.Source, Page: r.Page}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)
	for lo := 0; lo < len(chunks); lo += ix.opts.BatchSize {
		hi := min(lo+ix.opts.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, hi-lo)
			for i := range texts {
				texts[i] = chunks[lo+i].Content
			}
			vectors, err := ix.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", lo, hi-1, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors", lo, hi-1, len(vectors))
			}
			for i, v := range vectors {
				chunks[lo+i].Embedding = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return chunks, nil
}
