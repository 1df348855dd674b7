package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = models.CollectionKey{UserID: "u1", CollectionID: "geo"}

type fixture struct {
	source    *testutil.MemorySource
	embedder  *testutil.HashEmbedder
	store     *index.FileStore
	indexer   *index.Indexer
	retriever *index.Retriever
	metrics   *metrics.Collector
}

func newFixture(t *testing.T, opts index.Options) *fixture {
	t.Helper()
	f := &fixture{
		source:   testutil.NewMemorySource(),
		embedder: testutil.NewHashEmbedder(1024),
		store:    index.NewFileStore(t.TempDir()),
		metrics:  metrics.NewCollector(),
	}
	f.indexer = index.NewIndexer(f.source, f.embedder, f.store, opts, nil, f.metrics)
	f.retriever = index.NewRetriever(f.embedder, f.store, nil, f.metrics)
	return f
}

func (f *fixture) addGeography() {
	f.source.Add(testKey, "france.pdf", "The capital of France is Paris.")
	f.source.Add(testKey, "germany.pdf", "Berlin is the capital of Germany.")
}

func TestBuildAndRetrieve(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{})
	f.addGeography()

	report, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 2, report.Chunks)
	assert.Empty(t, report.Skipped)
	assert.NotEmpty(t, report.BuildID)

	docs, err := f.retriever.Retrieve(ctx, testKey, "capital of France", 5)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "france.pdf", docs[0].Source)
	assert.Equal(t, 1, docs[0].Page)
	assert.Contains(t, docs[0].Content, "Paris")
	assert.GreaterOrEqual(t, docs[0].Score, docs[1].Score)

	snap := f.metrics.Snapshot()
	build, ok := snap.Get(metrics.OpIndexBuild)
	require.True(t, ok)
	assert.Equal(t, int64(1), build.Count)
	search, ok := snap.Get(metrics.OpIndexSearch)
	require.True(t, ok)
	assert.Equal(t, int64(1), search.Count)
}

func TestRetrieveLimitsToK(t *testing.T) {
	f := newFixture(t, index.Options{})
	f.addGeography()
	_, err := f.indexer.Build(context.Background(), testKey)
	require.NoError(t, err)

	docs, err := f.retriever.Retrieve(context.Background(), testKey, "capital", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = f.retriever.Retrieve(context.Background(), testKey, "capital", 0)
	assert.Error(t, err)
}

func TestBuildIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{})
	f.addGeography()

	_, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)
	first, err := f.retriever.Retrieve(ctx, testKey, "capital of Germany", 5)
	require.NoError(t, err)

	_, err = f.indexer.Build(ctx, testKey)
	require.NoError(t, err)
	second, err := f.retriever.Retrieve(ctx, testKey, "capital of Germany", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRebuildReplacesIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{})
	f.addGeography()

	first, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)

	f.source.Remove(testKey, "germany.pdf")
	second, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)
	assert.NotEqual(t, first.BuildID, second.BuildID)

	m, err := f.store.Manifest(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, second.BuildID, m.BuildID)
	assert.Equal(t, 1, m.ChunkCount)

	docs, err := f.retriever.Retrieve(ctx, testKey, "Berlin Germany", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "france.pdf", docs[0].Source)
}

func TestRetrieveWithoutIndex(t *testing.T) {
	f := newFixture(t, index.Options{})

	_, err := f.retriever.Retrieve(context.Background(), testKey, "anything", 5)
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
}

func TestIndexesArePartitionedByKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{})
	f.addGeography()
	_, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)

	other := models.CollectionKey{UserID: "u2", CollectionID: "geo"}
	_, err = f.retriever.Retrieve(ctx, other, "capital", 5)
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
}

func TestBuildWithoutDocuments(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testutil.MemorySource)
	}{
		{
			name:  "empty collection",
			setup: func(*testutil.MemorySource) {},
		},
		{
			name: "only unreadable documents",
			setup: func(s *testutil.MemorySource) {
				s.AddUnreadable(testKey, "broken.pdf", errors.New("bad xref table"))
			},
		},
		{
			name: "only blank pages",
			setup: func(s *testutil.MemorySource) {
				s.Add(testKey, "scan.pdf", "   ", "\n\n")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, index.Options{})
			tt.setup(f.source)

			_, err := f.indexer.Build(context.Background(), testKey)
			assert.ErrorIs(t, err, index.ErrNoDocumentsFound)

			_, err = f.store.Manifest(context.Background(), testKey)
			assert.ErrorIs(t, err, index.ErrIndexNotFound)
		})
	}
}

func TestBuildSkipsUnreadableDocuments(t *testing.T) {
	f := newFixture(t, index.Options{})
	f.addGeography()
	f.source.AddUnreadable(testKey, "broken.pdf", errors.New("bad xref table"))

	report, err := f.indexer.Build(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Documents)
	assert.Equal(t, 2, report.Chunks)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "broken.pdf", report.Skipped[0].Name)
	assert.ErrorIs(t, report.Skipped[0].Err, index.ErrDocumentUnreadable)
}

func TestBuildFailureKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{})
	f.addGeography()

	first, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)

	embedErr := errors.New("embedding service down")
	f.embedder.FailWith(embedErr)
	_, err = f.indexer.Build(ctx, testKey)
	assert.ErrorIs(t, err, embedErr)

	m, err := f.store.Manifest(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, first.BuildID, m.BuildID)
}

func TestBuildBatchesKeepOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{BatchSize: 1, Concurrency: 3})
	pages := []string{"alpha one", "beta two", "gamma three", "delta four", "epsilon five"}
	f.source.Add(testKey, "greek.pdf", pages...)

	report, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Chunks)
	assert.Equal(t, 5, f.embedder.Calls())

	for i, p := range pages {
		docs, err := f.retriever.Retrieve(ctx, testKey, p, 1)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, i, docs[0].ChunkIndex)
		assert.Equal(t, i+1, docs[0].Page)
	}
}

func TestRetrieveRejectsDifferentEmbedder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, index.Options{})
	f.addGeography()
	_, err := f.indexer.Build(ctx, testKey)
	require.NoError(t, err)

	tests := []struct {
		name     string
		embedder *testutil.HashEmbedder
	}{
		{"other dimension", testutil.NewHashEmbedder(512)},
		{"other model", &testutil.HashEmbedder{ModelName: "other", Dim: 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := index.NewRetriever(tt.embedder, f.store, nil, nil)
			_, err := r.Retrieve(ctx, testKey, "capital", 5)
			assert.ErrorIs(t, err, index.ErrEmbedderMismatch)
		})
	}
}

func TestBuildRejectsInvalidKey(t *testing.T) {
	f := newFixture(t, index.Options{})
	_, err := f.indexer.Build(context.Background(), models.CollectionKey{UserID: "..", CollectionID: "c"})
	assert.ErrorIs(t, err, models.ErrInvalidKey)
}
