package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/docchat/internal/docstore"
	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/service"
	"github.com/raphaelgruber/docchat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndBuild(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	src := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(src, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	broken := write("broken.pdf", "not really a pdf")
	notes := write("notes.txt", "plain text")
	missing := filepath.Join(src, "missing.pdf")

	docs := docstore.NewFS(root, nil)
	embedder := testutil.NewHashEmbedder(32)
	indexer := index.NewIndexer(docs, embedder, index.NewFileStore(root), index.Options{}, nil, nil)
	svc := service.NewIndexService(docs, indexer, nil)

	report, err := svc.Upload(ctx, "alice", "geo", []string{broken, notes, missing})
	require.NoError(t, err)
	assert.Equal(t, []string{"broken.pdf"}, report.Uploaded)
	require.Len(t, report.Failed, 2)
	assert.ErrorIs(t, report.Failed[0].Err, docstore.ErrUnsupportedFormat)
	assert.ErrorIs(t, report.Failed[1].Err, os.ErrNotExist)

	names, err := svc.Documents(ctx, "alice", "geo")
	require.NoError(t, err)
	assert.Equal(t, []string{"broken.pdf"}, names)

	_, err = svc.Build(ctx, "alice", "geo")
	require.ErrorIs(t, err, index.ErrNoDocumentsFound, "only unreadable documents")

	_, err = svc.Build(ctx, "alice", "empty")
	require.ErrorIs(t, err, index.ErrNoDocumentsFound)
}

func TestUploadRejectsInvalidKey(t *testing.T) {
	root := t.TempDir()
	docs := docstore.NewFS(root, nil)
	svc := service.NewIndexService(docs, nil, nil)

	_, err := svc.Upload(context.Background(), "../alice", "geo", nil)
	require.Error(t, err)
}
