package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/docchat/internal/docstore"
	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/models"
)

// FailedUpload is a file that could not be added to a collection.
type FailedUpload struct {
	Path string
	Err  error
}

// UploadReport lists what an upload stored and what it rejected.
type UploadReport struct {
	Uploaded []string
	Failed   []FailedUpload
}

// IndexService adds raw documents to collections and rebuilds their indexes.
type IndexService struct {
	docs    *docstore.FS
	indexer *index.Indexer
	logger  *slog.Logger
}

// NewIndexService creates an IndexService.
func NewIndexService(docs *docstore.FS, indexer *index.Indexer, logger *slog.Logger) *IndexService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexService{docs: docs, indexer: indexer, logger: logger}
}

// Upload copies the files at paths into the collection. A file that fails
// is reported and does not stop the others. The index is not rebuilt.
func (s *IndexService) Upload(ctx context.Context, userID, collectionID string, paths []string) (*UploadReport, error) {
	key, err := models.NewCollectionKey(userID, collectionID)
	if err != nil {
		return nil, err
	}
	report := &UploadReport{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		name, err := s.upload(ctx, key, path)
		if err != nil {
			s.logger.Warn("upload failed", "key", key.String(), "path", path, "error", err)
			report.Failed = append(report.Failed, FailedUpload{Path: path, Err: err})
			continue
		}
		report.Uploaded = append(report.Uploaded, name)
	}
	return report, nil
}

func (s *IndexService) upload(ctx context.Context, key models.CollectionKey, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	return s.docs.Save(ctx, key, path, f)
}

// Build rebuilds the collection's index from its raw documents.
func (s *IndexService) Build(ctx context.Context, userID, collectionID string) (*index.BuildReport, error) {
	key, err := models.NewCollectionKey(userID, collectionID)
	if err != nil {
		return nil, err
	}
	return s.indexer.Build(ctx, key)
}

// Documents lists the raw documents stored for the collection.
func (s *IndexService) Documents(ctx context.Context, userID, collectionID string) ([]string, error) {
	key, err := models.NewCollectionKey(userID, collectionID)
	if err != nil {
		return nil, err
	}
	return s.docs.List(ctx, key)
}
