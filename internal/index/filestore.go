package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/raphaelgruber/docchat/internal/models"
)

const indexFileName = "index.json"

// FileStore keeps each index as a single JSON file under
// <root>/<user>/<collection>/vectorstore. Search is brute force, which
// suits collections of a few thousand chunks.
type FileStore struct {
	root string
}

// NewFileStore creates a file-backed store rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

type indexFile struct {
	Manifest Manifest `json:"manifest"`
	Chunks   []Chunk  `json:"chunks"`
}

func (s *FileStore) dir(key models.CollectionKey) string {
	return filepath.Join(s.root, key.UserID, key.CollectionID, "vectorstore")
}

// Replace writes the new index to a temp file and renames it over the old one.
func (s *FileStore) Replace(ctx context.Context, key models.CollectionKey, m Manifest, chunks []Chunk) error {
	if err := key.Validate(); err != nil {
		return err
	}
	dir := s.dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".index-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := json.NewEncoder(tmp).Encode(indexFile{Manifest: m, Chunks: chunks}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, indexFileName)); err != nil {
		return fmt.Errorf("install index: %w", err)
	}
	return nil
}

func (s *FileStore) load(key models.CollectionKey) (*indexFile, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir(key), indexFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode index %s: %w", key, err)
	}
	return &f, nil
}

// Manifest returns the manifest of the current index for key.
func (s *FileStore) Manifest(ctx context.Context, key models.CollectionKey) (Manifest, error) {
	f, err := s.load(key)
	if err != nil {
		return Manifest{}, err
	}
	return f.Manifest, nil
}

// Search ranks every chunk of the index against vec.
func (s *FileStore) Search(ctx context.Context, key models.CollectionKey, vec []float32, k int) ([]models.RetrievedDocument, error) {
	f, err := s.load(key)
	if err != nil {
		return nil, err
	}
	return TopK(f.Chunks, vec, k), nil
}
