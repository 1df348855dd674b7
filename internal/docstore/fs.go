// Package docstore keeps raw collection documents on the local filesystem,
// under <root>/<user>/<collection>/docs.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/parser"
)

// ErrUnsupportedFormat is returned when saving a file that is not a PDF.
var ErrUnsupportedFormat = errors.New("unsupported document format")

const pdfExt = ".pdf"

// FS stores and reads raw documents.
type FS struct {
	root   string
	logger *slog.Logger
}

// NewFS creates a document store rooted at root.
func NewFS(root string, logger *slog.Logger) *FS {
	if logger == nil {
		logger = slog.Default()
	}
	return &FS{root: root, logger: logger}
}

// CollectionDir returns the directory holding everything for key.
func (f *FS) CollectionDir(key models.CollectionKey) string {
	return filepath.Join(f.root, key.UserID, key.CollectionID)
}

// DocsDir returns the directory holding raw documents for key.
func (f *FS) DocsDir(key models.CollectionKey) string {
	return filepath.Join(f.CollectionDir(key), "docs")
}

// List returns the names of the eligible documents for key, sorted. A
// collection that was never uploaded to has no documents.
func (f *FS) List(ctx context.Context, key models.CollectionKey) ([]string, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.DocsDir(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), pdfExt) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Pages extracts the text of each page of the named document.
func (f *FS) Pages(ctx context.Context, key models.CollectionKey, name string) ([]parser.Page, error) {
	path, err := f.documentPath(key, name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return parser.ExtractPDFPages(ctx, file, info.Size(), name)
}

// Save writes a document into the collection, replacing any file of the
// same name. Only the base name of name is used.
func (f *FS) Save(ctx context.Context, key models.CollectionKey, name string, r io.Reader) (string, error) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), pdfExt) {
		return base, fmt.Errorf("%w: %s", ErrUnsupportedFormat, base)
	}
	path, err := f.documentPath(key, base)
	if err != nil {
		return base, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return base, fmt.Errorf("create docs dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return base, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return base, fmt.Errorf("write %s: %w", base, err)
	}
	if err := tmp.Close(); err != nil {
		return base, fmt.Errorf("close %s: %w", base, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return base, fmt.Errorf("store %s: %w", base, err)
	}

	f.logger.Info("document saved", "key", key.String(), "name", base)
	return base, nil
}

func (f *FS) documentPath(key models.CollectionKey, name string) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return filepath.Join(f.DocsDir(key), name), nil
}
