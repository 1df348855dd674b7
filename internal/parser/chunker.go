// Package parser extracts page text from raw documents and splits it into chunks.
package parser

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Page is the extracted text of one document page.
type Page struct {
	Source string // file name within the collection
	Number int    // 1-based
	Text   string
}

// ChunkResult represents a chunk of page text.
type ChunkResult struct {
	Content  string
	Source   string
	Page     int
	Position int // ordinal across the whole build
}

// ChunkConfig defines chunking parameters, in characters.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    800,
		Overlap: 150,
	}
}

// Validate checks that the splitter can make progress with cfg.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.Size, c.Overlap)
	}
	return nil
}

// ChunkPages splits every page into overlapping chunks, recursively
// preferring paragraph, line and word boundaries. Chunks never span pages
// and blank chunks are dropped, so every result has content.
func ChunkPages(pages []Page, cfg ChunkConfig) ([]ChunkResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.Size),
		textsplitter.WithChunkOverlap(cfg.Overlap),
	)

	var chunks []ChunkResult
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts, err := splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s page %d: %w", p.Source, p.Number, err)
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, ChunkResult{
				Content:  part,
				Source:   p.Source,
				Page:     p.Number,
				Position: len(chunks),
			})
		}
	}
	return chunks, nil
}
