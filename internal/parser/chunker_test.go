package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPages_EmptyContent(t *testing.T) {
	tests := []struct {
		name  string
		pages []Page
	}{
		{"no pages", nil},
		{"empty page", []Page{{Source: "a.pdf", Number: 1, Text: ""}}},
		{"whitespace only", []Page{{Source: "a.pdf", Number: 1, Text: "   \n\n\t  "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := ChunkPages(tt.pages, DefaultChunkConfig())
			require.NoError(t, err)
			assert.Empty(t, chunks)
		})
	}
}

func TestChunkPages_ShortPage(t *testing.T) {
	pages := []Page{{Source: "france.pdf", Number: 1, Text: "Paris is the capital of France.\n"}}

	chunks, err := ChunkPages(pages, DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Paris is the capital of France.", chunks[0].Content)
	assert.Equal(t, "france.pdf", chunks[0].Source)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Position)
}

func longText(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%03d", i)
	}
	return strings.Join(parts, " ")
}

func TestChunkPages_SizeAndOverlap(t *testing.T) {
	cfg := ChunkConfig{Size: 60, Overlap: 15}
	pages := []Page{{Source: "a.pdf", Number: 1, Text: longText(100)}}

	chunks, err := ChunkPages(pages, cfg)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Content), "chunk %d is blank", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), cfg.Size, "chunk %d too long", i)
		assert.Equal(t, i, c.Position)
	}

	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Content)
		last := prevWords[len(prevWords)-1]
		assert.Contains(t, chunks[i].Content, last, "chunk %d does not overlap its predecessor", i)
	}
}

func TestChunkPages_KeepsPageProvenance(t *testing.T) {
	pages := []Page{
		{Source: "a.pdf", Number: 1, Text: "first page"},
		{Source: "a.pdf", Number: 2, Text: ""},
		{Source: "b.pdf", Number: 3, Text: "third page"},
	}

	chunks, err := ChunkPages(pages, DefaultChunkConfig())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "b.pdf", chunks[1].Source)
	assert.Equal(t, 3, chunks[1].Page)
	assert.Equal(t, 1, chunks[1].Position)
}

func TestChunkConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultChunkConfig().Validate())
	assert.Error(t, ChunkConfig{Size: 0}.Validate())
	assert.Error(t, ChunkConfig{Size: 100, Overlap: 100}.Validate())
	assert.Error(t, ChunkConfig{Size: 100, Overlap: -1}.Validate())

	_, err := ChunkPages([]Page{{Text: "x"}}, ChunkConfig{Size: 10, Overlap: 20})
	assert.Error(t, err)
}

func TestExtractPDFPages_Garbage(t *testing.T) {
	data := []byte("this is not a pdf")
	_, err := ExtractPDFPages(context.Background(), bytes.NewReader(data), int64(len(data)), "broken.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}
