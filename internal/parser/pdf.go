package parser

import (
	"context"
	"fmt"
	"io"

	"github.com/tmc/langchaingo/documentloaders"
)

// ExtractPDFPages returns the plain text of every page of the PDF in r.
// Pages keep their 1-based number even when their text is empty.
func ExtractPDFPages(ctx context.Context, r io.ReaderAt, size int64, source string) (pages []Page, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("parse %s: %v", source, rec)
		}
	}()

	docs, err := documentloaders.NewPDF(r, size).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	pages = make([]Page, 0, len(docs))
	for i, d := range docs {
		num := i + 1
		if n, ok := d.Metadata["page"].(int); ok {
			num = n
		}
		pages = append(pages, Page{Source: source, Number: num, Text: d.PageContent})
	}
	return pages, nil
}
