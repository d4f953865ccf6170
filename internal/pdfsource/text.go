package pdfsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"questflow/internal/models"
	"questflow/internal/util"
)

// PageSeparator splits plain-text sources into pages, matching the form feed
// that pdftotext emits between pages.
const PageSeparator = "\f"

// TextReader reads pre-extracted text where pages are separated by form feeds.
type TextReader struct{}

func (TextReader) Pages(ctx context.Context, path string) ([]models.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read text: %w", util.ErrSourceRead, err)
	}
	return SplitPages(string(raw))
}

// SplitPages turns form-feed separated text into pages. A trailing form feed
// does not produce an extra empty page.
func SplitPages(text string) ([]models.Page, error) {
	parts := strings.Split(text, PageSeparator)
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 1 && strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("%w: %w", util.ErrSourceRead, util.ErrNoExtractableText)
	}
	pages := make([]models.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, models.Page{Number: i + 1, Text: util.SanitizeText(part)})
	}
	return pages, nil
}

// Auto picks a reader by file extension: .txt files go through TextReader,
// everything else is treated as PDF.
type Auto struct {
	PDF *Reader
}

func (a Auto) Pages(ctx context.Context, path string) ([]models.Page, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return TextReader{}.Pages(ctx, path)
	default:
		r := a.PDF
		if r == nil {
			r = NewReader()
		}
		return r.Pages(ctx, path)
	}
}
