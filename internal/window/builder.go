// Package window splits a page sequence into overlapping extraction windows.
package window

import (
	"fmt"
	"strings"

	"questflow/internal/models"
	"questflow/internal/util"
)

// PageBreak separates page texts inside a window's combined content.
const PageBreak = "\n\n=== PAGE BREAK ===\n\n"

// Build produces one window per page, in page order.
//
// The first window starts at page 1 and takes up to windowSize pages. Every
// later window is centred on its focus page and spans the previous, current
// and next page, clipped to the document. windowSize therefore only widens the
// first window.
func Build(pages []models.Page, windowSize int) ([]models.Window, error) {
	if windowSize < 1 {
		return nil, fmt.Errorf("window size %d: %w", windowSize, util.ErrInvalidConfiguration)
	}
	n := len(pages)
	if n == 0 {
		return nil, fmt.Errorf("no pages: %w", util.ErrInvalidConfiguration)
	}

	out := make([]models.Window, 0, n)
	for i := 0; i < n; i++ {
		start, end := Bounds(i, n, windowSize)
		out = append(out, assemble(pages, i, start, end))
	}
	return out, nil
}

// Bounds returns the inclusive 0-based page indices covered by the window
// focused on index i of an n-page document.
func Bounds(i, n, windowSize int) (start, end int) {
	if i == 0 {
		return 0, min(windowSize, n) - 1
	}
	return i - 1, min(i+1, n-1)
}

func assemble(pages []models.Page, focus, start, end int) models.Window {
	texts := make([]string, 0, end-start+1)
	var images []string
	for _, p := range pages[start : end+1] {
		texts = append(texts, p.Text)
		images = append(images, p.Images...)
	}
	return models.Window{
		WindowID:        focus + 1,
		FocusPage:       focus + 1,
		StartPage:       start + 1,
		EndPage:         end + 1,
		PageRange:       fmt.Sprintf("%d-%d", start+1, end+1),
		PagesIncluded:   end - start + 1,
		CombinedContent: strings.Join(texts, PageBreak),
		Images:          images,
	}
}
