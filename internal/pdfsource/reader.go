package pdfsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"questflow/internal/models"
	"questflow/internal/util"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Reader produces one Page per PDF page: the page's plain text plus the
// names of the image XObjects it references.
type Reader struct {
	// SkipValidation disables the pdfcpu structural page-count check.
	SkipValidation bool
}

func NewReader() *Reader {
	return &Reader{}
}

func (r *Reader) Pages(ctx context.Context, path string) ([]models.Page, error) {
	if !r.SkipValidation {
		if err := validate(path); err != nil {
			return nil, err
		}
	}

	f, doc, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %w", util.ErrSourceRead, err)
	}
	defer f.Close()

	n := doc.NumPage()
	if n < 1 {
		return nil, fmt.Errorf("%w: %w", util.ErrSourceRead, util.ErrNoExtractableText)
	}

	pages := make([]models.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := readPage(doc, i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", util.ErrSourceRead, i, err)
		}
		pages = append(pages, page)
	}
	slog.Info("pdf pages loaded", "path", filepath.Base(path), "pages", len(pages))
	return pages, nil
}

// validate cross-checks the document with pdfcpu. A file pdfcpu cannot open
// at all is rejected; a parse disagreement is only logged because the text
// reader is more lenient with damaged cross-reference tables.
func validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open pdf: %w", util.ErrSourceRead, err)
	}
	defer f.Close()
	count, err := api.PageCount(f, nil)
	if err != nil {
		slog.Warn("pdf validation failed, falling back to lenient reader", "path", filepath.Base(path), "error", err)
		return nil
	}
	if count < 1 {
		return fmt.Errorf("%w: %w", util.ErrSourceRead, util.ErrNoExtractableText)
	}
	return nil
}

func readPage(doc *pdf.Reader, num int) (page models.Page, err error) {
	// The content stream interpreter panics on some malformed pages.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed page content: %v", rec)
		}
	}()

	p := doc.Page(num)
	page.Number = num
	if p.V.IsNull() {
		return page, nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return page, fmt.Errorf("extract text: %w", err)
	}
	page.Text = util.SanitizeText(text)
	page.Images = imageNames(p, num)
	return page, nil
}

func imageNames(p pdf.Page, num int) []string {
	xobjects := p.Resources().Key("XObject")
	if xobjects.IsNull() {
		return nil
	}
	var names []string
	for _, key := range xobjects.Keys() {
		if xobjects.Key(key).Key("Subtype").Name() != "Image" {
			continue
		}
		names = append(names, fmt.Sprintf("page%d-%s", num, key))
	}
	return names
}
