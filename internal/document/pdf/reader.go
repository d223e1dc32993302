// Package pdf reads page text with the pure-Go ledongthuc/pdf parser.
package pdf

import (
	"context"
	"fmt"
	"log/slog"

	lpdf "github.com/ledongthuc/pdf"

	"invoicesplit/internal/domain"
)

// Reader implements port.DocumentReader.
type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// ReadPages returns the plain text of each page. The parser panics on some
// malformed inputs; those are reported as domain.ErrUnreadableDocument.
func (r *Reader) ReadPages(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("pdf.panic", "path", path, "panic", rec)
			pages = nil
			err = fmt.Errorf("%w: corrupt pdf: %v", domain.ErrUnreadableDocument, rec)
		}
	}()

	f, doc, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	defer func() { _ = f.Close() }()

	n := doc.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf.page_unreadable", "path", path, "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
