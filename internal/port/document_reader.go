package port

import "context"

// DocumentReader returns the text of each page of a document, in page order.
// Pages with no extractable text are returned as empty strings.
type DocumentReader interface {
	ReadPages(ctx context.Context, path string) ([]string, error)
}
