// Package document turns an invoice file into the plain text handed to the
// structured extractor.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"invoicesplit/internal/config"
	"invoicesplit/internal/document/pdf"
	"invoicesplit/internal/document/pdftotext"
	"invoicesplit/internal/domain"
	"invoicesplit/internal/port"
)

// sniffLen is the number of bytes http.DetectContentType considers.
const sniffLen = 512

// Extractor concatenates the page texts of a document.
type Extractor struct {
	reader port.DocumentReader
	cfg    config.ExtractorConfig
}

// NewExtractor creates an Extractor reading pages through reader.
func NewExtractor(reader port.DocumentReader, cfg config.ExtractorConfig) *Extractor {
	return &Extractor{reader: reader, cfg: cfg}
}

// NewReader returns the page reader selected by cfg.Reader.
func NewReader(cfg config.ExtractorConfig) (port.DocumentReader, error) {
	switch domain.ReaderKind(strings.ToLower(cfg.Reader)) {
	case "", domain.ReaderNative:
		return pdf.NewReader(), nil
	case domain.ReaderPdftotext:
		return pdftotext.NewReader(cfg.PdftotextPath), nil
	default:
		return nil, fmt.Errorf("unknown document reader: %s", cfg.Reader)
	}
}

// Extract returns the text of every page of the document at path, in page
// order. Each page is optionally prefixed with a "--- PAGE N ---" marker and
// followed by a blank line. Any failure to read the document is reported as
// domain.ErrUnreadableDocument.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	start := time.Now()
	if err := sniff(path); err != nil {
		slog.Warn("extract.rejected", "path", path, "error", err)
		return "", err
	}

	pages, err := e.reader.ReadPages(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrUnreadableDocument) || ctx.Err() != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		slog.Warn("extract.page_cap", "path", path, "pages", len(pages), "max_pages", e.cfg.MaxPages)
		pages = pages[:e.cfg.MaxPages]
	}

	text := Join(pages, e.cfg.PageMarkers)
	slog.Info("extract.ok",
		"path", path,
		"pages", len(pages),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Join renders page texts as a single blob.
func Join(pages []string, markers bool) string {
	var b strings.Builder
	for i, page := range pages {
		if markers {
			fmt.Fprintf(&b, "--- PAGE %d ---\n", i+1)
		}
		b.WriteString(page)
		b.WriteString("\n\n")
	}
	return b.String()
}

// sniff checks that path is a readable file whose content looks like a PDF.
func sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", domain.ErrUnreadableDocument, path)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", domain.ErrUnreadableDocument, err)
	}
	contentType := http.DetectContentType(head[:n])
	if _, ok := domain.AllowedContentTypes[contentType]; !ok {
		return fmt.Errorf("%w: content type %q", domain.ErrUnreadableDocument, contentType)
	}
	return nil
}
