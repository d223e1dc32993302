// Package pdftotext reads page text by shelling out to poppler's pdftotext.
package pdftotext

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"invoicesplit/internal/domain"
)

// Runner lets tests stub the external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		slog.Error("exec.failed",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		slog.Debug("exec.ok",
			"cmd", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

// Reader implements port.DocumentReader.
type Reader struct {
	bin    string
	runner Runner
}

// NewReader creates a Reader invoking bin, or "pdftotext" from PATH when empty.
func NewReader(bin string) *Reader {
	return NewReaderWithRunner(bin, execRunner{})
}

func NewReaderWithRunner(bin string, runner Runner) *Reader {
	if bin == "" {
		bin = "pdftotext"
	}
	return &Reader{bin: bin, runner: runner}
}

// ReadPages runs pdftotext and splits its output on form feeds, which it
// emits after every page.
func (r *Reader) ReadPages(ctx context.Context, path string) ([]string, error) {
	out, errb, err := r.runner.Run(ctx, r.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		msg := strings.TrimSpace(string(errb))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: pdftotext: %s", domain.ErrUnreadableDocument, msg)
	}

	text := strings.TrimSuffix(string(out), "\f")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\f"), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...(truncated)"
}
