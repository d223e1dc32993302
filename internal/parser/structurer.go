package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"invoicesplit/internal/config"
	"invoicesplit/internal/domain"
	"invoicesplit/internal/port"
)

// charsPerToken is the rough characters-per-token ratio used for budgeting.
const charsPerToken = 4

// Result is a structured invoice plus what it took to get it.
type Result struct {
	Invoice         *domain.Invoice
	Raw             string
	ModelUsed       string
	Warnings        []string
	EstimatedTokens int
}

// Structurer turns document text into an Invoice with exactly one completion call.
type Structurer struct {
	completer       port.TextCompleter
	maxOutputTokens int
	contextWindow   int
	warnThreshold   int
}

// NewStructurer creates a Structurer using the budgets from cfg.
func NewStructurer(completer port.TextCompleter, cfg config.ParserConfig) *Structurer {
	return &Structurer{
		completer:       completer,
		maxOutputTokens: cfg.MaxOutputTokens,
		contextWindow:   cfg.ContextWindow,
		warnThreshold:   cfg.TokenWarnThreshold,
	}
}

// EstimateTokens approximates the token count of s.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / charsPerToken
}

// Structure builds the prompt, calls the completer once and decodes the reply.
// A missing credential is reported before any call is made. Completion errors
// wrap domain.ErrExtractionFailure; decode errors are *domain.MalformedResponseError.
func (s *Structurer) Structure(ctx context.Context, text string) (*Result, error) {
	if err := s.completer.CheckCredential(); err != nil {
		return nil, err
	}

	res := &Result{EstimatedTokens: EstimateTokens(text)}
	if s.warnThreshold > 0 && res.EstimatedTokens > s.warnThreshold {
		msg := fmt.Sprintf("document text is large (est. %d tokens); extraction may be incomplete", res.EstimatedTokens)
		res.Warnings = append(res.Warnings, msg)
		slog.Warn("structure.large_document", "estimated_tokens", res.EstimatedTokens, "threshold", s.warnThreshold)
	}

	text, truncated := s.fitContext(text)
	if truncated {
		res.Warnings = append(res.Warnings, "document text was truncated to fit the model context window")
		slog.Warn("structure.truncated", "context_window", s.contextWindow, "max_output_tokens", s.maxOutputTokens)
	}

	prompt := BuildInvoicePrompt(text)
	start := time.Now()
	slog.Debug("structure.start", "prompt_chars", len(prompt))

	out, err := s.completer.Complete(ctx, port.CompletionInput{
		Prompt:          prompt,
		MaxOutputTokens: s.maxOutputTokens,
	})
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			return nil, err
		}
		slog.Error("structure.completion_failed", "elapsed_ms", time.Since(start).Milliseconds(), "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailure, err)
	}
	res.Raw = out.Text
	res.ModelUsed = out.ModelUsed

	inv, warnings, err := DecodeInvoice(out.Text)
	if err != nil {
		slog.Warn("structure.malformed",
			"model", out.ModelUsed,
			"looks_like_json", looksLikeJSON(out.Text),
			"raw", Truncate(out.Text, 200),
			"error", err,
		)
		return nil, err
	}
	res.Invoice = inv
	res.Warnings = append(res.Warnings, warnings...)

	slog.Info("structure.ok",
		"model", out.ModelUsed,
		"items", len(inv.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// fitContext truncates text so prompt plus output budget fits the context window.
func (s *Structurer) fitContext(text string) (string, bool) {
	if s.contextWindow <= 0 {
		return text, false
	}
	overhead := EstimateTokens(BuildInvoicePrompt(""))
	available := s.contextWindow - s.maxOutputTokens - overhead
	if available <= 0 {
		return "", text != ""
	}
	if EstimateTokens(text) <= available {
		return text, false
	}
	maxRunes := available * charsPerToken
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text, false
	}
	return string(runes[:maxRunes]), true
}
