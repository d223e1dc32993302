// Package openai implements port.TextCompleter for OpenAI-compatible chat
// completion APIs, including OpenRouter.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invoicesplit/internal/config"
	"invoicesplit/internal/domain"
	"invoicesplit/internal/metrics"
	"invoicesplit/internal/parser"
	"invoicesplit/internal/port"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenAIBaseURL     = "https://api.openai.com/v1"

	appTitle = "invoicesplit"
)

// Completer implements port.TextCompleter using the Chat Completions API.
type Completer struct {
	provider string
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    parser.RetryPolicy
}

// Option customizes a Completer.
type Option func(*Completer)

// WithRetryPolicy overrides the retry policy derived from the config.
func WithRetryPolicy(p parser.RetryPolicy) Option {
	return func(c *Completer) { c.retry = p }
}

// NewCompleter creates a completer for cfg.Provider ("openrouter" or "openai").
// cfg.BaseURL overrides the provider's default API root.
func NewCompleter(cfg *config.ParserProviderConfig, opts ...Option) *Completer {
	base := cfg.BaseURL
	if base == "" {
		base = OpenRouterBaseURL
		if cfg.Provider == "openai" {
			base = OpenAIBaseURL
		}
	}
	return newCompleter(cfg, strings.TrimRight(base, "/")+"/chat/completions", opts...)
}

// NewCompleterWithEndpoint creates a completer pointing at a custom endpoint (for testing).
func NewCompleterWithEndpoint(cfg *config.ParserProviderConfig, endpoint string, opts ...Option) *Completer {
	return newCompleter(cfg, endpoint, opts...)
}

// Factory adapts NewCompleter to parser.ProviderFactory.
func Factory(cfg *config.ParserProviderConfig) (port.TextCompleter, error) {
	return NewCompleter(cfg), nil
}

func newCompleter(cfg *config.ParserProviderConfig, endpoint string, opts ...Option) *Completer {
	provider := cfg.Provider
	if provider == "" {
		provider = "openrouter"
	}
	model := cfg.DefaultModel
	if model == "" {
		model = "openai/gpt-4o"
		if provider == "openai" {
			model = "gpt-4o"
		}
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	c := &Completer{
		provider: provider,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    parser.DefaultRetryPolicy(cfg.MaxRetries),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckCredential reports a missing API key.
func (c *Completer) CheckCredential() error {
	if c.apiKey == "" {
		return fmt.Errorf("%s: %w", c.provider, domain.ErrMissingCredential)
	}
	return nil
}

func (c *Completer) Complete(ctx context.Context, input port.CompletionInput) (*port.CompletionOutput, error) {
	if err := c.CheckCredential(); err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": input.Prompt,
			},
		},
	}
	if input.MaxOutputTokens > 0 {
		reqBody["max_tokens"] = input.MaxOutputTokens
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var out *port.CompletionOutput
	err = c.retry.Do(ctx, c.provider, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.call(ctx, bodyBytes)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Completer) call(ctx context.Context, body []byte) (*port.CompletionOutput, error) {
	start := time.Now()
	outcome := "error"
	defer func() { metrics.ObserveCompletion(c.provider, outcome, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.provider == "openrouter" {
		req.Header.Set("X-Title", appTitle)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s API: %w", c.provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if err := parser.ResponseError(c.provider, resp, respBody); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			outcome = "rate_limited"
		}
		return nil, err
	}

	result, err := parseResponse(respBody, c.model)
	if err != nil {
		return nil, err
	}
	outcome = "ok"
	return result, nil
}

// apiResponse models the Chat Completions API response. OpenRouter may
// report upstream failures in an error object with a 200 status.
type apiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string      `json:"message"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func parseResponse(body []byte, model string) (*port.CompletionOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("provider error (code %v): %s", resp.Error.Code, resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API: no choices")
	}

	if resp.Choices[0].FinishReason == "length" {
		return nil, fmt.Errorf("output truncated (finish_reason: length): response exceeded output token limit")
	}

	used := resp.Model
	if used == "" {
		used = model
	}
	return &port.CompletionOutput{
		Text:         resp.Choices[0].Message.Content,
		ModelUsed:    used,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}
