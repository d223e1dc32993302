package claude

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
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	provider   = "claude"
)

// Completer implements port.TextCompleter using the Anthropic Messages API.
type Completer struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    parser.RetryPolicy
}

// NewCompleter creates a Claude-based completer from a provider config.
func NewCompleter(cfg *config.ParserProviderConfig) *Completer {
	endpoint := apiURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/messages"
	}
	return newCompleter(cfg, endpoint)
}

// NewCompleterWithEndpoint creates a completer pointing at a custom API endpoint (for testing).
func NewCompleterWithEndpoint(cfg *config.ParserProviderConfig, endpoint string, retry parser.RetryPolicy) *Completer {
	c := newCompleter(cfg, endpoint)
	c.retry = retry
	return c
}

// Factory adapts NewCompleter to parser.ProviderFactory.
func Factory(cfg *config.ParserProviderConfig) (port.TextCompleter, error) {
	return NewCompleter(cfg), nil
}

func newCompleter(cfg *config.ParserProviderConfig, endpoint string) *Completer {
	model := cfg.DefaultModel
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Completer{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    parser.DefaultRetryPolicy(cfg.MaxRetries),
	}
}

func (c *Completer) CheckCredential() error {
	if c.apiKey == "" {
		return fmt.Errorf("%s: %w", provider, domain.ErrMissingCredential)
	}
	return nil
}

func (c *Completer) Complete(ctx context.Context, input port.CompletionInput) (*port.CompletionOutput, error) {
	if err := c.CheckCredential(); err != nil {
		return nil, err
	}

	maxTokens := input.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	reqBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": input.Prompt,
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	var out *port.CompletionOutput
	err = c.retry.Do(ctx, provider, func(ctx context.Context) error {
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
	defer func() { metrics.ObserveCompletion(provider, outcome, time.Since(start)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if err := parser.ResponseError(provider, resp, respBody); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests {
			outcome = "rate_limited"
		}
		return nil, err
	}

	out, err := parseResponse(respBody, c.model)
	if err != nil {
		return nil, err
	}
	outcome = "ok"
	return out, nil
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte, model string) (*port.CompletionOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	if resp.StopReason == "max_tokens" {
		return nil, fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	used := resp.Model
	if used == "" {
		used = model
	}
	return &port.CompletionOutput{
		Text:         text.String(),
		ModelUsed:    used,
		FinishReason: resp.StopReason,
	}, nil
}
