package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"counsel/internal/logging"
	"counsel/internal/types"
)

// =============================================================================
// ANTHROPIC CLIENT
// =============================================================================

const anthropicDefaultBaseURL = "https://api.anthropic.com/v1"

// AnthropicClient talks to the Anthropic Messages REST API.
type AnthropicClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewAnthropicClient creates an Anthropic client from cfg, filling in
// endpoint and model defaults.
func NewAnthropicClient(cfg Config) *AnthropicClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "claude-sonnet-4-5-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &AnthropicClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one request and returns the trimmed completion text.
// It makes exactly one attempt; any failure comes back as a *Error.
func (c *AnthropicClient) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    req.Instructions,
		Messages: []anthropicMessage{
			{Role: "user", Content: userContent(req)},
		},
		Temperature: c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", malformedError("anthropic", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", networkError("anthropic", fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", networkError("anthropic", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError("anthropic", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError("anthropic", resp.StatusCode, body)
	}

	var anthropicResp anthropicResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", malformedError("anthropic", fmt.Errorf("parse response: %w", err))
	}
	if anthropicResp.Error != nil {
		return "", malformedError("anthropic", fmt.Errorf("API error: %s", anthropicResp.Error.Message))
	}
	if len(anthropicResp.Content) == 0 {
		return "", malformedError("anthropic", fmt.Errorf("no completion returned"))
	}

	var result strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}

	response := strings.TrimSpace(result.String())
	logging.GenerationDebug("[anthropic] completed in %v response_len=%d", time.Since(start), len(response))
	return response, nil
}

// Name returns the provider and model for logging and notices.
func (c *AnthropicClient) Name() string {
	return fmt.Sprintf("anthropic:%s", c.model)
}
