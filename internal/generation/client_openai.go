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
// OPENAI CLIENT
// =============================================================================

const openaiDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIClient talks to the OpenAI chat completions REST API. Any
// OpenAI-compatible endpoint works through the BaseURL override.
type OpenAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewOpenAIClient creates an OpenAI client from cfg, filling in endpoint
// and model defaults.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends one request and returns the trimmed completion text.
// It makes exactly one attempt; any failure comes back as a *Error.
func (c *OpenAIClient) Generate(ctx context.Context, req types.GenerationRequest) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	start := time.Now()

	messages := make([]openaiMessage, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: userContent(req)})

	jsonData, err := json.Marshal(openaiRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", malformedError("openai", fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", networkError("openai", fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", networkError("openai", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError("openai", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError("openai", resp.StatusCode, body)
	}

	var openaiResp openaiResponse
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return "", malformedError("openai", fmt.Errorf("parse response: %w", err))
	}
	if openaiResp.Error != nil {
		return "", malformedError("openai", fmt.Errorf("API error: %s", openaiResp.Error.Message))
	}
	if len(openaiResp.Choices) == 0 {
		return "", malformedError("openai", fmt.Errorf("no completion returned"))
	}

	response := strings.TrimSpace(openaiResp.Choices[0].Message.Content)
	logging.GenerationDebug("[openai] completed in %v response_len=%d", time.Since(start), len(response))
	return response, nil
}

// Name returns the provider and model for logging and notices.
func (c *OpenAIClient) Name() string {
	return fmt.Sprintf("openai:%s", c.model)
}
