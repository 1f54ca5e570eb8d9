package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// AnthropicConfig configures the HTTP-backed Anthropic adapter. The API key
// is resolved from the environment, never stored in YAML.
type AnthropicConfig struct {
	APIKeyEnv string
	Model     string
	MaxTokens int
	BaseURL   string
}

// AnthropicAdapter implements ModelAdapter against the Anthropic Messages
// API over plain HTTP, matching the non-streaming generate_reply(system,
// user) -> string boundary the runtime loop calls through.
type AnthropicAdapter struct {
	httpClient *http.Client
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
}

// NewAnthropicAdapter builds an AnthropicAdapter from cfg, resolving the API
// key from the configured environment variable. An empty key is tolerated
// at construction; GenerateReply reports the missing-key error per call.
func NewAnthropicAdapter(cfg AnthropicConfig) *AnthropicAdapter {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1/messages"
	}
	return &AnthropicAdapter{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     os.Getenv(cfg.APIKeyEnv),
		model:      model,
		maxTokens:  maxTokens,
		baseURL:    baseURL,
	}
}

// OverrideEndpointForTest replaces the API base URL. Test-only.
func (a *AnthropicAdapter) OverrideEndpointForTest(baseURL string) {
	a.baseURL = baseURL
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	System    string              `json:"system,omitempty"`
	Messages  []anthropicMessage  `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateReply sends a single non-streaming completion request and
// concatenates the returned text blocks into one reply string.
func (a *AnthropicAdapter) GenerateReply(ctx context.Context, system, user string) (string, GenerationMeta, error) {
	if a.apiKey == "" {
		return "", GenerationMeta{}, fmt.Errorf("missing Anthropic API key")
	}

	reqBody, err := json.Marshal(anthropicRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", GenerationMeta{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", GenerationMeta{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", GenerationMeta{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", GenerationMeta{}, fmt.Errorf("read response body: %w", err)
	}

	var data anthropicResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return "", GenerationMeta{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if data.Error != nil {
			return "", GenerationMeta{}, fmt.Errorf("anthropic returned %s: %s", data.Error.Type, data.Error.Message)
		}
		return "", GenerationMeta{}, fmt.Errorf("anthropic returned HTTP %d", resp.StatusCode)
	}

	var reply bytes.Buffer
	for _, block := range data.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	meta := GenerationMeta{
		Provider:  "anthropic",
		Model:     data.Model,
		LatencyMs: time.Since(start).Milliseconds(),
		WordCount: len(bytes.Fields(reply.Bytes())),
	}
	return reply.String(), meta, nil
}
