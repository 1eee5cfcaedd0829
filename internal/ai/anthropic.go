package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Compile-time interface check.
var _ Provider = (*AnthropicProvider)(nil)

const anthropicAPIURL = "https://api.anthropic.com"

// AnthropicProvider implements Provider using the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicProvider creates an AnthropicProvider. A zero cfg.Timeout
// means 60 seconds.
func NewAnthropicProvider(cfg ProviderConfig) *AnthropicProvider {
	base := cfg.BaseURL
	if base == "" {
		base = anthropicAPIURL
	}
	return &AnthropicProvider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(base, "/"),
		client:  newHTTPClient(cfg.Timeout),
	}
}

// anthropicRequest is the request body for the Anthropic Messages API.
type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

// anthropicMessage is a single message in the Anthropic request.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicResponse is the response body from the Anthropic Messages API.
type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string { return p.model }

// Complete makes an HTTP request to the Anthropic Messages API and returns
// the text content from the first content block.
func (p *AnthropicProvider) Complete(ctx context.Context, in CompletionRequest) (*Completion, error) {
	maxTokens := in.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		System:    in.System,
		Messages: []anthropicMessage{
			{Role: "user", Content: in.User},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("content-type", "application/json")

	slog.Debug("calling Anthropic API", "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return nil, fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}

	if apiResp.Error != nil {
		return nil, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Message: apiResp.Error.Message}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode}
	}

	if len(apiResp.Content) == 0 {
		return nil, fmt.Errorf("empty response: no content blocks returned")
	}

	model := apiResp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Text:         apiResp.Content[0].Text,
		Model:        model,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}
