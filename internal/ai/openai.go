package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Compile-time interface check.
var _ Provider = (*OpenAIProvider)(nil)

const openaiAPIURL = "https://api.openai.com"

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// The same wire format serves Azure OpenAI deployments, which differ only
// in URL layout and auth header.
type OpenAIProvider struct {
	name     string
	apiKey   string
	model    string
	endpoint string
	azure    bool
	client   *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider for api.openai.com (or
// cfg.BaseURL when set).
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	base := cfg.BaseURL
	if base == "" {
		base = openaiAPIURL
	}
	return &OpenAIProvider{
		name:     "openai",
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: strings.TrimRight(base, "/") + "/v1/chat/completions",
		client:   newHTTPClient(cfg.Timeout),
	}
}

// NewAzureOpenAIProvider creates an OpenAIProvider that talks to an Azure
// OpenAI chat deployment.
func NewAzureOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	return &OpenAIProvider{
		name:     "azure",
		apiKey:   cfg.APIKey,
		model:    cfg.Deployment,
		endpoint: azureURL(cfg.Endpoint, cfg.Deployment, "chat/completions", cfg.APIVersion),
		azure:    true,
		client:   newHTTPClient(cfg.Timeout),
	}
}

func azureURL(endpoint, deployment, op, apiVersion string) string {
	if apiVersion == "" {
		apiVersion = "2024-10-21"
	}
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		strings.TrimRight(endpoint, "/"), url.PathEscape(deployment), op, url.QueryEscape(apiVersion))
}

// openaiRequest is the request body for the OpenAI Chat Completions API.
type openaiRequest struct {
	Model     string          `json:"model,omitempty"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

// openaiMessage is a single message in the OpenAI request.
type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openaiResponse is the response body from the OpenAI Chat Completions API.
type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Model returns the model (or Azure deployment) name.
func (p *OpenAIProvider) Model() string { return p.model }

// Complete makes an HTTP request to the Chat Completions API and returns
// the text content from the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, in CompletionRequest) (*Completion, error) {
	reqBody := openaiRequest{
		Messages: []openaiMessage{
			{Role: "system", Content: in.System},
			{Role: "user", Content: in.User},
		},
		MaxTokens: in.MaxTokens,
	}
	if !p.azure {
		reqBody.Model = p.model
	}

	var apiResp openaiResponse
	if err := p.post(ctx, p.endpoint, reqBody, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Error != nil {
		return nil, &APIError{Provider: p.name, StatusCode: http.StatusOK, Message: apiResp.Error.Message}
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("empty response: no choices returned")
	}

	model := apiResp.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Text:         apiResp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
	}, nil
}

// post sends a JSON body and decodes a 200 response into out. Non-200
// responses become *APIError carrying the provider's message.
func (p *OpenAIProvider) post(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if p.azure {
		req.Header.Set("api-key", p.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("calling OpenAI API", "provider", p.name, "model", p.model)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != nil {
			msg = errResp.Error.Message
		}
		return &APIError{Provider: p.name, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
