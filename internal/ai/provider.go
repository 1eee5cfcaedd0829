package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider is the interface that all LLM providers must implement.
type Provider interface {
	// Complete sends a system and user prompt and returns the model's text.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Model returns the model or deployment name requests are sent to.
	Model() string
}

// ImageGenerator produces images from text prompts.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*Image, error)
}

// NewProvider creates the appropriate provider based on config.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "azure":
		if cfg.Endpoint == "" || cfg.Deployment == "" {
			return nil, fmt.Errorf("azure provider requires endpoint and deployment")
		}
		return NewAzureOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// APIError is a non-success response from an AI provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Auth reports whether the provider rejected the credentials.
func (e *APIError) Auth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Quota reports whether the provider rejected the call for rate or billing
// limits.
func (e *APIError) Quota() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusPaymentRequired
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
