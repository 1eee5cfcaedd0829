package ai

import "time"

// ProviderConfig holds the configuration needed to create an AI provider.
type ProviderConfig struct {
	Provider   string // "anthropic" | "openai" | "azure"
	APIKey     string
	Model      string
	Endpoint   string // azure resource endpoint
	Deployment string // azure deployment name
	APIVersion string // azure api-version query parameter
	BaseURL    string // overrides the public API base URL
	Timeout    time.Duration
}

// CompletionRequest is a single-turn prompt sent to a text provider.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
}

// Completion is the text returned by a provider with its token usage.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
	Cached       bool
}

// Image is one generated image. Exactly one of URL and Data is set,
// depending on the response format the provider returned.
type Image struct {
	URL           string
	Data          []byte
	RevisedPrompt string
}
