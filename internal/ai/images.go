package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Compile-time interface check.
var _ ImageGenerator = (*OpenAIImageGenerator)(nil)

// OpenAIImageGenerator implements ImageGenerator with the OpenAI (or Azure
// OpenAI) Images API.
type OpenAIImageGenerator struct {
	api      *OpenAIProvider
	endpoint string
	size     string
}

// ImageConfig holds the settings for an image generator.
type ImageConfig struct {
	Provider   string // "openai" | "azure"
	APIKey     string
	Model      string
	Size       string
	Endpoint   string
	Deployment string
	APIVersion string
	BaseURL    string
}

// NewImageGenerator returns a generator for cfg.Provider, or nil when
// image generation is disabled ("none" or empty).
func NewImageGenerator(cfg ImageConfig) (ImageGenerator, error) {
	pc := ProviderConfig{
		Provider:   cfg.Provider,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Endpoint:   cfg.Endpoint,
		Deployment: cfg.Deployment,
		APIVersion: cfg.APIVersion,
		BaseURL:    cfg.BaseURL,
	}
	size := cfg.Size
	if size == "" {
		size = "1024x1024"
	}

	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		api := NewOpenAIProvider(pc)
		base := cfg.BaseURL
		if base == "" {
			base = openaiAPIURL
		}
		return &OpenAIImageGenerator{
			api:      api,
			endpoint: strings.TrimRight(base, "/") + "/v1/images/generations",
			size:     size,
		}, nil
	case "azure":
		if cfg.Endpoint == "" || cfg.Deployment == "" {
			return nil, fmt.Errorf("azure image generator requires endpoint and deployment")
		}
		return &OpenAIImageGenerator{
			api:      NewAzureOpenAIProvider(pc),
			endpoint: azureURL(cfg.Endpoint, cfg.Deployment, "images/generations", cfg.APIVersion),
			size:     size,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", cfg.Provider)
	}
}

type imageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// GenerateImage requests a single image for prompt.
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	req := imageRequest{Prompt: prompt, N: 1, Size: g.size}
	if !g.api.azure {
		req.Model = g.api.model
	}

	var resp imageResponse
	if err := g.api.post(ctx, g.endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("generating image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("generating image: empty response")
	}

	d := resp.Data[0]
	img := &Image{URL: d.URL, RevisedPrompt: d.RevisedPrompt}
	if d.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decoding image data: %w", err)
		}
		img.Data = data
	}
	if img.URL == "" && len(img.Data) == 0 {
		return nil, fmt.Errorf("generating image: response has neither url nor data")
	}
	return img, nil
}
