// Package generation drafts a post for a chosen topic with an AI provider
// and optionally illustrates it.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hoanghai1803/quill/internal/ai"
	"github.com/hoanghai1803/quill/internal/models"
)

const (
	defaultMaxTokens = 4096
	metaTitleLength  = 60
	metaDescLength   = 155
	summaryLength    = 240
	maxSectionImages = 5
	imageKind        = "image"
)

var (
	// ErrMalformedResponse is returned when the model's reply cannot be
	// turned into a draft.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrNoTopic is returned when generation is asked for an empty topic.
	ErrNoTopic = errors.New("no topic to write about")

	// ErrNoImageProvider is returned when a blog wants images but no image
	// provider is configured.
	ErrNoImageProvider = errors.New("image generation enabled but no image provider configured")
)

// articleResponse is the JSON document the article prompt asks for.
type articleResponse struct {
	Title           string   `json:"title"`
	BodyMarkdown    string   `json:"body_markdown"`
	Summary         string   `json:"summary"`
	Keywords        []string `json:"keywords"`
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	FocusKeyword    string   `json:"focus_keyword"`
	Sections        []string `json:"sections"`
}

// Stage is the generation stage of a run.
type Stage struct {
	provider  ai.Provider
	images    ai.ImageGenerator
	guard     ai.BudgetGuard
	imageCost float64
	maxTokens int
}

// Option configures a Stage.
type Option func(*Stage)

// WithImages enables image generation. Each image reserves cost against
// guard before the generator is called.
func WithImages(gen ai.ImageGenerator, guard ai.BudgetGuard, costPerImage float64) Option {
	return func(s *Stage) {
		s.images = gen
		if guard != nil {
			s.guard = guard
		}
		s.imageCost = costPerImage
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// NewStage creates a generation stage over provider. Cost controls for
// text live in the provider itself (see ai.CachingProvider).
func NewStage(provider ai.Provider, opts ...Option) *Stage {
	s := &Stage{
		provider:  provider,
		guard:     ai.NoBudget{},
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateContent drafts a post about topic in the blog's voice. Provider
// errors, budget exhaustion and unusable replies all fail the stage; no
// placeholder content is produced.
func (s *Stage) GenerateContent(ctx context.Context, blog *models.Blog, topic models.TopicCandidate) (*models.ContentDraft, error) {
	if strings.TrimSpace(topic.Keyword) == "" && strings.TrimSpace(topic.Title) == "" {
		return nil, ErrNoTopic
	}
	subject := topic.Keyword
	if subject == "" {
		subject = topic.Title
	}

	system, user := ai.ArticlePrompt(ai.ArticleBrief{
		BlogName:    blog.Name,
		Theme:       blog.Theme,
		Description: blog.Description,
		Tone:        blog.Style.Tone,
		Style:       blog.Style.Style,
		Audience:    blog.Style.Audience,
		Language:    blog.Style.Language,
		WordCount:   blog.Style.WordCount,
		Keywords:    blog.NormalizedKeywords(),
		Topic:       subject,
		TopicTitle:  topic.Title,
	})

	out, err := s.provider.Complete(ctx, ai.CompletionRequest{
		System:    system,
		User:      user,
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating article: %w", err)
	}

	draft, err := buildDraft(out.Text, subject)
	if err != nil {
		return nil, err
	}
	draft.Model = out.Model
	draft.Cached = out.Cached

	if blog.Images.Enabled {
		images, err := s.generateImages(ctx, blog.Images, draft)
		if err != nil {
			return nil, err
		}
		draft.Images = images
	}

	slog.Info("content generated",
		"blog_id", blog.ID,
		"topic", subject,
		"title", draft.Title,
		"words", WordCount(draft.Body),
		"images", len(draft.Images),
		"cached", draft.Cached,
	)
	return draft, nil
}

// buildDraft parses the model reply and fills derived fields.
func buildDraft(reply, topic string) (*models.ContentDraft, error) {
	var resp articleResponse
	if err := json.Unmarshal([]byte(ai.ExtractJSON(reply)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	resp.Title = strings.TrimSpace(resp.Title)
	resp.BodyMarkdown = strings.TrimSpace(resp.BodyMarkdown)
	if resp.Title == "" || resp.BodyMarkdown == "" {
		return nil, fmt.Errorf("%w: missing title or body", ErrMalformedResponse)
	}

	return NewDraft(topic, resp.Title, resp.BodyMarkdown, resp.Summary, resp.Keywords, models.SEOMetadata{
		MetaTitle:       resp.MetaTitle,
		MetaDescription: resp.MetaDescription,
		FocusKeyword:    resp.FocusKeyword,
	}, resp.Sections)
}

// NewDraft assembles a draft from its written parts, rendering the body and
// filling summary, sections and SEO fields the writer left empty. It is
// also used when an operator edits a draft by hand.
func NewDraft(topic, title, body, summary string, keywords []string, seo models.SEOMetadata, sections []string) (*models.ContentDraft, error) {
	html, err := RenderMarkdown(body)
	if err != nil {
		return nil, err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		summary = Excerpt(body, summaryLength)
	}
	if len(sections) == 0 {
		sections = Headings(body)
	}
	if seo.MetaTitle == "" {
		seo.MetaTitle = title
	}
	seo.MetaTitle = truncate(seo.MetaTitle, metaTitleLength)
	if seo.MetaDescription == "" {
		seo.MetaDescription = summary
	}
	seo.MetaDescription = truncate(seo.MetaDescription, metaDescLength)
	if seo.FocusKeyword == "" {
		seo.FocusKeyword = topic
	}

	return &models.ContentDraft{
		Topic:          topic,
		Title:          title,
		Body:           body,
		HTML:           html,
		Summary:        summary,
		Keywords:       cleanKeywords(keywords),
		Sections:       sections,
		SEO:            seo,
		ReadingMinutes: ReadingMinutes(body),
	}, nil
}

func cleanKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
	}
	return out
}
