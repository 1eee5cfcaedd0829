package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is how often a blog should receive a new post.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Valid reports whether f is one of the supported publishing frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// Blog is a configured content destination.
type Blog struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Theme       string          `json:"theme"`
	Description string          `json:"description,omitempty"`
	Keywords    []string        `json:"keywords"`
	Frequency   Frequency       `json:"frequency"`
	Style       StyleSettings   `json:"style"`
	WordPress   WordPressTarget `json:"wordpress"`
	Images      ImageSettings   `json:"images"`
	Social      SocialSettings  `json:"social"`
	Competitors []string        `json:"competitors,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// StyleSettings controls the voice of generated posts.
type StyleSettings struct {
	Tone      string `json:"tone"`
	Style     string `json:"style"`
	Audience  string `json:"audience,omitempty"`
	WordCount int    `json:"word_count"`
	Language  string `json:"language,omitempty"`
}

// WordPressTarget holds the WordPress site a blog publishes to. The
// application password is never serialized back to API clients.
type WordPressTarget struct {
	URL         string   `json:"url,omitempty"`
	Username    string   `json:"username,omitempty"`
	AppPassword string   `json:"app_password,omitempty"`
	PostStatus  string   `json:"post_status,omitempty"` // "publish" | "draft"
	Categories  []string `json:"categories,omitempty"`
}

// Connected reports whether all three WordPress credentials are present.
// A partially filled target is treated as not connected.
func (w WordPressTarget) Connected() bool {
	return strings.TrimSpace(w.URL) != "" &&
		strings.TrimSpace(w.Username) != "" &&
		strings.TrimSpace(w.AppPassword) != ""
}

// Redacted returns a copy with the application password masked.
func (w WordPressTarget) Redacted() WordPressTarget {
	if w.AppPassword != "" {
		w.AppPassword = "********"
	}
	return w
}

// ImageSettings controls image generation for drafts.
type ImageSettings struct {
	Enabled       bool   `json:"enabled"`
	Count         int    `json:"count"`
	SectionImages bool   `json:"section_images"`
	Style         string `json:"style,omitempty"`
}

// SocialSettings lists the platforms a published post is announced on.
// Credentials live in the blog's "social" configuration document.
type SocialSettings struct {
	Enabled   bool     `json:"enabled"`
	Platforms []string `json:"platforms,omitempty"`
	Hashtags  []string `json:"hashtags,omitempty"`
}

// ErrInvalidBlog wraps every blog validation failure.
var ErrInvalidBlog = errors.New("invalid blog")

// Validate checks the invariants a blog must satisfy before it is stored.
func (b *Blog) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBlog)
	}
	if len(b.NormalizedKeywords()) == 0 {
		return fmt.Errorf("%w: at least one topic keyword is required", ErrInvalidBlog)
	}
	if !b.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidBlog, b.Frequency)
	}
	if b.Images.Count < 0 || b.Images.Count > MaxImages {
		return fmt.Errorf("%w: image count must be between 0 and %d", ErrInvalidBlog, MaxImages)
	}
	switch b.WordPress.PostStatus {
	case "", "publish", "draft":
	default:
		return fmt.Errorf("%w: wordpress post_status must be \"publish\" or \"draft\"", ErrInvalidBlog)
	}
	return nil
}

// NormalizedKeywords returns the blog's keywords trimmed, lower-cased and
// de-duplicated, preserving first-seen order.
func (b *Blog) NormalizedKeywords() []string {
	seen := make(map[string]bool, len(b.Keywords))
	out := make([]string, 0, len(b.Keywords))
	for _, k := range b.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// MaxImages is the upper bound on generated images per draft.
const MaxImages = 5
