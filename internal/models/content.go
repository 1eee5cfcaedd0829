package models

import (
	"encoding/json"
	"time"
)

// TopicSource identifies where a topic candidate came from.
type TopicSource string

const (
	SourceTrend      TopicSource = "trend"
	SourceCompetitor TopicSource = "competitor_analysis"
)

// Difficulty is a coarse ranking-difficulty bucket for keyword gaps.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// TopicCandidate is a possible subject for the next post.
type TopicCandidate struct {
	Keyword          string      `json:"keyword"`
	Title            string      `json:"title"`
	Score            float64     `json:"score"`
	Source           TopicSource `json:"source"`
	URL              string      `json:"url,omitempty"`
	OpportunityScore float64     `json:"opportunity_score,omitempty"`
	Difficulty       Difficulty  `json:"difficulty,omitempty"`
}

// SEOMetadata is the search metadata attached to a draft.
type SEOMetadata struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	FocusKeyword    string `json:"focus_keyword"`
	Slug            string `json:"slug,omitempty"`
}

// GeneratedImage is an image produced for a draft. Featured marks the
// post's lead image; Section names the heading a section image belongs to.
type GeneratedImage struct {
	Prompt   string `json:"prompt"`
	AltText  string `json:"alt_text"`
	Section  string `json:"section,omitempty"`
	Featured bool   `json:"featured,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// ContentDraft is the output of the generation stage.
type ContentDraft struct {
	Topic          string           `json:"topic"`
	Title          string           `json:"title"`
	Body           string           `json:"body"` // markdown
	HTML           string           `json:"html"`
	Summary        string           `json:"summary"`
	Keywords       []string         `json:"keywords"`
	Sections       []string         `json:"sections,omitempty"`
	Images         []GeneratedImage `json:"images,omitempty"`
	SEO            SEOMetadata      `json:"seo"`
	ReadingMinutes int              `json:"reading_minutes,omitempty"`
	Model          string           `json:"model,omitempty"`
	Cached         bool             `json:"cached,omitempty"`
}

// PublishResult records the WordPress post created for a run.
type PublishResult struct {
	PostID          int64             `json:"post_id"`
	PostURL         string            `json:"post_url"`
	Status          string            `json:"status"`
	Categories      []string          `json:"categories"`
	Tags            []string          `json:"tags"`
	FeaturedMediaID int64             `json:"featured_media_id,omitempty"`
	SectionMedia    map[string]string `json:"section_media,omitempty"` // section heading -> uploaded image URL
	AdsInserted     int               `json:"ads_inserted,omitempty"`
	PublishedAt     time.Time         `json:"published_at"`
}

// PromotionStatus is the aggregate outcome of the promotion stage.
type PromotionStatus string

const (
	PromotionCompleted PromotionStatus = "completed"
	PromotionPartial   PromotionStatus = "partial"
	PromotionError     PromotionStatus = "error"
	PromotionSkipped   PromotionStatus = "skipped"
)

// RunStatus maps the promotion outcome onto the terminal run status.
func (p PromotionStatus) RunStatus() RunStatus {
	switch p {
	case PromotionCompleted:
		return RunCompleted
	case PromotionPartial:
		return RunPartial
	case PromotionError:
		return RunError
	default:
		return RunSkipped
	}
}

// PlatformResult is the outcome of announcing a post on one platform.
type PlatformResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	PostID   string `json:"post_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// PromotionResult is the output of the promotion stage.
type PromotionResult struct {
	Status    PromotionStatus  `json:"status"`
	Platforms []PlatformResult `json:"platforms"`
}

// AggregatePromotion derives the overall status from per-platform results:
// completed when every attempt succeeded, error when every attempt failed,
// partial otherwise. No attempts at all counts as skipped.
func AggregatePromotion(results []PlatformResult) PromotionStatus {
	if len(results) == 0 {
		return PromotionSkipped
	}
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	switch ok {
	case len(results):
		return PromotionCompleted
	case 0:
		return PromotionError
	default:
		return PromotionPartial
	}
}

// ConfigDocument is a named per-blog JSON settings document. Version is the
// SHA-256 of the stored bytes and must accompany every write.
type ConfigDocument struct {
	BlogID    int64           `json:"blog_id"`
	Name      string          `json:"name"`
	Content   json.RawMessage `json:"content"`
	Version   string          `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Well-known configuration document names.
const (
	ConfigSocial     = "social"
	ConfigAdSense    = "adsense"
	ConfigAffiliates = "affiliates"
)
