package research

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/hoanghai1803/quill/internal/feeds"
	"github.com/hoanghai1803/quill/internal/models"
)

const (
	defaultTrendFeedURL = "https://trends.google.com/trending/rss?geo=US"
	trendFeedMaxItems   = 50

	// Relevance dominates traffic: one matching keyword outweighs any
	// realistic traffic hint.
	relevanceWeight = 10.0
	baselineScore   = 1.0
)

// Trend is one trending subject and how well it matches the blog.
type Trend struct {
	Keyword string
	Title   string
	URL     string
	Traffic int
	Score   float64
}

// Candidate converts the trend into a topic candidate.
func (t Trend) Candidate() models.TopicCandidate {
	return models.TopicCandidate{
		Keyword: t.Keyword,
		Title:   t.Title,
		Score:   t.Score,
		Source:  models.SourceTrend,
		URL:     t.URL,
	}
}

// FeedTrendSource reads trending searches from an RSS feed and keeps the
// items related to the blog's keywords. Every keyword also yields a low
// scored baseline trend so a quiet trends day still produces topics.
type FeedTrendSource struct {
	reader  FeedReader
	feedURL string
}

// NewFeedTrendSource creates a trend source over the given feed URL. An
// empty URL uses the public daily trends feed.
func NewFeedTrendSource(reader FeedReader, feedURL string) *FeedTrendSource {
	if feedURL == "" {
		feedURL = defaultTrendFeedURL
	}
	return &FeedTrendSource{reader: reader, feedURL: feedURL}
}

// Trends returns matching feed items followed by one baseline entry per
// keyword. An unreadable feed is an error.
func (s *FeedTrendSource) Trends(ctx context.Context, keywords []string) ([]Trend, error) {
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	result, err := s.reader.FetchAll(ctx, []feeds.Source{{Name: "trends", URL: s.feedURL}}, feeds.FetchOptions{MaxItems: trendFeedMaxItems})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if len(result.Failed) > 0 {
		return nil, fmt.Errorf("%w: trend feed: %s", ErrUnreachable, result.Failed[0].Error)
	}

	var trends []Trend
	for _, e := range result.Entries {
		if score := scoreTrend(e, keywords); score > 0 {
			trends = append(trends, Trend{
				Keyword: strings.ToLower(strings.TrimSpace(e.Title)),
				Title:   e.Title,
				URL:     e.URL,
				Traffic: e.Traffic,
				Score:   score,
			})
		}
	}
	for i, k := range keywords {
		// Earlier keywords are the blog's primary subjects.
		trends = append(trends, Trend{
			Keyword: k,
			Title:   k,
			Score:   baselineScore / float64(i+1),
		})
	}
	return trends, nil
}

// scoreTrend rates a feed entry against the blog keywords. Zero means the
// entry is unrelated.
func scoreTrend(e feeds.Entry, keywords []string) float64 {
	text := e.Title + " " + e.Description + " " + strings.Join(e.Categories, " ")
	var relevance float64
	for _, k := range keywords {
		relevance += keywordOverlap(text, k)
	}
	if relevance == 0 {
		return 0
	}
	return relevance*relevanceWeight + math.Log10(float64(e.Traffic)+1)
}
