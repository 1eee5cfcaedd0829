// Package research turns a blog's keywords into a ranked list of topic
// candidates drawn from a trends feed and from competitor content.
package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/quill/internal/feeds"
	"github.com/hoanghai1803/quill/internal/models"
)

var (
	// ErrNoKeywords is returned when a blog has no usable topic keywords.
	ErrNoKeywords = errors.New("blog has no topic keywords")

	// ErrUnreachable wraps failures to read a research source.
	ErrUnreachable = errors.New("research source unreachable")
)

const defaultMaxCandidates = 10

// FeedReader is the subset of feeds.Fetcher research depends on.
type FeedReader interface {
	FetchAll(ctx context.Context, sources []feeds.Source, opts feeds.FetchOptions) (*feeds.FetchResult, error)
	ExtractArticle(ctx context.Context, articleURL string) (string, error)
}

// TrendSource returns trending subjects related to a set of keywords.
type TrendSource interface {
	Trends(ctx context.Context, keywords []string) ([]Trend, error)
}

// GapAnalyzer finds keywords competitors cover that the blog does not.
type GapAnalyzer interface {
	KeywordGaps(ctx context.Context, blog *models.Blog) ([]models.TopicCandidate, error)
}

// Stage is the research stage of a run.
type Stage struct {
	trends        TrendSource
	gaps          GapAnalyzer
	maxCandidates int
}

// NewStage creates a research stage. gaps may be nil to disable competitor
// analysis. maxCandidates <= 0 uses a default of 10.
func NewStage(trends TrendSource, gaps GapAnalyzer, maxCandidates int) *Stage {
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return &Stage{trends: trends, gaps: gaps, maxCandidates: maxCandidates}
}

// ResearchTopics gathers trend and competitor candidates concurrently and
// returns them ranked by score. A failure of either source fails the whole
// stage; no partial list is returned.
func (s *Stage) ResearchTopics(ctx context.Context, blog *models.Blog) ([]models.TopicCandidate, error) {
	keywords := blog.NormalizedKeywords()
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	var trendCandidates, gapCandidates []models.TopicCandidate

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		trends, err := s.trends.Trends(gctx, keywords)
		if err != nil {
			return fmt.Errorf("reading trends: %w", err)
		}
		for _, t := range trends {
			trendCandidates = append(trendCandidates, t.Candidate())
		}
		return nil
	})
	if s.gaps != nil && len(blog.Competitors) > 0 {
		g.Go(func() error {
			gaps, err := s.gaps.KeywordGaps(gctx, blog)
			if err != nil {
				return fmt.Errorf("analyzing competitors: %w", err)
			}
			gapCandidates = gaps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Trends first so equal scores keep provider order.
	candidates := append(trendCandidates, gapCandidates...)
	ranked := RankCandidates(candidates, s.maxCandidates)

	slog.Info("research complete",
		"blog_id", blog.ID,
		"trends", len(trendCandidates),
		"gaps", len(gapCandidates),
		"candidates", len(ranked),
	)
	return ranked, nil
}

// RankCandidates sorts candidates by score descending, keeping the input
// order for equal scores, and truncates to limit when limit > 0. The input
// slice is not modified.
func RankCandidates(candidates []models.TopicCandidate, limit int) []models.TopicCandidate {
	ranked := make([]models.TopicCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
