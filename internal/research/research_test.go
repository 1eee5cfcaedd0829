package research

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hoanghai1803/quill/internal/feeds"
	"github.com/hoanghai1803/quill/internal/models"
)

// fakeReader serves canned feed entries and article bodies keyed by URL.
type fakeReader struct {
	entries  map[string][]feeds.Entry
	failures map[string]string
	articles map[string]string
	err      error
}

func (f *fakeReader) FetchAll(_ context.Context, sources []feeds.Source, opts feeds.FetchOptions) (*feeds.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	var result feeds.FetchResult
	for _, src := range sources {
		if msg, ok := f.failures[src.URL]; ok {
			result.Failed = append(result.Failed, feeds.FailedFeed{Source: src.Name, Error: msg})
			continue
		}
		for i, e := range f.entries[src.URL] {
			if opts.MaxItems > 0 && i >= opts.MaxItems {
				break
			}
			e.Source = src.Name
			result.Entries = append(result.Entries, e)
		}
	}
	return &result, nil
}

func (f *fakeReader) ExtractArticle(_ context.Context, articleURL string) (string, error) {
	if text, ok := f.articles[articleURL]; ok {
		return text, nil
	}
	return "", fmt.Errorf("no article at %s", articleURL)
}

type fakeTrends struct {
	trends []Trend
	err    error
}

func (f *fakeTrends) Trends(context.Context, []string) ([]Trend, error) {
	return f.trends, f.err
}

type fakeGaps struct {
	candidates []models.TopicCandidate
	err        error
	calls      int
}

func (f *fakeGaps) KeywordGaps(context.Context, *models.Blog) ([]models.TopicCandidate, error) {
	f.calls++
	return f.candidates, f.err
}

func TestRankCandidates(t *testing.T) {
	input := []models.TopicCandidate{
		{Keyword: "a", Score: 1},
		{Keyword: "b", Score: 5},
		{Keyword: "c", Score: 3},
		{Keyword: "d", Score: 5},
		{Keyword: "e", Score: 3},
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"no limit", 0, []string{"b", "d", "c", "e", "a"}},
		{"truncated", 3, []string{"b", "d", "c"}},
		{"limit above length", 10, []string{"b", "d", "c", "e", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RankCandidates(input, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d", len(got), len(tt.want))
			}
			for i, k := range tt.want {
				if got[i].Keyword != k {
					t.Errorf("got[%d] = %q, want %q", i, got[i].Keyword, k)
				}
			}
		})
	}

	if input[0].Keyword != "a" || input[1].Keyword != "b" {
		t.Error("RankCandidates modified its input")
	}
}

func TestStage_ResearchTopics(t *testing.T) {
	blog := &models.Blog{
		ID:          7,
		Keywords:    []string{"espresso"},
		Competitors: []string{"https://rival.example/feed"},
	}

	trends := &fakeTrends{trends: []Trend{
		{Keyword: "espresso machines", Score: 12},
		{Keyword: "espresso", Score: 1},
	}}
	gaps := &fakeGaps{candidates: []models.TopicCandidate{
		{Keyword: "burr grinder", Score: 12, Source: models.SourceCompetitor, Difficulty: models.DifficultyEasy},
		{Keyword: "milk frothing", Score: 3, Source: models.SourceCompetitor},
	}}

	stage := NewStage(trends, gaps, 3)
	got, err := stage.ResearchTopics(context.Background(), blog)
	if err != nil {
		t.Fatalf("ResearchTopics() error: %v", err)
	}

	want := []string{"espresso machines", "burr grinder", "milk frothing"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i, k := range want {
		if got[i].Keyword != k {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Keyword, k)
		}
	}
	if got[0].Source != models.SourceTrend {
		t.Errorf("got[0].Source = %q, want trend", got[0].Source)
	}
	if got[1].Source != models.SourceCompetitor || got[1].Difficulty != models.DifficultyEasy {
		t.Errorf("got[1] = %+v, want competitor gap with difficulty", got[1])
	}
}

func TestStage_ResearchTopics_Failures(t *testing.T) {
	withCompetitors := &models.Blog{Keywords: []string{"espresso"}, Competitors: []string{"https://rival.example/feed"}}

	tests := []struct {
		name    string
		blog    *models.Blog
		trends  *fakeTrends
		gaps    *fakeGaps
		wantErr error
	}{
		{
			name:    "no keywords",
			blog:    &models.Blog{Keywords: []string{" "}},
			trends:  &fakeTrends{},
			gaps:    &fakeGaps{},
			wantErr: ErrNoKeywords,
		},
		{
			name:    "trend source unreachable",
			blog:    withCompetitors,
			trends:  &fakeTrends{err: fmt.Errorf("%w: dial tcp: timeout", ErrUnreachable)},
			gaps:    &fakeGaps{candidates: []models.TopicCandidate{{Keyword: "x", Score: 1}}},
			wantErr: ErrUnreachable,
		},
		{
			name:    "competitor feed unreachable",
			blog:    withCompetitors,
			trends:  &fakeTrends{trends: []Trend{{Keyword: "espresso", Score: 1}}},
			gaps:    &fakeGaps{err: fmt.Errorf("%w: competitor down", ErrUnreachable)},
			wantErr: ErrUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewStage(tt.trends, tt.gaps, 0).ResearchTopics(context.Background(), tt.blog)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ResearchTopics() error = %v, want %v", err, tt.wantErr)
			}
			if got != nil {
				t.Errorf("ResearchTopics() returned %d candidates alongside an error", len(got))
			}
		})
	}
}

func TestStage_SkipsGapsWithoutCompetitors(t *testing.T) {
	gaps := &fakeGaps{}
	stage := NewStage(&fakeTrends{trends: []Trend{{Keyword: "espresso", Score: 1}}}, gaps, 0)

	got, err := stage.ResearchTopics(context.Background(), &models.Blog{Keywords: []string{"espresso"}})
	if err != nil {
		t.Fatalf("ResearchTopics() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d candidates, want 1", len(got))
	}
	if gaps.calls != 0 {
		t.Errorf("KeywordGaps called %d times for a blog without competitors", gaps.calls)
	}
}
