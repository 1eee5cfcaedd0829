package research

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/quill/internal/feeds"
	"github.com/hoanghai1803/quill/internal/models"
)

const (
	defaultArticleLimit = 5
	competitorLookback  = 180
	extractConcurrency  = 4
	maxGaps             = 10
	relatedBoost        = 1.5
)

// CompetitorAnalyzer reads the blog's competitor feeds, extracts the full
// text of recent articles and reports terms competitors write about that
// the blog's keywords do not cover.
type CompetitorAnalyzer struct {
	reader       FeedReader
	classifier   DifficultyClassifier
	articleLimit int
}

// NewCompetitorAnalyzer creates an analyzer reading up to articleLimit
// recent articles per competitor. A nil classifier uses DefaultClassifier.
func NewCompetitorAnalyzer(reader FeedReader, classifier DifficultyClassifier, articleLimit int) *CompetitorAnalyzer {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	if articleLimit <= 0 {
		articleLimit = defaultArticleLimit
	}
	return &CompetitorAnalyzer{reader: reader, classifier: classifier, articleLimit: articleLimit}
}

type gap struct {
	term        string
	url         string
	coverage    float64
	opportunity float64
}

// KeywordGaps returns competitor_analysis candidates ordered by opportunity.
// A competitor feed that cannot be read fails the analysis. Articles whose
// full text cannot be extracted fall back to their feed summary.
func (a *CompetitorAnalyzer) KeywordGaps(ctx context.Context, blog *models.Blog) ([]models.TopicCandidate, error) {
	sources := competitorSources(blog.Competitors)
	if len(sources) == 0 {
		return nil, nil
	}

	result, err := a.reader.FetchAll(ctx, sources, feeds.FetchOptions{
		MaxItems:     a.articleLimit,
		LookbackDays: competitorLookback,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if len(result.Failed) > 0 {
		f := result.Failed[0]
		return nil, fmt.Errorf("%w: competitor %s: %s", ErrUnreachable, f.Source, f.Error)
	}

	docs, err := a.articleTexts(ctx, result.Entries)
	if err != nil {
		return nil, err
	}

	gaps := findGaps(docs, result.Entries, blog.NormalizedKeywords())
	candidates := make([]models.TopicCandidate, 0, len(gaps))
	for _, g := range gaps {
		difficulty := a.classifier.Classify(g.term, g.coverage)
		candidates = append(candidates, models.TopicCandidate{
			Keyword:          g.term,
			Title:            titleCase(g.term),
			Score:            roundTo(g.opportunity/10*difficultyWeight(difficulty), 2),
			Source:           models.SourceCompetitor,
			URL:              g.url,
			OpportunityScore: roundTo(g.opportunity, 1),
			Difficulty:       difficulty,
		})
	}

	slog.Debug("competitor analysis complete",
		"blog_id", blog.ID,
		"competitors", len(sources),
		"articles", len(docs),
		"gaps", len(candidates),
	)
	return candidates, nil
}

// articleTexts returns the title, summary and extracted body of each entry.
func (a *CompetitorAnalyzer) articleTexts(ctx context.Context, entries []feeds.Entry) ([]string, error) {
	docs := make([]string, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(extractConcurrency)
	for i, e := range entries {
		g.Go(func() error {
			text := e.Title + "\n" + e.Description
			body, err := a.reader.ExtractArticle(gctx, e.URL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("competitor article extraction failed", "url", e.URL, "error", err)
			} else {
				text += "\n" + body
			}
			docs[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting competitor articles: %w", err)
	}
	return docs, nil
}

// findGaps counts in how many documents each term appears and keeps terms
// that appear in at least two documents (one when only one was read), are
// not already covered by a blog keyword, and are either related to a
// keyword or a two-word phrase.
func findGaps(docs []string, entries []feeds.Entry, keywords []string) []gap {
	n := len(docs)
	if n == 0 {
		return nil
	}
	minDocs := 2
	if n == 1 {
		minDocs = 1
	}

	docFreq := make(map[string]int)
	firstURL := make(map[string]string)
	for i, doc := range docs {
		for term := range contentTerms(doc) {
			docFreq[term]++
			if _, ok := firstURL[term]; !ok {
				firstURL[term] = entries[i].URL
			}
		}
	}

	var gaps []gap
	for term, df := range docFreq {
		if df < minDocs || coveredByKeywords(term, keywords) {
			continue
		}
		related := relatedToKeywords(term, keywords)
		if !related && !strings.Contains(term, " ") {
			continue
		}
		coverage := float64(df) / float64(n)
		opportunity := coverage * 100
		if related {
			opportunity = math.Min(opportunity*relatedBoost, 100)
		}
		gaps = append(gaps, gap{term: term, url: firstURL[term], coverage: coverage, opportunity: opportunity})
	}

	// Map order is random; break ties on the term for stable output.
	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].opportunity != gaps[j].opportunity {
			return gaps[i].opportunity > gaps[j].opportunity
		}
		return gaps[i].term < gaps[j].term
	})
	if len(gaps) > maxGaps {
		gaps = gaps[:maxGaps]
	}
	return gaps
}

// competitorSources turns competitor feed URLs into named sources.
func competitorSources(urls []string) []feeds.Source {
	var sources []feeds.Source
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name := raw
		probe := raw
		if feeds.IsScrapeURL(raw) {
			probe = feeds.ScrapeURLToHTTPS(raw)
		}
		if u, err := url.Parse(probe); err == nil && u.Hostname() != "" {
			name = u.Hostname()
		}
		sources = append(sources, feeds.Source{Name: name, URL: raw})
	}
	return sources
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
