package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

const (
	httpTimeout    = 30 * time.Second
	maxConcurrent  = 10
	rateLimitDelay = 1 * time.Second
	maxWords       = 5000
)

// Source is a feed to read. URLs with the scrape:// scheme point at an HTML
// listing page instead of an RSS or Atom feed.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Entry is one item read from a feed or listing page.
type Entry struct {
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Traffic     int        `json:"traffic,omitempty"` // approximate search volume, when the feed reports one
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// FetchOptions controls how feeds are fetched.
type FetchOptions struct {
	// MaxItems caps the entries taken from each feed. Zero means no cap.
	MaxItems int

	// LookbackDays drops entries published more than N days ago. Entries
	// without a date are kept. Zero disables the filter.
	LookbackDays int
}

// FailedFeed records a feed that could not be fetched.
type FailedFeed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FetchResult contains the successfully fetched entries and any failures.
type FetchResult struct {
	Entries []Entry
	Failed  []FailedFeed
}

// Fetcher handles feed fetching with per-domain rate limiting and bounded
// concurrency.
type Fetcher struct {
	client      *http.Client
	delay       time.Duration
	rateLimiter map[string]time.Time // per-domain last request time
	mu          sync.Mutex           // protects rateLimiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRateLimit sets the minimum delay between requests to one domain.
func WithRateLimit(d time.Duration) Option {
	return func(f *Fetcher) { f.delay = d }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// NewFetcher creates a Fetcher with a 30-second timeout HTTP client that
// sends browser-like headers, and a one second per-domain rate limit.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: httpTimeout,
			Transport: &userAgentTransport{
				base: http.DefaultTransport,
			},
		},
		delay:       rateLimitDelay,
		rateLimiter: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// userAgentTransport wraps an http.RoundTripper to inject a custom User-Agent
// header on every request.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	// Use a browser-like User-Agent to avoid bot detection on some sites.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return t.base.RoundTrip(req)
}

// FetchAll fetches all sources concurrently with at most 10 goroutines.
// Individual source failures are collected in FetchResult.Failed rather than
// failing the entire batch; callers decide whether a partial result is
// usable. Entries keep source order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source, opts FetchOptions) (*FetchResult, error) {
	var (
		perSource = make([][]Entry, len(sources))
		result    FetchResult
		mu        sync.Mutex
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, src := range sources {
		g.Go(func() error {
			entries, err := f.FetchFeed(ctx, src, opts)
			if err != nil {
				slog.Warn("failed to fetch feed",
					"source", src.Name,
					"url", src.URL,
					"error", err,
				)

				mu.Lock()
				result.Failed = append(result.Failed, FailedFeed{
					Source: src.Name,
					Error:  err.Error(),
				})
				mu.Unlock()

				return nil // skip failures, don't fail the batch
			}

			perSource[i] = entries

			slog.Debug("fetched feed",
				"source", src.Name,
				"items", len(entries),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching feeds: %w", err)
	}

	for _, entries := range perSource {
		result.Entries = append(result.Entries, entries...)
	}
	return &result, nil
}

// FetchFeed retrieves and parses a single source. Sources with a
// "scrape://" URL are fetched via HTML scraping; all others use standard
// RSS/Atom parsing.
func (f *Fetcher) FetchFeed(ctx context.Context, source Source, opts FetchOptions) ([]Entry, error) {
	if IsScrapeURL(source.URL) {
		return f.scrapeListingPage(ctx, source, opts.MaxItems)
	}

	if err := f.waitForRateLimit(ctx, extractDomain(source.URL)); err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", source.URL, err)
	}

	return parseFeedItems(source, feed, opts), nil
}

// ExtractArticle fetches the readable text of a competitor article. The
// per-domain rate limit applies and the text is cut to 5000 words.
func (f *Fetcher) ExtractArticle(ctx context.Context, articleURL string) (string, error) {
	if err := f.waitForRateLimit(ctx, extractDomain(articleURL)); err != nil {
		return "", err
	}

	text, err := extractText(ctx, f.client, articleURL)
	if err != nil {
		return "", fmt.Errorf("extracting article from %q: %w", articleURL, err)
	}

	return truncateWords(text, maxWords), nil
}

// waitForRateLimit enforces the minimum delay between requests to the same
// domain. It blocks until the delay has elapsed or ctx is done.
func (f *Fetcher) waitForRateLimit(ctx context.Context, domain string) error {
	if f.delay <= 0 {
		return nil
	}

	f.mu.Lock()
	var wait time.Duration
	now := time.Now()
	next := now
	if lastReq, ok := f.rateLimiter[domain]; ok && now.Sub(lastReq) < f.delay {
		next = lastReq.Add(f.delay)
		wait = next.Sub(now)
	}
	f.rateLimiter[domain] = next
	f.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
