package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsScrapeURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"scrape://www.rival.example/blog", true},
		{"https://example.com/feed", false},
		{"scrape://", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsScrapeURL(tt.url); got != tt.want {
			t.Errorf("IsScrapeURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestScrapeURLToHTTPS(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"scrape://www.rival.example/blog", "https://www.rival.example/blog"},
		{"scrape://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		if got := ScrapeURLToHTTPS(tt.input); got != tt.want {
			t.Errorf("ScrapeURLToHTTPS(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

const listingHTML = `
<html><body>
	<nav><a href="/about">About us</a></nav>
	<article>
		<h2><a href="/blog/grinder-guide">The Grinder Guide</a></h2>
		<time datetime="2026-02-10T08:00:00Z">Feb 10, 2026</time>
	</article>
	<article>
		<h2><a href="/blog/milk-steaming">Milk   Steaming 101</a></h2>
		<p class="post-date">Jan 29, 2026</p>
	</article>
	<a class="card" href="https://other.example/roasts"><h3>Light vs Dark Roasts</h3></a>
	<article>
		<h2><a href="/blog/grinder-guide">The Grinder Guide (again)</a></h2>
	</article>
	<article><h2><a href="#top">Back to top</a></h2></article>
</body></html>`

func TestParseListingHTML(t *testing.T) {
	source := Source{Name: "Rival Coffee"}

	entries, err := parseListingHTML(source, "https://rival.example/blog", listingHTML, 10)
	if err != nil {
		t.Fatalf("parseListingHTML error: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3: %+v", len(entries), entries)
	}

	if entries[0].Title != "The Grinder Guide" {
		t.Errorf("entries[0].Title = %q", entries[0].Title)
	}
	if entries[0].URL != "https://rival.example/blog/grinder-guide" {
		t.Errorf("entries[0].URL = %q", entries[0].URL)
	}
	if entries[0].PublishedAt == nil || entries[0].PublishedAt.Day() != 10 {
		t.Errorf("entries[0].PublishedAt = %v, want Feb 10", entries[0].PublishedAt)
	}

	if entries[1].Title != "Milk Steaming 101" {
		t.Errorf("entries[1].Title = %q, want collapsed whitespace", entries[1].Title)
	}
	if entries[1].PublishedAt == nil || entries[1].PublishedAt.Day() != 29 {
		t.Errorf("entries[1].PublishedAt = %v, want Jan 29", entries[1].PublishedAt)
	}

	if entries[2].URL != "https://other.example/roasts" {
		t.Errorf("entries[2].URL = %q", entries[2].URL)
	}

	for _, e := range entries {
		if e.Source != "Rival Coffee" {
			t.Errorf("Source = %q, want %q", e.Source, "Rival Coffee")
		}
		if strings.Contains(e.URL, "/about") {
			t.Error("navigation link treated as a post")
		}
	}
}

func TestParseListingHTML_MaxItems(t *testing.T) {
	entries, err := parseListingHTML(Source{Name: "x"}, "https://rival.example/blog", listingHTML, 2)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2 (limited by maxItems)", len(entries))
	}
}

func TestFetchFeed_RSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0" xmlns:ht="https://trends.google.com/trending/rss">
<channel><title>Trends</title>
<item><title>cold brew</title><link>https://example.com/cold-brew</link><ht:approx_traffic>50,000+</ht:approx_traffic></item>
<item><title>latte art</title><link>https://example.com/latte-art</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	f := NewFetcher(WithRateLimit(0), WithHTTPClient(srv.Client()))
	entries, err := f.FetchFeed(context.Background(), Source{Name: "Trends", URL: srv.URL}, FetchOptions{})
	if err != nil {
		t.Fatalf("FetchFeed() error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Title != "cold brew" || entries[0].Traffic != 50000 {
		t.Errorf("entries[0] = %+v", entries[0])
	}
}

func TestFetchAll_CollectsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`<rss version="2.0"><channel><item><title>ok</title><link>https://example.com/ok</link></item></channel></rss>`))
	}))
	defer srv.Close()

	f := NewFetcher(WithRateLimit(0), WithHTTPClient(srv.Client()))
	result, err := f.FetchAll(context.Background(), []Source{
		{Name: "good", URL: srv.URL + "/feed"},
		{Name: "bad", URL: srv.URL + "/broken"},
	}, FetchOptions{})
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(result.Entries) != 1 || result.Entries[0].Source != "good" {
		t.Errorf("Entries = %+v", result.Entries)
	}
	if len(result.Failed) != 1 || result.Failed[0].Source != "bad" {
		t.Errorf("Failed = %+v", result.Failed)
	}
}

func TestParseHumanDate(t *testing.T) {
	tests := []struct {
		input   string
		wantNil bool
		wantDay int
	}{
		{"Jan 29, 2026", false, 29},
		{"February 5, 2026", false, 5},
		{"2026-01-15", false, 15},
		{"2026-01-16T10:00:00Z", false, 16},
		{"not a date", true, 0},
		{"", true, 0},
	}
	for _, tt := range tests {
		got := parseHumanDate(tt.input)
		if tt.wantNil && got != nil {
			t.Errorf("parseHumanDate(%q) = %v, want nil", tt.input, got)
		}
		if !tt.wantNil && got == nil {
			t.Errorf("parseHumanDate(%q) = nil, want day %d", tt.input, tt.wantDay)
		}
		if !tt.wantNil && got != nil && got.Day() != tt.wantDay {
			t.Errorf("parseHumanDate(%q).Day() = %d, want %d", tt.input, got.Day(), tt.wantDay)
		}
	}
}
