package feeds

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

func TestParseFeedItems(t *testing.T) {
	now := time.Now()
	recentTime := now.Add(-12 * time.Hour)
	oldTime := now.Add(-60 * 24 * time.Hour) // 60 days ago

	source := Source{Name: "Test Blog", URL: "https://example.com/feed"}

	tests := []struct {
		name         string
		items        []*gofeed.Item
		lookbackDays int
		wantCount    int
		desc         string
	}{
		{
			name: "recent item within lookback window",
			items: []*gofeed.Item{
				{Title: "Recent Post", Link: "https://example.com/recent", Description: "A recent post", PublishedParsed: &recentTime},
			},
			lookbackDays: 7,
			wantCount:    1,
			desc:         "items within the lookback window should be included",
		},
		{
			name: "old item filtered by lookback",
			items: []*gofeed.Item{
				{Title: "Old Post", Link: "https://example.com/old", Description: "An old post", PublishedParsed: &oldTime},
			},
			lookbackDays: 30,
			wantCount:    0,
			desc:         "items older than lookback window should be excluded",
		},
		{
			name: "nil published date is included",
			items: []*gofeed.Item{
				{Title: "No Date Post", Link: "https://example.com/nodate", Description: "No date"},
			},
			lookbackDays: 7,
			wantCount:    1,
			desc:         "items with nil PublishedParsed should always be included",
		},
		{
			name: "empty title is skipped",
			items: []*gofeed.Item{
				{Title: "", Link: "https://example.com/notitle", PublishedParsed: &recentTime},
			},
			lookbackDays: 7,
			wantCount:    0,
			desc:         "items with empty title should be skipped",
		},
		{
			name: "empty URL is skipped",
			items: []*gofeed.Item{
				{Title: "No URL Post", Link: "", PublishedParsed: &recentTime},
			},
			lookbackDays: 7,
			wantCount:    0,
			desc:         "items with empty URL should be skipped",
		},
		{
			name: "mixed items with some valid some invalid",
			items: []*gofeed.Item{
				{Title: "Good Post", Link: "https://example.com/good", PublishedParsed: &recentTime},
				{Title: "", Link: "https://example.com/notitle", PublishedParsed: &recentTime},
				{Title: "Old Post", Link: "https://example.com/old", PublishedParsed: &oldTime},
				{Title: "No Date", Link: "https://example.com/nodate"},
			},
			lookbackDays: 7,
			wantCount:    2, // Good Post + No Date
			desc:         "mix of valid and invalid items should filter correctly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := &gofeed.Feed{Items: tt.items}
			entries := parseFeedItems(source, feed, FetchOptions{LookbackDays: tt.lookbackDays})

			if got := len(entries); got != tt.wantCount {
				t.Errorf("%s: got %d entries, want %d", tt.desc, got, tt.wantCount)
			}
		})
	}
}

func TestParseFeedItems_FieldMapping(t *testing.T) {
	pubTime := time.Now().Add(-24 * time.Hour) // yesterday
	source := Source{Name: "Trends"}

	feed := &gofeed.Feed{
		Items: []*gofeed.Item{
			{
				Title:           " Espresso machines ",
				Link:            "https://example.com/article",
				Description:     "A <b>bold</b> description",
				Categories:      []string{"coffee"},
				PublishedParsed: &pubTime,
				Extensions: ext.Extensions{
					"ht": {"approx_traffic": []ext.Extension{{Value: "20,000+"}}},
				},
			},
		},
	}

	entries := parseFeedItems(source, feed, FetchOptions{LookbackDays: 365})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]

	if e.Title != "Espresso machines" {
		t.Errorf("Title = %q, want %q", e.Title, "Espresso machines")
	}
	if e.URL != "https://example.com/article" {
		t.Errorf("URL = %q, want %q", e.URL, "https://example.com/article")
	}
	if e.Description != "A bold description" {
		t.Errorf("Description = %q, want %q", e.Description, "A bold description")
	}
	if e.Source != "Trends" {
		t.Errorf("Source = %q, want %q", e.Source, "Trends")
	}
	if e.Traffic != 20000 {
		t.Errorf("Traffic = %d, want 20000", e.Traffic)
	}
	if len(e.Categories) != 1 || e.Categories[0] != "coffee" {
		t.Errorf("Categories = %v", e.Categories)
	}
	if e.PublishedAt == nil {
		t.Fatal("PublishedAt should not be nil")
	}
	if !e.PublishedAt.Equal(pubTime) {
		t.Errorf("PublishedAt = %v, want %v", e.PublishedAt, pubTime)
	}
}

func TestParseFeedItems_MaxItems(t *testing.T) {
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "A", Link: "https://example.com/a"},
		{Title: "", Link: "https://example.com/skip"},
		{Title: "B", Link: "https://example.com/b"},
		{Title: "C", Link: "https://example.com/c"},
	}}

	entries := parseFeedItems(Source{Name: "x"}, feed, FetchOptions{MaxItems: 2})
	if len(entries) != 2 || entries[0].Title != "A" || entries[1].Title != "B" {
		t.Errorf("entries = %+v, want A and B", entries)
	}
}

func TestApproxTraffic(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"with plus and comma", "200,000+", 200000},
		{"plain", "500", 500},
		{"garbage", "lots", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &gofeed.Item{Extensions: ext.Extensions{
				"ht": {"approx_traffic": []ext.Extension{{Value: tt.value}}},
			}}
			if got := approxTraffic(item); got != tt.want {
				t.Errorf("approxTraffic(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
	if got := approxTraffic(&gofeed.Item{}); got != 0 {
		t.Errorf("approxTraffic(no extension) = %d, want 0", got)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "removes simple tags",
			input: "<p>Hello <b>world</b></p>",
			want:  "Hello world",
		},
		{
			name:  "unescapes HTML entities",
			input: "Tom &amp; Jerry &lt;3",
			want:  "Tom & Jerry <3",
		},
		{
			name:  "combined tags and entities",
			input: "<div>Price: &gt; $10 &amp; &lt; $20</div>",
			want:  "Price: > $10 & < $20",
		},
		{
			name:  "plain text unchanged",
			input: "no tags here",
			want:  "no tags here",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "self-closing tags",
			input: "line one<br/>line two",
			want:  "line oneline two",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripHTML(tt.input)
			if got != tt.want {
				t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
