package feeds

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

var htmlTagPattern = regexp.MustCompile("<[^>]*>")

// parseFeedItems converts gofeed items into entries, applying the lookback
// window and per-feed cap. Items with nil PublishedParsed are always
// included. Items with empty Title or URL are skipped.
func parseFeedItems(source Source, feed *gofeed.Feed, opts FetchOptions) []Entry {
	var cutoff time.Time
	if opts.LookbackDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -opts.LookbackDays)
	}

	var entries []Entry
	for _, item := range feed.Items {
		if opts.MaxItems > 0 && len(entries) >= opts.MaxItems {
			break
		}
		if item.Title == "" || item.Link == "" {
			continue
		}

		// Filter by publication date when available.
		if item.PublishedParsed != nil && !cutoff.IsZero() && item.PublishedParsed.Before(cutoff) {
			continue
		}

		var publishedAt *time.Time
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			publishedAt = &t
		}

		entries = append(entries, Entry{
			Source:      source.Name,
			Title:       strings.TrimSpace(item.Title),
			URL:         item.Link,
			Description: strings.TrimSpace(stripHTML(item.Description)),
			Categories:  item.Categories,
			Traffic:     approxTraffic(item),
			PublishedAt: publishedAt,
		})
	}

	return entries
}

// approxTraffic reads the trends-feed "ht:approx_traffic" extension, e.g.
// "20,000+", as an integer. It returns 0 when absent or unparsable.
func approxTraffic(item *gofeed.Item) int {
	ht, ok := item.Extensions["ht"]
	if !ok {
		return 0
	}
	values := ht["approx_traffic"]
	if len(values) == 0 {
		return 0
	}
	raw := strings.NewReplacer(",", "", "+", "", " ", "").Replace(values[0].Value)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// stripHTML removes HTML tags from s and unescapes HTML entities.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, "")
	return html.UnescapeString(clean)
}
