package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// IsScrapeURL returns true if the feed URL uses the scrape:// scheme,
// indicating it should be fetched via HTML scraping instead of RSS.
func IsScrapeURL(feedURL string) bool {
	return strings.HasPrefix(feedURL, "scrape://")
}

// ScrapeURLToHTTPS converts a scrape:// URL to its https:// equivalent.
func ScrapeURLToHTTPS(feedURL string) string {
	return "https://" + strings.TrimPrefix(feedURL, "scrape://")
}

// scrapeListingPage fetches a blog index page for sites without a feed and
// extracts post links from its HTML.
func (f *Fetcher) scrapeListingPage(ctx context.Context, source Source, maxItems int) ([]Entry, error) {
	pageURL := ScrapeURLToHTTPS(source.URL)
	if err := f.waitForRateLimit(ctx, extractDomain(pageURL)); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %q: %w", pageURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %q: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body from %q: %w", pageURL, err)
	}

	return parseListingHTML(source, pageURL, string(body), maxItems)
}

// parseListingHTML extracts post links from a blog index page. A link counts
// as a post when it sits inside an <article> element or wraps or is wrapped
// by an <h2>/<h3> heading, which covers most blog themes:
//
//	article
//	  h2 > a[href]   -> title + link
//	  time           -> "Jan 29, 2026" or datetime attribute
//
// Relative links are resolved against pageURL and duplicates are dropped.
func parseListingHTML(source Source, pageURL, body string, maxItems int) ([]Entry, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page URL: %w", err)
	}

	var (
		entries []Entry
		seen    = make(map[string]bool)
	)

	var walk func(n *html.Node, inPost bool)
	walk = func(n *html.Node, inPost bool) {
		if maxItems > 0 && len(entries) >= maxItems {
			return
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "article", "h2", "h3":
				inPost = true
			case "a":
				if entry, ok := postLink(n, inPost, base, source); ok && !seen[entry.URL] {
					seen[entry.URL] = true
					entries = append(entries, entry)
					return
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inPost)
		}
	}

	walk(doc, false)
	return entries, nil
}

// postLink turns an anchor into an entry when it looks like a post link.
func postLink(n *html.Node, inPost bool, base *url.URL, source Source) (Entry, bool) {
	href := strings.TrimSpace(getAttr(n, "href"))
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
		return Entry{}, false
	}
	if !inPost && !hasHeadingChild(n) {
		return Entry{}, false
	}
	title := strings.Join(strings.Fields(textContent(n)), " ")
	if title == "" {
		return Entry{}, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return Entry{}, false
	}

	return Entry{
		Source:      source.Name,
		Title:       title,
		URL:         base.ResolveReference(ref).String(),
		PublishedAt: findNearbyDate(n),
	}, true
}

func hasHeadingChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "h2" || c.Data == "h3") {
			return true
		}
	}
	return false
}

// getAttr returns the value of the named attribute on an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent returns the concatenated text content of an HTML node and its children.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// findNearbyDate walks up from the given node to find a date in a <time>
// element or an element whose class mentions "date".
func findNearbyDate(n *html.Node) *time.Time {
	parent := n.Parent
	for i := 0; i < 4 && parent != nil; i++ {
		if t := findDateInSubtree(parent); t != nil {
			return t
		}
		parent = parent.Parent
	}
	return nil
}

// findDateInSubtree searches an HTML subtree for a parseable date.
func findDateInSubtree(n *html.Node) *time.Time {
	if n.Type == html.ElementNode {
		if n.Data == "time" {
			if t := parseHumanDate(getAttr(n, "datetime")); t != nil {
				return t
			}
		}
		if n.Data == "time" || strings.Contains(getAttr(n, "class"), "date") {
			if t := parseHumanDate(strings.TrimSpace(textContent(n))); t != nil {
				return t
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findDateInSubtree(c); t != nil {
			return t
		}
	}
	return nil
}

// parseHumanDate tries to parse date strings like "Jan 29, 2026",
// "February 5, 2026" or an ISO timestamp.
func parseHumanDate(s string) *time.Time {
	layouts := []string{
		time.RFC3339,
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 02, 2006",
		"January 02, 2006",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
