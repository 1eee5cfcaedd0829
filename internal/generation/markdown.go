package generation

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(html.WithXHTML()),
)

var (
	headingPattern  = regexp.MustCompile(`(?m)^##[ \t]+(.+?)[ \t#]*$`)
	linkPattern     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdSymbolPattern = regexp.MustCompile("(?m)^[ \t]*(#+|>|[-*+]|\\d+\\.)[ \t]+|[*_`~]")
	spacePattern    = regexp.MustCompile(`\s+`)
	fencePattern    = regexp.MustCompile("(?ms)^[ \t]*```.*?^[ \t]*```[ \t]*$")
)

// wordsPerMinute is the average adult reading speed for non-fiction prose.
const wordsPerMinute = 238

// RenderMarkdown converts a post body to HTML with GitHub-flavoured
// markdown extensions. Raw HTML in the source is dropped.
func RenderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// Headings returns the text of the second-level headings in md, in order.
func Headings(md string) []string {
	var out []string
	for _, m := range headingPattern.FindAllStringSubmatch(md, -1) {
		if h := strings.TrimSpace(m[1]); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// Excerpt returns roughly the first length characters of md as plain text.
func Excerpt(md string, length int) string {
	plain := linkPattern.ReplaceAllString(md, "$1")
	plain = headingPattern.ReplaceAllString(plain, "")
	plain = mdSymbolPattern.ReplaceAllString(plain, "")
	plain = strings.TrimSpace(spacePattern.ReplaceAllString(plain, " "))

	runes := []rune(plain)
	if len(runes) <= length {
		return plain
	}
	cut := string(runes[:length])
	if i := strings.LastIndex(cut, " "); i > length/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, ",;:.") + "..."
}

// WordCount counts the words a reader sees in md. Markdown syntax, link
// targets and fenced code blocks are not counted.
func WordCount(md string) int {
	plain := fencePattern.ReplaceAllString(md, " ")
	plain = linkPattern.ReplaceAllString(plain, "$1")
	plain = mdSymbolPattern.ReplaceAllString(plain, "")
	return len(strings.Fields(plain))
}

// ReadingMinutes estimates how long md takes to read, rounded up. Empty
// text reads in zero minutes.
func ReadingMinutes(md string) int {
	words := WordCount(md)
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

// truncate shortens s to at most n runes without splitting a word when
// possible.
func truncate(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
