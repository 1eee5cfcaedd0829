package ai

import (
	"fmt"
	"strings"
)

const articleSystemPrompt = `You are an experienced blog writer and SEO editor. Write one complete, original blog post in Markdown for the blog described by the user. Use "##" headings for the main sections and do not repeat the title as a heading. Return ONLY valid JSON with these fields: "title" (string), "body_markdown" (string), "summary" (two sentences), "keywords" (array of 3-8 strings), "meta_title" (max 60 characters), "meta_description" (max 155 characters), "focus_keyword" (string), "sections" (array of the "##" heading texts in order).`

const imageSystemStyle = "High quality editorial blog illustration, no text, no watermarks."

// ArticleBrief is everything the article prompt needs to know about the
// blog and the chosen topic.
type ArticleBrief struct {
	BlogName    string
	Theme       string
	Description string
	Tone        string
	Style       string
	Audience    string
	Language    string
	WordCount   int
	Keywords    []string
	Topic       string
	TopicTitle  string
}

// ArticlePrompt builds the system and user prompts for drafting a post.
func ArticlePrompt(b ArticleBrief) (systemPrompt string, userPrompt string) {
	systemPrompt = articleSystemPrompt

	words := b.WordCount
	if words <= 0 {
		words = 1200
	}
	lang := b.Language
	if lang == "" {
		lang = "English"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Blog: %s\n", b.BlogName)
	fmt.Fprintf(&sb, "Theme: %s\n", b.Theme)
	if b.Description != "" {
		fmt.Fprintf(&sb, "About: %s\n", b.Description)
	}
	if b.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", b.Tone)
	}
	if b.Style != "" {
		fmt.Fprintf(&sb, "Style: %s\n", b.Style)
	}
	if b.Audience != "" {
		fmt.Fprintf(&sb, "Audience: %s\n", b.Audience)
	}
	fmt.Fprintf(&sb, "Language: %s\n", lang)
	fmt.Fprintf(&sb, "Length: about %d words\n", words)
	if len(b.Keywords) > 0 {
		fmt.Fprintf(&sb, "Blog keywords: %s\n", strings.Join(b.Keywords, ", "))
	}
	sb.WriteString("\nTopic: ")
	sb.WriteString(b.Topic)
	if b.TopicTitle != "" && b.TopicTitle != b.Topic {
		fmt.Fprintf(&sb, "\nWorking title: %s", b.TopicTitle)
	}
	sb.WriteString("\n")

	userPrompt = sb.String()
	return systemPrompt, userPrompt
}

// ImagePrompt builds the prompt for a featured or section image. section is
// empty for the featured image.
func ImagePrompt(title, section, style string) string {
	var sb strings.Builder
	sb.WriteString(imageSystemStyle)
	if style != "" {
		fmt.Fprintf(&sb, " Style: %s.", style)
	}
	if section == "" {
		fmt.Fprintf(&sb, " Featured image for an article titled %q.", title)
	} else {
		fmt.Fprintf(&sb, " Illustration for the section %q of an article titled %q.", section, title)
	}
	return sb.String()
}

// ExtractJSON strips markdown code fences from a string that may contain
// JSON wrapped in ```json ... ``` or ``` ... ``` blocks. This handles the
// common case where LLMs return JSON inside code fences.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Try ```json ... ``` first.
	if after, found := strings.CutPrefix(s, "```json"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// Try plain ``` ... ```.
	if after, found := strings.CutPrefix(s, "```"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// Fall back to the outermost object when the model added prose.
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		return s[start : end+1]
	}

	return s
}
