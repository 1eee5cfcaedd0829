// Package promotion announces published posts on social platforms.
package promotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxErrorBody = 2048

// ErrMissingCredentials is returned when a platform is enabled for a blog
// but the "social" document has no usable credentials for it.
var ErrMissingCredentials = errors.New("missing credentials")

// Announcement is what gets posted about a published article.
type Announcement struct {
	Title    string
	Summary  string
	URL      string
	Tags     []string
	Hashtags []string
	Body     string // markdown, for platforms that take a full article
}

// Text renders a short announcement of at most limit characters (0 means
// no limit). The URL and hashtags are always kept; the summary is dropped
// first, then the title is shortened.
func (a Announcement) Text(limit int) string {
	tail := a.URL
	if tags := a.hashtagLine(); tags != "" {
		tail += "\n\n" + tags
	}

	full := a.Title
	if a.Summary != "" {
		full += "\n\n" + a.Summary
	}
	full += "\n\n" + tail
	if limit <= 0 || utf8.RuneCountInString(full) <= limit {
		return full
	}

	short := a.Title + "\n\n" + tail
	if utf8.RuneCountInString(short) <= limit {
		return short
	}

	room := limit - utf8.RuneCountInString(tail) - 2 // blank line
	if room < 1 {
		return shorten(a.URL, limit)
	}
	return shorten(a.Title, room) + "\n\n" + tail
}

func (a Announcement) hashtagLine() string {
	seen := make(map[string]bool)
	var tags []string
	for _, raw := range append(append([]string{}, a.Hashtags...), a.Tags...) {
		tag := hashtag(raw)
		if tag == "" || seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, tag)
		if len(tags) == 5 {
			break
		}
	}
	return strings.Join(tags, " ")
}

// hashtag turns "latte art" into "#LatteArt".
func hashtag(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var sb strings.Builder
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r > 127)
	}) {
		r, size := utf8.DecodeRuneInString(w)
		sb.WriteString(strings.ToUpper(string(r)) + w[size:])
	}
	if sb.Len() == 0 {
		return ""
	}
	return "#" + sb.String()
}

func shorten(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max(n-1, 0)])) + "…"
}

// Platform posts announcements to one social network.
type Platform interface {
	Name() string
	Post(ctx context.Context, a Announcement) (postID string, err error)
}

// PlatformError is a non-success response from a platform API.
type PlatformError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Platform, e.StatusCode, e.Body)
}

// apiCall is one JSON request to a platform.
type apiCall struct {
	platform string
	method   string
	url      string
	headers  map[string]string
	body     any       // JSON encoded when set
	form     io.Reader // sent as-is when set, with formType
	formType string
}

func doJSON(ctx context.Context, client *http.Client, call apiCall, out any) error {
	var body io.Reader
	contentType := ""
	switch {
	case call.body != nil:
		raw, err := json.Marshal(call.body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", call.platform, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case call.form != nil:
		body = call.form
		contentType = call.formType
	}

	method := call.method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, call.url, body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", call.platform, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "quill/1.0")
	for k, v := range call.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", call.platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &PlatformError{Platform: call.platform, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", call.platform, err)
	}
	return nil
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
