package promotion

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	mediumMaxTags = 5
	devToMaxTags  = 4
)

// medium cross-posts the full article with a canonical link back.
type medium struct {
	client *http.Client
	base   string
	creds  MediumCredentials
}

func (p *medium) Name() string { return PlatformMedium }

func (p *medium) Post(ctx context.Context, a Announcement) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformMedium,
		url:      p.base + "/v1/users/" + url.PathEscape(p.creds.UserID) + "/posts",
		headers:  bearer(p.creds.IntegrationToken),
		body: map[string]any{
			"title":         a.Title,
			"contentFormat": "markdown",
			"content":       crossPostBody(a),
			"canonicalUrl":  a.URL,
			"tags":          limitTags(a.Tags, mediumMaxTags, false),
			"publishStatus": "public",
		},
	}, &out)
	return out.Data.ID, err
}

// devTo cross-posts to DEV Community.
type devTo struct {
	client *http.Client
	base   string
	creds  DevToCredentials
}

func (p *devTo) Name() string { return PlatformDevTo }

func (p *devTo) Post(ctx context.Context, a Announcement) (string, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformDevTo,
		url:      p.base + "/api/articles",
		headers:  map[string]string{"api-key": p.creds.APIKey},
		body: map[string]any{
			"article": map[string]any{
				"title":         a.Title,
				"body_markdown": crossPostBody(a),
				"published":     true,
				"canonical_url": a.URL,
				"description":   a.Summary,
				"tags":          limitTags(a.Tags, devToMaxTags, true),
			},
		},
	}, &out)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(out.ID, 10), nil
}

func crossPostBody(a Announcement) string {
	body := strings.TrimSpace(a.Body)
	if body == "" {
		body = a.Summary
	}
	return body + "\n\n*Originally published at [" + a.URL + "](" + a.URL + ").*"
}

// limitTags keeps the first n distinct tags. compact strips everything but
// lower-case letters and digits, as DEV requires.
func limitTags(tags []string, n int, compact bool) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if compact {
			t = strings.Map(func(r rune) rune {
				if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
					return r
				}
				return -1
			}, t)
		}
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}
