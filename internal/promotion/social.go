package promotion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	twitterLimit  = 280
	linkedInLimit = 3000
	redditTitle   = 300
)

type twitter struct {
	client *http.Client
	base   string
	creds  TwitterCredentials
}

func (p *twitter) Name() string { return PlatformTwitter }

func (p *twitter) Post(ctx context.Context, a Announcement) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformTwitter,
		url:      p.base + "/2/tweets",
		headers:  bearer(p.creds.BearerToken),
		body:     map[string]string{"text": a.Text(twitterLimit)},
	}, &out)
	return out.Data.ID, err
}

type linkedIn struct {
	client *http.Client
	base   string
	creds  LinkedInCredentials
}

func (p *linkedIn) Name() string { return PlatformLinkedIn }

func (p *linkedIn) Post(ctx context.Context, a Announcement) (string, error) {
	body := map[string]any{
		"author":         p.creds.AuthorURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": a.Text(linkedInLimit)},
				"shareMediaCategory": "ARTICLE",
				"media": []map[string]any{{
					"status":      "READY",
					"originalUrl": a.URL,
					"title":       map[string]string{"text": a.Title},
				}},
			},
		},
		"visibility": map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}
	headers := bearer(p.creds.AccessToken)
	headers["X-Restli-Protocol-Version"] = "2.0.0"

	var out struct {
		ID string `json:"id"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformLinkedIn,
		url:      p.base + "/v2/ugcPosts",
		headers:  headers,
		body:     body,
	}, &out)
	return out.ID, err
}

type facebook struct {
	client *http.Client
	base   string
	creds  FacebookCredentials
}

func (p *facebook) Name() string { return PlatformFacebook }

func (p *facebook) Post(ctx context.Context, a Announcement) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformFacebook,
		url:      p.base + "/" + url.PathEscape(p.creds.PageID) + "/feed",
		body: map[string]string{
			"message":      a.Text(0),
			"link":         a.URL,
			"access_token": p.creds.PageToken,
		},
	}, &out)
	return out.ID, err
}

type reddit struct {
	client  *http.Client
	authURL string
	apiURL  string
	creds   RedditCredentials
}

func (p *reddit) Name() string { return PlatformReddit }

// Post authenticates with the password grant and submits a link post.
func (p *reddit) Post(ctx context.Context, a Announcement) (string, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(p.creds.ClientID + ":" + p.creds.ClientSecret))
	var token struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformReddit,
		url:      p.authURL + "/api/v1/access_token",
		headers:  map[string]string{"Authorization": "Basic " + basic},
		form: strings.NewReader(url.Values{
			"grant_type": {"password"},
			"username":   {p.creds.Username},
			"password":   {p.creds.Password},
		}.Encode()),
		formType: "application/x-www-form-urlencoded",
	}, &token)
	if err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("reddit: authentication failed: %s", token.Error)
	}

	var out struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Name string `json:"name"`
			} `json:"data"`
		} `json:"json"`
	}
	err = doJSON(ctx, p.client, apiCall{
		platform: PlatformReddit,
		url:      p.apiURL + "/api/submit",
		headers:  bearer(token.AccessToken),
		form: strings.NewReader(url.Values{
			"sr":       {strings.TrimPrefix(p.creds.Subreddit, "r/")},
			"kind":     {"link"},
			"title":    {shorten(a.Title, redditTitle)},
			"url":      {a.URL},
			"api_type": {"json"},
			"resubmit": {"true"},
		}.Encode()),
		formType: "application/x-www-form-urlencoded",
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.JSON.Errors) > 0 {
		return "", fmt.Errorf("reddit: %s", redditErrors(out.JSON.Errors))
	}
	if out.JSON.Data.Name == "" {
		return "", errors.New("reddit: submission returned no post id")
	}
	return out.JSON.Data.Name, nil
}

// redditErrors flattens [["CODE", "message", "field"], ...].
func redditErrors(errs [][]any) string {
	var parts []string
	for _, e := range errs {
		var fields []string
		for _, f := range e {
			if s, ok := f.(string); ok && s != "" {
				fields = append(fields, s)
			}
		}
		parts = append(parts, strings.Join(fields, ": "))
	}
	return strings.Join(parts, "; ")
}
