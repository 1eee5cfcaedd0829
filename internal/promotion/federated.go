package promotion

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	blueskyLimit  = 300
	mastodonLimit = 500
)

type bluesky struct {
	client *http.Client
	base   string
	creds  BlueskyCredentials
	now    func() time.Time
}

func (p *bluesky) Name() string { return PlatformBluesky }

// Post opens a session with the app password and creates a feed post with
// a link card.
func (p *bluesky) Post(ctx context.Context, a Announcement) (string, error) {
	var session struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: PlatformBluesky,
		url:      p.base + "/xrpc/com.atproto.server.createSession",
		body: map[string]string{
			"identifier": p.creds.Handle,
			"password":   p.creds.AppPassword,
		},
	}, &session)
	if err != nil {
		return "", err
	}

	var out struct {
		URI string `json:"uri"`
	}
	err = doJSON(ctx, p.client, apiCall{
		platform: PlatformBluesky,
		url:      p.base + "/xrpc/com.atproto.repo.createRecord",
		headers:  bearer(session.AccessJwt),
		body: map[string]any{
			"repo":       session.DID,
			"collection": "app.bsky.feed.post",
			"record": map[string]any{
				"$type":     "app.bsky.feed.post",
				"text":      a.Text(blueskyLimit),
				"createdAt": p.now().UTC().Format(time.RFC3339),
				"embed": map[string]any{
					"$type": "app.bsky.embed.external",
					"external": map[string]string{
						"uri":         a.URL,
						"title":       a.Title,
						"description": a.Summary,
					},
				},
			},
		},
	}, &out)
	return out.URI, err
}

// mastodon posts a status to a Mastodon-compatible server. Truth Social
// runs this API.
type mastodon struct {
	client *http.Client
	name   string
	creds  MastodonCredentials
}

func (p *mastodon) Name() string { return p.name }

func (p *mastodon) Post(ctx context.Context, a Announcement) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := doJSON(ctx, p.client, apiCall{
		platform: p.name,
		url:      strings.TrimRight(p.creds.InstanceURL, "/") + "/api/v1/statuses",
		headers:  bearer(p.creds.AccessToken),
		body: map[string]string{
			"status":     a.Text(mastodonLimit),
			"visibility": "public",
		},
	}, &out)
	return out.ID, err
}
