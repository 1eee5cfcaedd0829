package promotion

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/quill/internal/models"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
)

// Endpoints are the API base URLs for each platform. Zero fields use the
// public production endpoints.
type Endpoints struct {
	Twitter    string
	LinkedIn   string
	Facebook   string
	RedditAuth string
	RedditAPI  string
	Medium     string
	Bluesky    string
	DevTo      string
	Slack      string // must end in "/"
}

var defaultEndpoints = Endpoints{
	Twitter:    "https://api.twitter.com",
	LinkedIn:   "https://api.linkedin.com",
	Facebook:   "https://graph.facebook.com/v19.0",
	RedditAuth: "https://www.reddit.com",
	RedditAPI:  "https://oauth.reddit.com",
	Medium:     "https://api.medium.com",
	Bluesky:    "https://bsky.social",
	DevTo:      "https://dev.to",
}

const defaultTruthSocialURL = "https://truthsocial.com"

func (e Endpoints) withDefaults() Endpoints {
	pick := func(v, d string) string {
		if v != "" {
			return strings.TrimRight(v, "/")
		}
		return d
	}
	return Endpoints{
		Twitter:    pick(e.Twitter, defaultEndpoints.Twitter),
		LinkedIn:   pick(e.LinkedIn, defaultEndpoints.LinkedIn),
		Facebook:   pick(e.Facebook, defaultEndpoints.Facebook),
		RedditAuth: pick(e.RedditAuth, defaultEndpoints.RedditAuth),
		RedditAPI:  pick(e.RedditAPI, defaultEndpoints.RedditAPI),
		Medium:     pick(e.Medium, defaultEndpoints.Medium),
		Bluesky:    pick(e.Bluesky, defaultEndpoints.Bluesky),
		DevTo:      pick(e.DevTo, defaultEndpoints.DevTo),
		Slack:      e.Slack,
	}
}

// ConfigLoader reads a blog's JSON configuration documents.
type ConfigLoader interface {
	LoadConfigInto(ctx context.Context, blogID int64, name string, dest any) (bool, error)
}

// Stage is the promotion stage of a run.
type Stage struct {
	configs     ConfigLoader
	client      *http.Client
	endpoints   Endpoints
	concurrency int
	now         func() time.Time
}

// Option configures a Stage.
type Option func(*Stage)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Stage) { s.client = c }
}

// WithEndpoints overrides platform API base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(s *Stage) { s.endpoints = e.withDefaults() }
}

// WithConcurrency bounds how many platforms are posted to at once.
func WithConcurrency(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewStage creates a promotion stage reading credentials through configs.
func NewStage(configs ConfigLoader, opts ...Option) *Stage {
	s := &Stage{
		configs:     configs,
		client:      &http.Client{Timeout: defaultTimeout},
		endpoints:   defaultEndpoints,
		concurrency: defaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Promote announces a published post on every platform enabled for the
// blog. Platforms are independent: each outcome is recorded and one
// failure never stops the others. A blog with promotion disabled, or no
// platforms, is skipped. Only a failure to read the credentials document
// is returned as an error; a malformed entry for one platform fails that
// platform alone.
func (s *Stage) Promote(ctx context.Context, blog *models.Blog, draft *models.ContentDraft, published *models.PublishResult) (*models.PromotionResult, error) {
	names := enabledPlatforms(blog.Social)
	if len(names) == 0 {
		slog.Info("promotion skipped", "blog_id", blog.ID)
		return &models.PromotionResult{Status: models.PromotionSkipped, Platforms: []models.PlatformResult{}}, nil
	}

	var doc socialDocument
	if _, err := s.configs.LoadConfigInto(ctx, blog.ID, models.ConfigSocial, &doc); err != nil {
		return nil, fmt.Errorf("loading social credentials: %w", err)
	}

	a := Announcement{
		Title:    draft.Title,
		Summary:  draft.Summary,
		URL:      published.PostURL,
		Tags:     published.Tags,
		Hashtags: blog.Social.Hashtags,
		Body:     draft.Body,
	}

	results := make([]models.PlatformResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, name := range names {
		g.Go(func() error {
			results[i] = s.postTo(gctx, name, doc, a)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	status := models.AggregatePromotion(results)
	slog.Info("promotion complete", "blog_id", blog.ID, "status", status, "platforms", len(results))
	return &models.PromotionResult{Status: status, Platforms: results}, nil
}

func (s *Stage) postTo(ctx context.Context, name string, doc socialDocument, a Announcement) models.PlatformResult {
	result := models.PlatformResult{Platform: name}

	platform, err := s.platform(name, doc)
	if err == nil {
		result.PostID, err = platform.Post(ctx, a)
	}
	if err != nil {
		result.Error = err.Error()
		slog.Warn("promotion failed", "platform", name, "error", err)
		return result
	}

	result.Success = true
	slog.Debug("promoted", "platform", name, "post_id", result.PostID)
	return result
}

// platform builds the client for name from its section of doc, checking
// its credentials.
func (s *Stage) platform(name string, doc socialDocument) (Platform, error) {
	e := s.endpoints
	switch name {
	case PlatformTwitter:
		c, err := credentialsFor[TwitterCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.BearerToken) {
			return nil, missing(name, "bearer_token")
		}
		return &twitter{client: s.client, base: e.Twitter, creds: c}, nil
	case PlatformLinkedIn:
		c, err := credentialsFor[LinkedInCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.AccessToken, c.AuthorURN) {
			return nil, missing(name, "access_token", "author_urn")
		}
		return &linkedIn{client: s.client, base: e.LinkedIn, creds: c}, nil
	case PlatformFacebook:
		c, err := credentialsFor[FacebookCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.PageID, c.PageToken) {
			return nil, missing(name, "page_id", "page_token")
		}
		return &facebook{client: s.client, base: e.Facebook, creds: c}, nil
	case PlatformReddit:
		c, err := credentialsFor[RedditCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.ClientID, c.ClientSecret, c.Username, c.Password, c.Subreddit) {
			return nil, missing(name, "client_id", "client_secret", "username", "password", "subreddit")
		}
		return &reddit{client: s.client, authURL: e.RedditAuth, apiURL: e.RedditAPI, creds: c}, nil
	case PlatformMedium:
		c, err := credentialsFor[MediumCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.IntegrationToken, c.UserID) {
			return nil, missing(name, "integration_token", "user_id")
		}
		return &medium{client: s.client, base: e.Medium, creds: c}, nil
	case PlatformBluesky:
		c, err := credentialsFor[BlueskyCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.Handle, c.AppPassword) {
			return nil, missing(name, "handle", "app_password")
		}
		return &bluesky{client: s.client, base: e.Bluesky, creds: c, now: s.now}, nil
	case PlatformTruthSocial:
		c, err := credentialsFor[MastodonCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.AccessToken) {
			return nil, missing(name, "access_token")
		}
		if blank(c.InstanceURL) {
			c.InstanceURL = defaultTruthSocialURL
		}
		return &mastodon{client: s.client, name: name, creds: c}, nil
	case PlatformDevTo:
		c, err := credentialsFor[DevToCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.APIKey) {
			return nil, missing(name, "api_key")
		}
		return &devTo{client: s.client, base: e.DevTo, creds: c}, nil
	case PlatformSlack:
		c, err := credentialsFor[SlackCredentials](doc, name)
		if err != nil {
			return nil, err
		}
		if blank(c.BotToken, c.Channel) {
			return nil, missing(name, "bot_token", "channel")
		}
		return newSlackChannel(c, s.client, e.Slack), nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", name)
	}
}

// enabledPlatforms returns the canonical, de-duplicated platform list, or
// nil when promotion is off.
func enabledPlatforms(settings models.SocialSettings) []string {
	if !settings.Enabled {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, p := range settings.Platforms {
		name := CanonicalPlatform(p)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
