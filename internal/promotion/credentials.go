package promotion

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Credentials is the shape of the blog's "social" configuration document.
// Each platform has its own credential shape and is decoded on its own, so
// the stage reads the document as a socialDocument.
type Credentials struct {
	Twitter     TwitterCredentials  `json:"twitter"`
	LinkedIn    LinkedInCredentials `json:"linkedin"`
	Facebook    FacebookCredentials `json:"facebook"`
	Reddit      RedditCredentials   `json:"reddit"`
	Medium      MediumCredentials   `json:"medium"`
	Bluesky     BlueskyCredentials  `json:"bluesky"`
	TruthSocial MastodonCredentials `json:"truthsocial"`
	DevTo       DevToCredentials    `json:"devto"`
	Slack       SlackCredentials    `json:"slack"`
}

// TwitterCredentials holds an OAuth 2.0 user-context token.
type TwitterCredentials struct {
	BearerToken string `json:"bearer_token"`
}

// LinkedInCredentials holds a member or organization token and the URN
// posts are authored as.
type LinkedInCredentials struct {
	AccessToken string `json:"access_token"`
	AuthorURN   string `json:"author_urn"`
}

// FacebookCredentials holds a page access token.
type FacebookCredentials struct {
	PageID    string `json:"page_id"`
	PageToken string `json:"page_token"`
}

// RedditCredentials holds script-app credentials and the target subreddit.
type RedditCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Subreddit    string `json:"subreddit"`
}

// MediumCredentials holds an integration token.
type MediumCredentials struct {
	IntegrationToken string `json:"integration_token"`
	UserID           string `json:"user_id"`
}

// BlueskyCredentials holds a handle and app password.
type BlueskyCredentials struct {
	Handle      string `json:"handle"`
	AppPassword string `json:"app_password"`
}

// MastodonCredentials holds an access token for a Mastodon-compatible
// instance such as Truth Social.
type MastodonCredentials struct {
	InstanceURL string `json:"instance_url"`
	AccessToken string `json:"access_token"`
}

// DevToCredentials holds a DEV Community API key.
type DevToCredentials struct {
	APIKey string `json:"api_key"`
}

// SlackCredentials holds a bot token and the channel to post in.
type SlackCredentials struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// Platform names as stored in blog social settings.
const (
	PlatformTwitter     = "twitter"
	PlatformLinkedIn    = "linkedin"
	PlatformFacebook    = "facebook"
	PlatformReddit      = "reddit"
	PlatformMedium      = "medium"
	PlatformBluesky     = "bluesky"
	PlatformTruthSocial = "truthsocial"
	PlatformDevTo       = "devto"
	PlatformSlack       = "slack"
)

var platformAliases = map[string]string{
	"x":            PlatformTwitter,
	"truth_social": PlatformTruthSocial,
	"truth-social": PlatformTruthSocial,
	"dev.to":       PlatformDevTo,
	"dev_to":       PlatformDevTo,
}

// CanonicalPlatform normalizes a configured platform name.
func CanonicalPlatform(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := platformAliases[name]; ok {
		return alias
	}
	return name
}

// socialDocument is the "social" configuration document with each platform
// section left undecoded.
type socialDocument map[string]json.RawMessage

// credentialsFor decodes platform's section of doc. The canonical key wins;
// otherwise the first alias key in sorted order is used. A missing section
// yields zero credentials.
func credentialsFor[T any](doc socialDocument, platform string) (T, error) {
	var creds T
	raw, ok := doc[platform]
	if !ok {
		for _, key := range slices.Sorted(maps.Keys(doc)) {
			if CanonicalPlatform(key) == platform {
				raw, ok = doc[key], true
				break
			}
		}
	}
	if !ok {
		return creds, nil
	}
	if err := json.Unmarshal(raw, &creds); err != nil {
		return creds, fmt.Errorf("%s: malformed credentials: %w", platform, err)
	}
	return creds, nil
}

func missing(platform string, fields ...string) error {
	return fmt.Errorf("%s: %w (%s)", platform, ErrMissingCredentials, strings.Join(fields, ", "))
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
