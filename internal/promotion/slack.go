package promotion

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// slackChannel announces posts in a Slack channel through a bot token.
type slackChannel struct {
	api     *slack.Client
	channel string
}

func newSlackChannel(creds SlackCredentials, client *http.Client, apiURL string) *slackChannel {
	opts := []slack.Option{slack.OptionHTTPClient(client)}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return &slackChannel{
		api:     slack.New(creds.BotToken, opts...),
		channel: creds.Channel,
	}
}

func (p *slackChannel) Name() string { return PlatformSlack }

func (p *slackChannel) Post(ctx context.Context, a Announcement) (string, error) {
	text := fmt.Sprintf("*<%s|%s>*", a.URL, a.Title)
	if a.Summary != "" {
		text += "\n" + a.Summary
	}
	_, ts, err := p.api.PostMessageContext(ctx, p.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack: %w", err)
	}
	return ts, nil
}
