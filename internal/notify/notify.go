// Package notify delivers batch results to a chat channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// ErrNoToken is returned when a Slack notifier is built without a token.
var ErrNoToken = errors.New("notify: slack token is required")

// Delivery confirms a posted message.
type Delivery struct {
	Channel   string
	Timestamp string
}

// Notifier posts a message to a channel.
type Notifier interface {
	Post(ctx context.Context, channel, text string) (Delivery, error)
}

// NopNotifier discards messages.
type NopNotifier struct{}

// Post implements Notifier.
func (NopNotifier) Post(_ context.Context, channel, _ string) (Delivery, error) {
	return Delivery{Channel: channel}, nil
}

// SlackNotifier posts through the Slack Web API (chat.postMessage).
type SlackNotifier struct {
	client *slack.Client
	logger *zap.Logger
}

// SlackConfig configures SlackNotifier.
type SlackConfig struct {
	Token string
	// APIURL overrides the Slack API base URL.
	APIURL string
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(cfg SlackConfig, logger *zap.Logger) (*SlackNotifier, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []slack.Option
	if cfg.APIURL != "" {
		u := cfg.APIURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		opts = append(opts, slack.OptionAPIURL(u))
	}
	return &SlackNotifier{
		client: slack.New(cfg.Token, opts...),
		logger: logger,
	}, nil
}

// Post sends text to channel unescaped, so markdown code fences render.
func (n *SlackNotifier) Post(ctx context.Context, channel, text string) (Delivery, error) {
	ch, ts, err := n.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return Delivery{}, fmt.Errorf("posting to %s: %w", channel, err)
	}
	n.logger.Info("message posted",
		zap.String("channel", ch),
		zap.String("ts", ts))
	return Delivery{Channel: ch, Timestamp: ts}, nil
}
