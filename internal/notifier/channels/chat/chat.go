// Package chat delivers rendered messages over Slack, either to a fixed
// channel or directly to the recipient's handle.
package chat

import (
	"context"

	"github.com/slack-go/slack"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
)

// SlackAPI is the slice of the Slack client the connector needs, mockable in tests.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

type Connector struct {
	cfg    *models.ChatConnector
	client SlackAPI
	log    logger.Logger
}

func New(cfg *models.ChatConnector, client SlackAPI, log logger.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		client: client,
		log:    log.WithFields(map[string]interface{}{"channel": "chat", "connector": cfg.Name}),
	}
}

func (c *Connector) Channel() models.Channel { return models.ChannelChat }

func (c *Connector) Name() string { return c.cfg.Name }

func (c *Connector) Send(ctx context.Context, recipient *models.GaiaUser, msg channels.Message) error {
	target := c.cfg.Channel
	if c.cfg.DirectToUser {
		if recipient.SlackHandle == "" {
			return stderrors.NewChannelAddressMissingError("chat", recipient.ID)
		}
		target = recipient.SlackHandle
	}
	if target == "" {
		return stderrors.NewConfigurationInvalidError(
			"chat connector " + c.cfg.Name + " has neither a channel nor direct delivery configured")
	}

	_, _, err := c.client.PostMessageContext(ctx, target, slack.MsgOptionText(msg.Body, false))
	if err != nil {
		return stderrors.NewChannelSendFailedError("chat", err)
	}

	c.log.Info("chat message sent", map[string]interface{}{
		"recipientId": recipient.ID,
		"target":      target,
	})
	return nil
}
