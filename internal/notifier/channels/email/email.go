// Package email delivers MIME mail through SES. The message body is built
// with go-mail (HTML with an inline logo, or plain text) and handed to SES as
// a raw message so attachments survive.
package email

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	mail "github.com/go-mail/mail/v2"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
)

// SESAPI is the slice of the SES client the connector needs, mockable in tests.
type SESAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

type Connector struct {
	cfg    *models.EmailConnector
	client SESAPI
	log    logger.Logger
}

func New(cfg *models.EmailConnector, client SESAPI, log logger.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		client: client,
		log:    log.WithFields(map[string]interface{}{"channel": "email", "connector": cfg.Name}),
	}
}

func (c *Connector) Channel() models.Channel { return models.ChannelEmail }

func (c *Connector) Name() string { return c.cfg.Name }

func (c *Connector) Send(ctx context.Context, recipient *models.GaiaUser, msg channels.Message) error {
	if recipient.Email == "" {
		return stderrors.NewChannelAddressMissingError("email", recipient.ID)
	}

	raw, err := c.buildMIME(recipient.Email, msg)
	if err != nil {
		return err
	}

	_, err = c.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage:   &types.RawMessage{Data: raw},
		Source:       aws.String(c.cfg.FromEmail),
		Destinations: []string{recipient.Email},
	})
	if err != nil {
		return stderrors.NewChannelSendFailedError("email", err)
	}

	c.log.Info("email sent", map[string]interface{}{
		"recipientId": recipient.ID,
		"subject":     msg.Subject,
	})
	return nil
}

// buildMIME assembles the message: HTML bodies get the configured logo
// embedded inline, plain bodies go out as text. Attachments from the
// connector config and the message are both carried.
func (c *Connector) buildMIME(to string, msg channels.Message) ([]byte, error) {
	m := mail.NewMessage()
	m.SetHeader("From", c.cfg.FromEmail)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)

	if msg.HTML {
		m.SetBody("text/html", msg.Body)
		if c.cfg.LogoPath != "" {
			m.Embed(c.cfg.LogoPath)
		}
	} else {
		m.SetBody("text/plain", msg.Body)
	}

	for _, path := range c.cfg.Attachments {
		m.Attach(path)
	}
	for _, path := range msg.Attachments {
		m.Attach(path)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, stderrors.NewChannelSendFailedError("email", err)
	}
	return buf.Bytes(), nil
}
