// Package sms delivers rendered messages to phone numbers through SNS.
package sms

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
)

// SNSAPI is the slice of the SNS client the connector needs, mockable in tests.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Connector struct {
	cfg    *models.SMSConnector
	client SNSAPI
	log    logger.Logger
}

func New(cfg *models.SMSConnector, client SNSAPI, log logger.Logger) *Connector {
	return &Connector{
		cfg:    cfg,
		client: client,
		log:    log.WithFields(map[string]interface{}{"channel": "sms", "connector": cfg.Name}),
	}
}

func (c *Connector) Channel() models.Channel { return models.ChannelSMS }

func (c *Connector) Name() string { return c.cfg.Name }

func (c *Connector) Send(ctx context.Context, recipient *models.GaiaUser, msg channels.Message) error {
	if recipient.PhoneNumber == "" {
		return stderrors.NewChannelAddressMissingError("sms", recipient.ID)
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(recipient.PhoneNumber),
		Message:     aws.String(msg.Body),
	}
	if c.cfg.SenderID != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(c.cfg.SenderID),
			},
		}
	}

	if _, err := c.client.Publish(ctx, input); err != nil {
		return stderrors.NewChannelSendFailedError("sms", err)
	}

	c.log.Info("sms sent", map[string]interface{}{
		"recipientId": recipient.ID,
	})
	return nil
}
