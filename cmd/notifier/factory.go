package main

import (
	"github.com/slack-go/slack"

	"gaia-notifier/internal/common/aws"
	"gaia-notifier/internal/common/config"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
	"gaia-notifier/internal/notifier/channels/chat"
	"gaia-notifier/internal/notifier/channels/email"
	"gaia-notifier/internal/notifier/channels/sms"
)

// connectorFactory builds channel connectors for one schedule from its
// connector rows, filling gaps with the configured channel defaults.
type connectorFactory struct {
	cfg   *config.Config
	ses   *aws.SESClient
	sns   *aws.SNSClient
	slack *slack.Client
	log   logger.Logger
}

func (f *connectorFactory) ForSchedule(s *models.Schedule) []channels.Connector {
	var conns []channels.Connector

	if s.EmailConnector != nil && f.cfg.Channels.Email.Enabled && f.ses != nil {
		ec := *s.EmailConnector
		if ec.FromEmail == "" {
			ec.FromEmail = f.cfg.Channels.Email.FromEmail
		}
		if ec.LogoPath == "" {
			ec.LogoPath = f.cfg.Channels.Email.LogoPath
		}
		conns = append(conns, email.New(&ec, f.ses, f.log))
	}

	if s.SMSConnector != nil && f.cfg.Channels.SMS.Enabled && f.sns != nil {
		sc := *s.SMSConnector
		if sc.SenderID == "" {
			sc.SenderID = f.cfg.Channels.SMS.SenderID
		}
		conns = append(conns, sms.New(&sc, f.sns, f.log))
	}

	if s.ChatConnector != nil && f.cfg.Channels.Chat.Enabled && f.slack != nil {
		cc := *s.ChatConnector
		if cc.Channel == "" && !cc.DirectToUser {
			cc.Channel = f.cfg.Channels.Chat.Channel
			cc.DirectToUser = f.cfg.Channels.Chat.DirectToUser
		}
		conns = append(conns, chat.New(&cc, f.slack, f.log))
	}

	return conns
}
