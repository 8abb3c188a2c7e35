package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
)

type mockSlack struct {
	postMessage func(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

func (m *mockSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	return m.postMessage(ctx, channelID, options...)
}

func TestSend_FixedChannel(t *testing.T) {
	var target string
	client := &mockSlack{
		postMessage: func(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
			target = channelID
			return channelID, "ts", nil
		},
	}

	conn := New(&models.ChatConnector{Name: "ops", Channel: "#photo-ops"}, client, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1", SlackHandle: "@ada"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "photos ready"})
	assert.NoError(t, err)
	assert.Equal(t, "#photo-ops", target)
}

func TestSend_DirectToUser(t *testing.T) {
	var target string
	client := &mockSlack{
		postMessage: func(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
			target = channelID
			return channelID, "ts", nil
		},
	}

	conn := New(&models.ChatConnector{Name: "dm", DirectToUser: true}, client, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1", SlackHandle: "@ada"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "photos ready"})
	assert.NoError(t, err)
	assert.Equal(t, "@ada", target)
}

func TestSend_DirectToUserWithoutHandle(t *testing.T) {
	conn := New(&models.ChatConnector{Name: "dm", DirectToUser: true}, &mockSlack{}, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "hi"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChannelAddressMissing))
}

func TestSend_NoTargetConfigured(t *testing.T) {
	conn := New(&models.ChatConnector{Name: "broken"}, &mockSlack{}, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1", SlackHandle: "@ada"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "hi"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeConfigurationInvalid))
}

func TestSend_PostFailure(t *testing.T) {
	client := &mockSlack{
		postMessage: func(_ context.Context, _ string, _ ...slack.MsgOption) (string, string, error) {
			return "", "", errors.New("channel_not_found")
		},
	}
	conn := New(&models.ChatConnector{Name: "ops", Channel: "#gone"}, client, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "hi"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChannelSendFailed))
}
