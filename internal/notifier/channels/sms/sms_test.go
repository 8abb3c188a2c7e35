package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
)

type mockSNS struct {
	publish func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.publish(ctx, params, optFns...)
}

func TestSend_PublishesToPhoneNumber(t *testing.T) {
	var captured *sns.PublishInput
	client := &mockSNS{
		publish: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}

	conn := New(&models.SMSConnector{Name: "default", SenderID: "GAIA"}, client, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1", PhoneNumber: "+15550100"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "Session tomorrow at 9am"})
	assert.NoError(t, err)
	assert.Equal(t, "+15550100", *captured.PhoneNumber)
	assert.Equal(t, "Session tomorrow at 9am", *captured.Message)
	assert.Equal(t, "GAIA", *captured.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
}

func TestSend_NoSenderIDOmitsAttributes(t *testing.T) {
	var captured *sns.PublishInput
	client := &mockSNS{
		publish: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			captured = params
			return &sns.PublishOutput{}, nil
		},
	}

	conn := New(&models.SMSConnector{Name: "plain"}, client, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1", PhoneNumber: "+15550100"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "hi"})
	assert.NoError(t, err)
	assert.Nil(t, captured.MessageAttributes)
}

func TestSend_MissingPhoneNumber(t *testing.T) {
	conn := New(&models.SMSConnector{Name: "default"}, &mockSNS{}, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "hi"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChannelAddressMissing))
}

func TestSend_PublishFailure(t *testing.T) {
	client := &mockSNS{
		publish: func(_ context.Context, _ *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, errors.New("rate exceeded")
		},
	}
	conn := New(&models.SMSConnector{Name: "default"}, client, logger.NewNoOpLogger())
	user := &models.GaiaUser{ID: "u1", PhoneNumber: "+15550100"}

	err := conn.Send(context.Background(), user, channels.Message{Body: "hi"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChannelSendFailed))
}
