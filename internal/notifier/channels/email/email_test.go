package email

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"

	stderrors "gaia-notifier/internal/common/errors"
	"gaia-notifier/internal/common/logger"
	"gaia-notifier/internal/models"
	"gaia-notifier/internal/notifier/channels"
)

type mockSES struct {
	sendRawEmail func(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

func (m *mockSES) SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
	return m.sendRawEmail(ctx, params, optFns...)
}

func recipient() *models.GaiaUser {
	return &models.GaiaUser{ID: "u1", FirstName: "Ada", Email: "ada@example.com"}
}

func TestSend_PlainText(t *testing.T) {
	var captured *ses.SendRawEmailInput
	client := &mockSES{
		sendRawEmail: func(_ context.Context, params *ses.SendRawEmailInput, _ ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
			captured = params
			return &ses.SendRawEmailOutput{}, nil
		},
	}

	cfg := &models.EmailConnector{Name: "default", FromEmail: "noreply@example.com"}
	conn := New(cfg, client, logger.NewNoOpLogger())

	err := conn.Send(context.Background(), recipient(), channels.Message{
		Subject: "Your session",
		Body:    "See you tomorrow.",
	})
	assert.NoError(t, err)
	assert.NotNil(t, captured)
	assert.Equal(t, "noreply@example.com", *captured.Source)
	assert.Equal(t, []string{"ada@example.com"}, captured.Destinations)

	raw := string(captured.RawMessage.Data)
	assert.Contains(t, raw, "Subject: Your session")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "See you tomorrow.")
}

func TestSend_HTMLWithLogoAndAttachment(t *testing.T) {
	dir := t.TempDir()
	logo := filepath.Join(dir, "logo.png")
	attachment := filepath.Join(dir, "schedule.pdf")
	assert.NoError(t, os.WriteFile(logo, []byte("png-bytes"), 0o644))
	assert.NoError(t, os.WriteFile(attachment, []byte("pdf-bytes"), 0o644))

	var captured *ses.SendRawEmailInput
	client := &mockSES{
		sendRawEmail: func(_ context.Context, params *ses.SendRawEmailInput, _ ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
			captured = params
			return &ses.SendRawEmailOutput{}, nil
		},
	}

	cfg := &models.EmailConnector{
		Name:      "branded",
		FromEmail: "noreply@example.com",
		LogoPath:  logo,
	}
	conn := New(cfg, client, logger.NewNoOpLogger())

	err := conn.Send(context.Background(), recipient(), channels.Message{
		Subject:     "Photos ready",
		Body:        "<h1>Photos ready</h1>",
		HTML:        true,
		Attachments: []string{attachment},
	})
	assert.NoError(t, err)

	raw := string(captured.RawMessage.Data)
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "logo.png")
	assert.Contains(t, raw, "schedule.pdf")
	assert.True(t, strings.Contains(raw, "Content-Disposition: inline") ||
		strings.Contains(raw, "Content-ID"), "logo must be embedded inline")
}

func TestSend_MissingAddress(t *testing.T) {
	conn := New(&models.EmailConnector{Name: "default", FromEmail: "noreply@example.com"},
		&mockSES{}, logger.NewNoOpLogger())

	user := recipient()
	user.Email = ""
	err := conn.Send(context.Background(), user, channels.Message{Subject: "x", Body: "y"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChannelAddressMissing))
}

func TestSend_DeliveryFailure(t *testing.T) {
	client := &mockSES{
		sendRawEmail: func(_ context.Context, _ *ses.SendRawEmailInput, _ ...func(*ses.Options)) (*ses.SendRawEmailOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	conn := New(&models.EmailConnector{Name: "default", FromEmail: "noreply@example.com"},
		client, logger.NewNoOpLogger())

	err := conn.Send(context.Background(), recipient(), channels.Message{Subject: "x", Body: "y"})
	assert.Error(t, err)
	assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeChannelSendFailed))
}
