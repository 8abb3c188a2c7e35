// Package channels defines the delivery contract shared by the email, SMS
// and chat connectors.
package channels

import (
	"context"

	"gaia-notifier/internal/models"
)

// Message is one rendered notification ready for delivery.
type Message struct {
	Subject     string
	Body        string
	HTML        bool
	Attachments []string
}

// Connector delivers a rendered message to one recipient.
type Connector interface {
	Channel() models.Channel
	Name() string
	Send(ctx context.Context, recipient *models.GaiaUser, msg Message) error
}
