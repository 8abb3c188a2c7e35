// internal/models/connectors.go
package models

// EmailConnector holds the sender identity and optional inline resources for
// the email channel.
type EmailConnector struct {
	Name        string   `json:"name"`
	FromEmail   string   `json:"fromEmail"`
	LogoPath    string   `json:"logoPath,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// SMSConnector holds the sender identity for the SMS channel.
type SMSConnector struct {
	Name     string `json:"name"`
	SenderID string `json:"senderId,omitempty"`
}

// ChatConnector targets either a fixed channel or the recipient's own handle.
type ChatConnector struct {
	Name         string `json:"name"`
	Channel      string `json:"channel,omitempty"`
	DirectToUser bool   `json:"directToUser"`
}
