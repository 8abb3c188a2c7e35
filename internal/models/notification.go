// internal/models/notification.go
package models

import "time"

// Channel identifies a delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelChat  Channel = "chat"
)

// Notification is the immutable audit record written once per successful
// per-recipient delivery. ScheduleID is empty for manual sends.
type Notification struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"templateId"`
	ScheduleID  string    `json:"scheduleId,omitempty"`
	RecipientID string    `json:"recipientId"`
	Channel     Channel   `json:"channel"`
	Connector   string    `json:"connector"`
	CreatedAt   time.Time `json:"createdAt"`
}
