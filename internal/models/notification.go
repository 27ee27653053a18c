// internal/models/notification.go
package models

// Notification records one delivery of an assistant reply.
type Notification struct {
	ID        string `json:"notificationId"`
	SessionID string `json:"sessionId,omitempty"`
	Channel   string `json:"channel"` // "email", "sms"
	Recipient string `json:"recipient"`
	Status    string `json:"status"` // "sent", "disabled"
	MessageID string `json:"messageId,omitempty"`
	SentAt    string `json:"sentAt,omitempty"` // ISO 8601
}

// Delivery channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Statuses
const (
	NotificationSent     = "sent"
	NotificationDisabled = "disabled"
)
