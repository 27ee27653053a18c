// internal/workers/shopping/notify-reply/models.go
package notifyreply

import "shopping-assistant/internal/models"

type Input struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject,omitempty"`
	Response  string `json:"response"`
	SessionID string `json:"sessionId,omitempty"`
}

type Output = models.Notification

// maxSMSLength is the SNS limit for a single SMS publish.
const maxSMSLength = 1600

const inputSchema = `{
	"type": "object",
	"required": ["channel", "recipient", "response"],
	"properties": {
		"channel":   {"type": "string"},
		"recipient": {"type": "string", "minLength": 1},
		"subject":   {"type": "string"},
		"response":  {"type": "string", "minLength": 1},
		"sessionId": {"type": "string"}
	}
}`
