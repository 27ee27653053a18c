// internal/workers/shopping/ask-assistant/models.go
package askassistant

type Input struct {
	Input string `json:"input"`
}

type Output struct {
	Response   string `json:"response"`
	SessionID  string `json:"sessionId"`
	Path       string `json:"path"`
	Outcome    string `json:"outcome"`
	Iterations int    `json:"iterations"`
	Fallback   bool   `json:"fallback"`
}

const inputSchema = `{
	"type": "object",
	"properties": {
		"input": {"type": ["string", "null"]}
	}
}`
