// Package orchestrator runs the bounded think/act/observe exchange between the completion
// service and the declared tools.
package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"shopping-assistant/internal/assistant/completion"
)

// State is the terminal state of a session.
type State string

const (
	StateNone      State = "none"
	StateAnswered  State = "answered"
	StateExhausted State = "exhausted"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed-out"
)

// Step is one act/observe pair.
type Step struct {
	Tool        string `json:"tool"`
	Arguments   string `json:"arguments"`
	Observation string `json:"observation"`
}

// Session is the state of one request's exchange. It is owned by a single goroutine and
// discarded when the request ends.
type Session struct {
	ID         string
	Input      string
	Iterations int
	Malformed  int
	Transcript []completion.Message
	Steps      []Step
	State      State
	Answer     string
	Err        error
	StartedAt  time.Time
}

func newSession(input string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Input:     input,
		State:     StateNone,
		StartedAt: time.Now(),
	}
}

func (s *Session) append(m completion.Message) {
	s.Transcript = append(s.Transcript, m)
}

func (s *Session) finish(state State, err error) *Session {
	s.State = state
	s.Err = err
	return s
}

// Terminal reports whether the session reached a terminal state.
func (s *Session) Terminal() bool {
	return s.State != StateNone
}
