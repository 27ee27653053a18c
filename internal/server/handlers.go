// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"shopping-assistant/internal/assistant"
)

const askSchema = `{
	"type": "object",
	"properties": {
		"input": {"type": ["string", "null"]}
	}
}`

type askRequest struct {
	Input string `json:"input"`
}

type answerBody struct {
	Response string `json:"response"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "Request body is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Request body could not be read"})
		return
	}

	var req askRequest
	if len(body) > 0 {
		if result := s.askSchema.ValidateJSON(body); !result.Valid {
			s.logger.Debug("Rejected ask body", map[string]interface{}{"errors": result.Summary()})
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body: " + result.Summary()})
			return
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
			return
		}
	}

	reply, err := s.asker.Ask(r.Context(), req.Input)
	if reply.SessionID != "" {
		w.Header().Set("X-Session-ID", reply.SessionID)
	}
	if err != nil {
		outcome := assistant.OutcomeOf(err)
		writeJSON(w, statusFor(outcome), errorBody{Error: assistant.Message(outcome)})
		return
	}
	writeJSON(w, http.StatusOK, answerBody{Response: reply.Response})
}

func statusFor(o assistant.Outcome) int {
	switch o {
	case assistant.OutcomeRejected:
		return http.StatusBadRequest
	case assistant.OutcomeTimedOut:
		return http.StatusGatewayTimeout
	case assistant.OutcomeExhausted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn("Catalog backend not ready", map[string]interface{}{"error": err.Error()})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
