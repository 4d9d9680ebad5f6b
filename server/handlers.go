package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	liveagent "github.com/ternlabs/liveagent"
)

// askRequest is the body of POST /api/v1/ask.
type askRequest struct {
	Question string `json:"question"`
}

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Question == "" {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "question is required")
		return
	}

	answer, err := s.agent.Ask(r.Context(), req.Question)
	if err != nil {
		code := liveagent.CodeOf(err)
		s.logger.Error("ask failed",
			slog.String("requestId", requestIDFrom(r.Context())),
			slog.String("code", string(code)),
			slog.String("error", err.Error()),
		)
		s.writeError(w, r, statusForCode(code), string(code), publicMessage(code))
		return
	}

	s.writeJSON(w, http.StatusOK, answer)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	states := s.connectors.HealthCheckAll(r.Context())

	overall := "ok"
	status := http.StatusOK
	for _, state := range states {
		if state == liveagent.HealthUnreachable {
			overall = "degraded"
			status = http.StatusServiceUnavailable
			break
		}
		if state == liveagent.HealthDegraded {
			overall = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	s.writeJSON(w, status, map[string]any{
		"status":     overall,
		"connectors": states,
	})
}

func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	conv, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("loading conversation failed",
			slog.String("conversation", id),
			slog.String("error", err.Error()),
		)
		s.writeError(w, r, http.StatusInternalServerError, "internal", "failed to load conversation")
		return
	}
	if conv == nil {
		s.writeError(w, r, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var resp errorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	s.writeJSON(w, status, resp)
}

// statusForCode maps agent error codes onto HTTP statuses. Failures of
// the model or a backing store are upstream problems, not client ones.
func statusForCode(code liveagent.ErrorCode) int {
	switch code {
	case liveagent.ErrCodeUnknownTool,
		liveagent.ErrCodeInvalidArguments,
		liveagent.ErrCodeUnsafeQuery:
		return http.StatusUnprocessableEntity
	case liveagent.ErrCodeUnknownConnector:
		return http.StatusInternalServerError
	case liveagent.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case liveagent.ErrCodeConnection,
		liveagent.ErrCodeModel:
		return http.StatusBadGateway
	case liveagent.ErrCodeResultTooLarge,
		liveagent.ErrCodeQueryExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage keeps upstream error detail out of client responses.
func publicMessage(code liveagent.ErrorCode) string {
	switch code {
	case liveagent.ErrCodeTimeout:
		return "the request timed out"
	case liveagent.ErrCodeConnection:
		return "a data source is unavailable"
	case liveagent.ErrCodeModel:
		return "the language model is unavailable"
	case liveagent.ErrCodeResultTooLarge:
		return "a query returned too much data"
	case liveagent.ErrCodeUnsafeQuery:
		return "a query was rejected by the safety checks"
	default:
		return "the request could not be completed"
	}
}
