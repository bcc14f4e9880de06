package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// SessionHandler exposes the non-realtime session endpoints: creation and
// listing. Everything in-game goes over the websocket.
type SessionHandler struct {
	service *app.SessionService
}

func NewSessionHandler(service *app.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	QuizID       string `json:"quizId"`
	AutoStartNum int    `json:"autoStartNum"`
}

type createSessionResponse struct {
	SessionID int64 `json:"sessionId"`
}

type listSessionsResponse struct {
	ActiveSessions   []int64 `json:"activeSessions"`
	InactiveSessions []int64 `json:"inactiveSessions"`
}

// ServeSessions handles POST (create) and GET (list) on /sessions.
func (h *SessionHandler) ServeSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sessionID, err := h.service.CreateSession(r.Context(), req.QuizID, req.AutoStartNum)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, createSessionResponse{SessionID: sessionID})
	case http.MethodGet:
		quizID := r.URL.Query().Get("quizId")
		if quizID == "" {
			writeError(w, http.StatusBadRequest, "missing quizId")
			return
		}
		active, inactive, err := h.service.ListSessions(r.Context(), quizID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if active == nil {
			active = []int64{}
		}
		if inactive == nil {
			inactive = []int64{}
		}
		writeJSON(w, http.StatusOK, listSessionsResponse{ActiveSessions: active, InactiveSessions: inactive})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// writeDomainError maps the engine's error kinds onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorPayload{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
