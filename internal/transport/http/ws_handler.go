package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"

	"github.com/gorilla/websocket"
)

// WSHandler wires websocket connections into the session use cases. Hosts
// connect with ?role=host&quizId=...&sessionId=N and drive the lifecycle;
// players connect with ?sessionId=N[&name=...] and play.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type actionPayload struct {
	Action string `json:"action"`
}

type answerPayload struct {
	Position  int     `json:"position"`
	AnswerIDs []int64 `json:"answerIds"`
}

type positionPayload struct {
	Position int `json:"position"`
}

type chatPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and dispatches frames until
// the peer disconnects. Domain errors become error frames; the connection
// stays open.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID, err := strconv.ParseInt(r.URL.Query().Get("sessionId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid sessionId", http.StatusBadRequest)
		return
	}
	role := r.URL.Query().Get("role")
	quizID := r.URL.Query().Get("quizId")
	if role == "host" && quizID == "" {
		http.Error(w, "host connections require quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// A dedicated writer goroutine keeps concurrent writes off the conn.
	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	if role == "host" {
		h.serveHost(r, conn, send, quizID, sessionID)
	} else {
		h.servePlayer(r, conn, send, sessionID)
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) serveHost(r *http.Request, conn *websocket.Conn, send chan outboundMessage[any], quizID string, sessionID int64) {
	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "action":
			var payload actionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errFrame("invalid action payload")
				continue
			}
			action, err := domain.ParseAction(payload.Action)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			if err := h.service.ApplyAction(ctx, quizID, sessionID, action); err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "actionApplied", Payload: actionPayload{Action: string(action)}}
		case "status":
			status, err := h.service.Status(ctx, quizID, sessionID)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "status", Payload: status}
		case "finalResults":
			results, err := h.service.FinalResults(ctx, quizID, sessionID)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "finalResults", Payload: results}
		case "resultsMatrix":
			matrix, err := h.service.ResultsMatrix(ctx, quizID, sessionID)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "resultsMatrix", Payload: matrix}
		default:
			send <- errFrame("unsupported message type")
		}
	}
}

func (h *WSHandler) servePlayer(r *http.Request, conn *websocket.Conn, send chan outboundMessage[any], sessionID int64) {
	ctx := r.Context()

	joined, err := h.service.Join(ctx, sessionID, r.URL.Query().Get("name"))
	if err != nil {
		send <- errFrame(err.Error())
		return
	}
	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errFrame("invalid answer payload")
				continue
			}
			if err := h.service.SubmitAnswer(ctx, joined.ID, payload.Position, payload.AnswerIDs); err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "answerAccepted", Payload: positionPayload{Position: payload.Position}}
		case "status":
			status, err := h.service.PlayerStatus(ctx, joined.ID)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "status", Payload: status}
		case "question":
			var payload positionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errFrame("invalid question payload")
				continue
			}
			question, err := h.service.QuestionInfo(ctx, joined.ID, payload.Position)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "question", Payload: question}
		case "questionResult":
			var payload positionPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errFrame("invalid questionResult payload")
				continue
			}
			result, err := h.service.QuestionResult(ctx, joined.ID, payload.Position)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "questionResult", Payload: result}
		case "finalResults":
			results, err := h.service.PlayerFinalResults(ctx, joined.ID)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "finalResults", Payload: results}
		case "chat":
			var payload chatPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errFrame("invalid chat payload")
				continue
			}
			if err := h.service.SendMessage(ctx, joined.ID, payload.Message); err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "chatSent", Payload: struct{}{}}
		case "messages":
			messages, err := h.service.Messages(ctx, joined.ID)
			if err != nil {
				send <- errFrame(err.Error())
				continue
			}
			send <- outboundMessage[any]{Type: "messages", Payload: messages}
		default:
			send <- errFrame("unsupported message type")
		}
	}
}

func errFrame(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
