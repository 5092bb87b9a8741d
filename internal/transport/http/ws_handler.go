package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-host-service/internal/app"
	"quiz-host-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
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

type answerPayload struct {
	AnswerIndex  int     `json:"answerIndex"`
	TimeToAnswer float64 `json:"timeToAnswer"`
}

type answerResult struct {
	domain.PlayerAnswer
	TotalPoints int `json:"totalPoints"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS streams session state to a host or player connection.
//
// Query: sessionId is required. A player connection identifies itself with
// playerId, or joins on connect with name. Players may send answer messages;
// a connection without a player only observes.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("sessionId")
	playerID := q.Get("playerId")
	playerName := q.Get("name")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	var joined *domain.Player
	if playerID == "" && playerName != "" {
		player, err := h.service.JoinSession(ctx, sessionID, playerName)
		if err != nil {
			_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		playerID = player.ID
		joined = &player
	}

	updates, cancel, err := h.service.Subscribe(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes. After a failed write
	// it keeps draining send so producers never block.
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("ws write failed", "session", sessionID, "error", err)
				failed = true
			}
		}
	}()

	if joined != nil {
		send <- outboundMessage[any]{Type: "joined", Payload: *joined}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: state}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		send <- h.handleInbound(r, sessionID, playerID, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleInbound(r *http.Request, sessionID, playerID string, inbound inboundMessage) outboundMessage[any] {
	switch inbound.Type {
	case "answer":
		if playerID == "" {
			return errorMessage("answers require a player connection")
		}
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload")
		}
		answer, err := h.service.SubmitAnswer(r.Context(), sessionID, playerID, payload.AnswerIndex, payload.TimeToAnswer)
		if err != nil {
			return errorMessage(err.Error())
		}
		result := answerResult{PlayerAnswer: answer}
		if session, err := h.service.GetSession(r.Context(), sessionID); err == nil {
			if idx := session.PlayerIndex(playerID); idx >= 0 {
				result.TotalPoints = session.Players[idx].TotalPoints
			}
		}
		return outboundMessage[any]{Type: "answerResult", Payload: result}
	default:
		return errorMessage("unsupported message type")
	}
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}
