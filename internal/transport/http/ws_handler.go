package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/transport/hub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

type WSHandler struct {
	service  *app.QuizService
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, h *hub.Hub, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		hub:     h,
		logger:  logger.With(slog.String("component", "ws")),
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

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type joinPayload struct {
	RoomID     string `json:"roomId"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
	Password   string `json:"password"`
}

type startPayload struct {
	RoomID string `json:"roomId"`
}

type answerPayload struct {
	RoomID        string          `json:"roomId"`
	QuestionIndex *int            `json:"questionIndex"`
	Answer        json.RawMessage `json:"answer"`
}

type advancePayload struct {
	RoomID        string `json:"roomId"`
	QuestionIndex *int   `json:"questionIndex"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
// Every frame a connection receives goes through its hub outbox, so replies and
// room broadcasts keep the order in which the room produced them.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	logger := h.logger.With(slog.String("conn", connID))
	outbox := h.hub.Connect(connID)
	logger.Debug("connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writePump(conn, outbox, logger)
	}()

	h.readPump(r.Context(), conn, connID, logger)

	// a disconnect is an implicit leave
	h.service.Leave(context.Background(), connID)
	h.hub.Disconnect(connID)
	<-writerDone
	logger.Debug("connection closed")
}

func (h *WSHandler) readPump(ctx context.Context, conn *websocket.Conn, connID string, logger *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Info("ws read error", slog.String("error", err.Error()))
			}
			return
		}
		h.dispatch(ctx, connID, inbound)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, inbound inboundMessage) {
	switch inbound.Type {
	case domain.EventJoinRoom:
		var p joinPayload
		if !h.decode(connID, inbound, &p) {
			return
		}
		credential := p.Credential
		if credential == "" {
			credential = p.Password
		}
		_, _ = h.service.Join(ctx, p.RoomID, connID, p.Username, credential)

	case domain.EventStartQuiz:
		var p startPayload
		if !h.decode(connID, inbound, &p) {
			return
		}
		_ = h.service.Start(ctx, h.roomFor(connID, p.RoomID), connID)

	case domain.EventSubmitAnswer:
		var p answerPayload
		if !h.decode(connID, inbound, &p) {
			return
		}
		if p.QuestionIndex == nil {
			h.replyError(connID, "questionIndex required")
			return
		}
		_, _ = h.service.SubmitAnswer(ctx, h.roomFor(connID, p.RoomID), connID, *p.QuestionIndex, domain.AnswerText(p.Answer))

	case domain.EventNextQuestion:
		var p advancePayload
		if !h.decode(connID, inbound, &p) {
			return
		}
		if p.QuestionIndex == nil {
			h.replyError(connID, "questionIndex required")
			return
		}
		_ = h.service.AdvanceAs(ctx, h.roomFor(connID, p.RoomID), connID, *p.QuestionIndex)

	default:
		h.replyError(connID, "unsupported message type")
	}
}

// roomFor falls back to the connection's joined room when the payload omits it.
func (h *WSHandler) roomFor(connID, roomID string) string {
	if roomID != "" {
		return roomID
	}
	joined, _ := h.service.RoomOf(connID)
	return joined
}

func (h *WSHandler) decode(connID string, inbound inboundMessage, target any) bool {
	if len(inbound.Payload) == 0 {
		h.replyError(connID, "invalid "+inbound.Type+" payload")
		return false
	}
	if err := json.Unmarshal(inbound.Payload, target); err != nil {
		h.replyError(connID, "invalid "+inbound.Type+" payload")
		return false
	}
	return true
}

func (h *WSHandler) replyError(connID, reason string) {
	h.hub.Reply(connID, domain.Event{Name: domain.EventError, Payload: domain.ReasonPayload{Reason: reason}})
}

func (h *WSHandler) writePump(conn *websocket.Conn, outbox <-chan domain.Event, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// unblocks the reader when the writer stops first
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: ev.Name, Payload: ev.Payload}); err != nil {
				logger.Info("ws write error", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
