package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/PandaDev0069/tuiz-backend-sub000/internal/app"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/domain"
	"github.com/PandaDev0069/tuiz-backend-sub000/internal/realtime"
)

// WSHandler upgrades client sockets and routes their events into the session
// engine: registry, hub, scoring pipeline, and aggregator.
type WSHandler struct {
	registry *realtime.Registry
	hub      *realtime.Hub
	scores   *app.ScoreService
	boards   *app.Aggregator
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *realtime.Registry, hub *realtime.Hub, scores *app.ScoreService, boards *app.Aggregator) *WSHandler {
	return &WSHandler{
		registry: registry,
		hub:      hub,
		scores:   scores,
		boards:   boards,
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

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type phaseSetPayload struct {
	RoomID string `json:"roomId"`
	Phase  string `json:"phase"`
}

type questionStartPayload struct {
	RoomID     string `json:"roomId"`
	QuestionID string `json:"questionId"`
	StartsAt   int64  `json:"startsAt"` // unix millis
	EndsAt     int64  `json:"endsAt"`
}

type questionChangePayload struct {
	RoomID     string `json:"roomId"`
	QuestionID string `json:"questionId"`
}

type submitPayload struct {
	GameID         string  `json:"gameId"`
	PlayerID       string  `json:"playerId"`
	QuestionID     string  `json:"questionId"`
	QuestionNumber int     `json:"questionNumber"`
	AnswerID       *string `json:"answerId"`
	TimeTaken      float64 `json:"timeTaken"`
}

type leaderboardPayload struct {
	GameID string `json:"gameId"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type statsRequestPayload struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type connectedPayload struct {
	SocketID   string `json:"socketId"`
	DeviceID   string `json:"deviceId"`
	Reconnects int    `json:"reconnects"`
}

type answerAcceptedPayload struct {
	QuestionID   string `json:"questionId"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
	Streak       int    `json:"streak"`
	Score        int    `json:"score"`
	Rank         int    `json:"rank"`
}

type errorPayload struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the connection's read loop. A device
// identifier is mandatory; player identity may ride on the query or on each
// answer payload.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("deviceId")
	if deviceID == "" {
		http.Error(w, "missing deviceId", http.StatusBadRequest)
		return
	}
	userID := r.URL.Query().Get("userId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	socketID := uuid.NewString()
	sink := newChanSink(32)

	reconnects := 0
	if prior := h.registry.GetByDevice(deviceID); prior != nil {
		reconnects = h.registry.IncrementReconnect(deviceID)
	}

	h.registry.Register(r.Context(), &realtime.Connection{
		SocketID: socketID,
		DeviceID: deviceID,
		UserID:   userID,
		Sink:     sink,
	})
	defer h.hub.Disconnect(socketID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for evt := range sink.ch {
			if err := conn.WriteJSON(evt); err != nil {
				log.Warn().Err(err).Str("socket_id", socketID).Msg("ws write error")
				return
			}
		}
	}()

	_ = sink.Send(realtime.Event{Type: realtime.EventConnected, Payload: connectedPayload{
		SocketID:   socketID,
		DeviceID:   deviceID,
		Reconnects: reconnects,
	}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, socketID, userID, sink, inbound)
	}

	h.hub.Disconnect(socketID)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, socketID, userID string, sink *chanSink, inbound inboundMessage) {
	ctx := r.Context()
	switch inbound.Type {
	case "ping":
		h.registry.TouchHeartbeat(socketID)
		_ = sink.Send(realtime.Event{Type: realtime.EventPong})

	case "room:join":
		var p roomPayload
		if decode(sink, inbound.Payload, &p) {
			h.hub.Join(socketID, p.RoomID)
		}

	case "room:leave":
		var p roomPayload
		if decode(sink, inbound.Payload, &p) {
			h.hub.Leave(socketID, p.RoomID)
		}

	case "phase:set":
		var p phaseSetPayload
		if decode(sink, inbound.Payload, &p) {
			h.hub.SetPhase(p.RoomID, p.Phase)
		}

	case "question:start":
		var p questionStartPayload
		if decode(sink, inbound.Payload, &p) {
			h.hub.StartQuestion(p.RoomID, p.QuestionID, time.UnixMilli(p.StartsAt), time.UnixMilli(p.EndsAt))
		}

	case "question:end":
		var p roomPayload
		if decode(sink, inbound.Payload, &p) {
			h.hub.EndQuestion(p.RoomID)
		}

	case "question:change":
		var p questionChangePayload
		if decode(sink, inbound.Payload, &p) {
			h.hub.ChangeQuestion(p.RoomID, p.QuestionID)
		}

	case "answer:submit":
		var p submitPayload
		if !decode(sink, inbound.Payload, &p) {
			return
		}
		playerID := p.PlayerID
		if playerID == "" {
			playerID = userID
		}
		result, err := h.scores.SubmitAnswer(ctx, p.GameID, playerID, domain.AnswerSubmission{
			QuestionID:     p.QuestionID,
			QuestionNumber: p.QuestionNumber,
			AnswerID:       p.AnswerID,
			TimeTaken:      p.TimeTaken,
		})
		if err != nil {
			sendError(sink, err)
			return
		}
		// The score is persisted at this point; everything below is
		// best-effort notification.
		_ = sink.Send(realtime.Event{Type: realtime.EventAnswerAccepted, Payload: answerAcceptedPayload{
			QuestionID:   p.QuestionID,
			IsCorrect:    result.IsCorrect,
			PointsEarned: result.PointsEarned,
			Streak:       result.Streak,
			Score:        result.PlayerData.Score,
			Rank:         result.Rank,
		}})
		h.hub.PublishAnswerStats(p.GameID, p.QuestionID, result.Counts)

	case "leaderboard:get":
		var p leaderboardPayload
		if !decode(sink, inbound.Payload, &p) {
			return
		}
		lb, err := h.boards.Leaderboard(ctx, p.GameID, p.Limit, p.Offset)
		if err != nil {
			sendError(sink, err)
			return
		}
		h.hub.BroadcastToRoom(p.GameID, realtime.EventLeaderboard, lb)
		_ = sink.Send(realtime.Event{Type: realtime.EventLeaderboard, Payload: lb})

	case "player:stats":
		var p statsRequestPayload
		if !decode(sink, inbound.Payload, &p) {
			return
		}
		playerID := p.PlayerID
		if playerID == "" {
			playerID = userID
		}
		stats, err := h.boards.PlayerStats(ctx, p.GameID, playerID)
		if err != nil {
			sendError(sink, err)
			return
		}
		_ = sink.Send(realtime.Event{Type: "game:player:stats", Payload: stats})

	default:
		_ = sink.Send(realtime.Event{Type: "error", Payload: errorPayload{
			Reason:  "UNSUPPORTED_MESSAGE",
			Message: "unsupported message type",
		}})
	}
}

func decode(sink *chanSink, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		_ = sink.Send(realtime.Event{Type: "error", Payload: errorPayload{
			Reason:  "INVALID_PAYLOAD",
			Message: "malformed payload",
		}})
		return false
	}
	return true
}

func sendError(sink *chanSink, err error) {
	_ = sink.Send(realtime.Event{Type: "error", Payload: errorPayload{
		Reason:  domain.Reason(err),
		Message: err.Error(),
	}})
}

var errSinkClosed = errors.New("sink closed")
var errSinkFull = errors.New("send buffer full")

// chanSink bridges hub broadcasts onto the connection's single writer
// goroutine. Send never blocks: a full buffer drops the event, which the hub
// logs as a best-effort delivery failure.
type chanSink struct {
	mu     sync.Mutex
	closed bool
	ch     chan realtime.Event
}

func newChanSink(buffer int) *chanSink {
	return &chanSink{ch: make(chan realtime.Event, buffer)}
}

func (s *chanSink) Send(evt realtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	select {
	case s.ch <- evt:
		return nil
	default:
		return errSinkFull
	}
}

func (s *chanSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}
