package realtime

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// room is the ephemeral per-game broadcast state. A room ID is the ID of the
// game it serves.
type room struct {
	id        string
	members   map[string]struct{}
	createdAt time.Time

	phase       string
	countdownAt time.Time // anchor for the countdown phase, zero until minted

	questionID    string
	questionStart time.Time
	questionEnd   time.Time
	tally         map[string]int // answer ID -> picks for the active question
}

// Hub owns room membership and fans game events out to room members. It is
// the single writer for all room state; broadcast failures are logged and
// never propagate to callers.
type Hub struct {
	clock         clockwork.Clock
	registry      *Registry
	countdownLead time.Duration

	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub wires the hub to a registry so that removing a connection evicts it
// from every room. countdownLead is the jitter buffer added to countdown
// anchors so clients starting at slightly different times converge.
func NewHub(registry *Registry, clock clockwork.Clock, countdownLead time.Duration) *Hub {
	h := &Hub{
		clock:         clock,
		registry:      registry,
		countdownLead: countdownLead,
		rooms:         make(map[string]*room),
	}
	registry.rooms = h
	return h
}

type roomJoinedPayload struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

type memberPayload struct {
	SocketID string `json:"socketId"`
}

type phasePayload struct {
	Phase     string     `json:"phase"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

type questionWindowPayload struct {
	QuestionID string    `json:"questionId"`
	StartsAt   time.Time `json:"startsAt"`
	EndsAt     time.Time `json:"endsAt"`
}

type questionPayload struct {
	QuestionID string `json:"questionId"`
}

type answerStatsPayload struct {
	QuestionID string         `json:"questionId"`
	Counts     map[string]int `json:"counts"`
}

// Join adds the socket to the room. Joining twice is idempotent: the caller
// gets its membership confirmation again and nothing else happens. New
// members are announced to the rest of the room, and if a phase is already in
// flight it is replayed to the joiner alone so late joiners converge.
func (h *Hub) Join(socketID, roomID string) {
	h.mu.Lock()
	rm := h.getOrCreateLocked(roomID)

	if _, already := rm.members[socketID]; already {
		joined := roomJoinedPayload{RoomID: roomID, Members: rm.memberList()}
		h.mu.Unlock()
		h.sendTo(socketID, Event{Type: EventRoomJoined, Payload: joined})
		return
	}

	rm.members[socketID] = struct{}{}
	joined := roomJoinedPayload{RoomID: roomID, Members: rm.memberList()}
	others := rm.membersExcept(socketID)
	replay := rm.phaseSnapshot()
	h.mu.Unlock()

	h.sendTo(socketID, Event{Type: EventRoomJoined, Payload: joined})
	h.sendAll(others, Event{Type: EventUserJoined, Payload: memberPayload{SocketID: socketID}})
	if replay != nil {
		h.sendTo(socketID, Event{Type: EventPhaseChange, Payload: *replay})
	}
}

// Leave removes the socket from the room. The last member leaving deletes the
// room; otherwise the remaining members are notified.
func (h *Hub) Leave(socketID, roomID string) {
	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := rm.members[socketID]; !member {
		h.mu.Unlock()
		return
	}
	delete(rm.members, socketID)
	if len(rm.members) == 0 {
		delete(h.rooms, roomID)
		h.mu.Unlock()
		return
	}
	remaining := rm.memberList()
	h.mu.Unlock()

	h.sendAll(remaining, Event{Type: EventUserLeft, Payload: memberPayload{SocketID: socketID}})
}

// SetPhase stores the room's current phase for late joiners and broadcasts it.
// Entering countdown mints the anchor timestamp once (now + lead); repeated
// countdown broadcasts reuse it so every client agrees on the start.
func (h *Hub) SetPhase(roomID, phase string) {
	h.mu.Lock()
	rm := h.getOrCreateLocked(roomID)
	rm.phase = phase
	if phase == PhaseCountdown {
		if rm.countdownAt.IsZero() {
			rm.countdownAt = h.clock.Now().Add(h.countdownLead)
		}
	} else {
		rm.countdownAt = time.Time{}
	}
	payload := *rm.phaseSnapshot()
	members := rm.memberList()
	h.mu.Unlock()

	h.sendAll(members, Event{Type: EventPhaseChange, Payload: payload})
}

// StartQuestion opens the answering window and resets the per-choice tally.
func (h *Hub) StartQuestion(roomID, questionID string, startsAt, endsAt time.Time) {
	h.mu.Lock()
	rm := h.getOrCreateLocked(roomID)
	rm.questionID = questionID
	rm.questionStart = startsAt
	rm.questionEnd = endsAt
	rm.tally = make(map[string]int)
	members := rm.memberList()
	h.mu.Unlock()

	h.sendAll(members, Event{Type: EventQuestionStarted, Payload: questionWindowPayload{
		QuestionID: questionID,
		StartsAt:   startsAt,
		EndsAt:     endsAt,
	}})
}

// EndQuestion clears the answering window and tally.
func (h *Hub) EndQuestion(roomID string) {
	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	ended := rm.questionID
	rm.questionID = ""
	rm.questionStart = time.Time{}
	rm.questionEnd = time.Time{}
	rm.tally = nil
	members := rm.memberList()
	h.mu.Unlock()

	h.sendAll(members, Event{Type: EventQuestionEnded, Payload: questionPayload{QuestionID: ended}})
}

// ChangeQuestion announces the upcoming question without opening its window.
func (h *Hub) ChangeQuestion(roomID, questionID string) {
	h.BroadcastToRoom(roomID, EventQuestionChanged, questionPayload{QuestionID: questionID})
}

// PublishAnswerStats stores the latest per-choice counts on the room and fans
// them out.
func (h *Hub) PublishAnswerStats(roomID, questionID string, counts map[string]int) {
	h.mu.Lock()
	if rm, ok := h.rooms[roomID]; ok && rm.questionID == questionID {
		rm.tally = counts
	}
	h.mu.Unlock()

	h.BroadcastToRoom(roomID, EventAnswerStats, answerStatsPayload{QuestionID: questionID, Counts: counts})
}

// BroadcastToRoom sends an arbitrary event to every room member.
func (h *Hub) BroadcastToRoom(roomID, eventType string, payload any) {
	h.mu.Lock()
	rm, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	members := rm.memberList()
	h.mu.Unlock()

	h.sendAll(members, Event{Type: eventType, Payload: payload})
}

// ActiveQuestion reports the room's open answering window, if any. The
// scoring pipeline uses it to lock out late submissions.
func (h *Hub) ActiveQuestion(roomID string) (questionID string, endsAt time.Time, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, found := h.rooms[roomID]
	if !found || rm.questionID == "" {
		return "", time.Time{}, false
	}
	return rm.questionID, rm.questionEnd, true
}

// Disconnect tears down a socket entirely: registry removal, room eviction,
// and sink shutdown. Safe to call for unknown sockets.
func (h *Hub) Disconnect(socketID string) {
	conn := h.registry.Remove(socketID)
	if conn == nil || conn.Sink == nil {
		return
	}
	if err := conn.Sink.Close(); err != nil {
		log.Warn().Err(err).Str("socket_id", socketID).Msg("failed to close sink")
	}
}

// HasRoom reports whether a room currently exists.
func (h *Hub) HasRoom(roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.rooms[roomID]
	return ok
}

// Members returns the current member sockets of a room.
func (h *Hub) Members(roomID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rm, ok := h.rooms[roomID]; ok {
		return rm.memberList()
	}
	return nil
}

// evictFromAllRooms implements roomEvicter for registry removals.
func (h *Hub) evictFromAllRooms(socketID string) {
	h.mu.Lock()
	var joined []string
	for id, rm := range h.rooms {
		if _, ok := rm.members[socketID]; ok {
			joined = append(joined, id)
		}
	}
	h.mu.Unlock()

	for _, roomID := range joined {
		h.Leave(socketID, roomID)
	}
}

func (h *Hub) getOrCreateLocked(roomID string) *room {
	rm, ok := h.rooms[roomID]
	if !ok {
		rm = &room{
			id:        roomID,
			members:   make(map[string]struct{}),
			createdAt: h.clock.Now(),
		}
		h.rooms[roomID] = rm
	}
	return rm
}

func (h *Hub) sendTo(socketID string, evt Event) {
	sink := h.registry.sink(socketID)
	if sink == nil {
		return
	}
	if err := sink.Send(evt); err != nil {
		log.Warn().Err(err).Str("socket_id", socketID).Str("event", evt.Type).Msg("dropped event")
	}
}

func (h *Hub) sendAll(socketIDs []string, evt Event) {
	for _, id := range socketIDs {
		h.sendTo(id, evt)
	}
}

func (rm *room) memberList() []string {
	out := make([]string, 0, len(rm.members))
	for id := range rm.members {
		out = append(out, id)
	}
	return out
}

func (rm *room) membersExcept(socketID string) []string {
	out := make([]string, 0, len(rm.members))
	for id := range rm.members {
		if id != socketID {
			out = append(out, id)
		}
	}
	return out
}

// phaseSnapshot returns the replayable phase event, or nil when no phase has
// been set. Countdown replays carry the original anchor, never a fresh one.
func (rm *room) phaseSnapshot() *phasePayload {
	if rm.phase == "" {
		return nil
	}
	p := &phasePayload{Phase: rm.phase}
	if rm.phase == PhaseCountdown && !rm.countdownAt.IsZero() {
		at := rm.countdownAt
		p.StartedAt = &at
	}
	return p
}
