package realtime

// Event names pushed to clients. These are wire constants shared with the
// frontend; renaming any of them breaks deployed clients.
const (
	EventConnected       = "ws:connected"
	EventPong            = "ws:pong"
	EventRoomJoined      = "room:joined"
	EventUserJoined      = "room:user-joined"
	EventUserLeft        = "room:user-left"
	EventQuestionStarted = "game:question:started"
	EventQuestionEnded   = "game:question:ended"
	EventQuestionChanged = "game:question:changed"
	EventPhaseChange     = "game:phase:change"
	EventAnswerAccepted  = "game:answer:accepted"
	EventAnswerStats     = "game:answer:stats:update"
	EventLeaderboard     = "game:leaderboard:update"
)

// PhaseCountdown is the only phase that carries a startedAt anchor.
const PhaseCountdown = "countdown"

// Event is the envelope written to client sockets.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Sink delivers events to a single connected client. Implementations must be
// safe for concurrent use; Send must never block the caller.
type Sink interface {
	Send(evt Event) error
	Close() error
}
