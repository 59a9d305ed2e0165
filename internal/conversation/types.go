package conversation

import "time"

// Phase is the per-turn lifecycle position of a session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseResolving
	PhaseStreaming
	PhaseAnswered
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseResolving:
		return "resolving"
	case PhaseStreaming:
		return "streaming"
	case PhaseAnswered:
		return "answered"
	default:
		return "unknown"
	}
}

// Mode records where an answer came from.
type Mode string

const (
	ModeGraph Mode = "graph"
	ModeModel Mode = "model"
)

// Turn is one completed question and answer. Turns are immutable once
// recorded and never hold an empty or in-flight answer.
type Turn struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Mode      Mode      `json:"mode,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// State is a point-in-time copy of a session.
type State struct {
	Turns            []Turn   `json:"turns"`
	ActiveQuestion   string   `json:"active_question,omitempty"`
	ActiveAnswer     string   `json:"active_answer,omitempty"`
	PendingFollowUps []string `json:"pending_follow_ups"`
	Mode             Mode     `json:"mode,omitempty"`
	Phase            Phase    `json:"-"`
}

// Snapshot is the persistent part of a session.
type Snapshot struct {
	Turns            []Turn   `json:"turns"`
	PendingFollowUps []string `json:"pending_follow_ups"`
}

// Progress reports how far the interview has come.
type Progress struct {
	Current  int  `json:"current"`
	Total    int  `json:"total"`
	Complete bool `json:"complete"`
}

// Outcome describes a finished Submit.
type Outcome struct {
	Question  string
	Answer    string
	Mode      Mode
	FollowUps []string
	// Turn is nil when the answer was empty or the pair was already recorded.
	Turn *Turn
}

// EventType names a controller event.
type EventType string

const (
	EventStarted   EventType = "started"
	EventDelta     EventType = "delta"
	EventError     EventType = "error"
	EventFollowUps EventType = "follow_ups"
	EventFinished  EventType = "finished"
)

// Event is delivered to a Sink while a question is answered. Events of one
// Submit arrive in order: started, deltas, an optional error, follow-ups,
// finished.
type Event struct {
	Type      EventType
	Mode      Mode
	Text      string
	FollowUps []string
	Turn      *Turn
	Err       error
}

// Sink receives events. It is called from the goroutine running Submit.
type Sink func(Event)

func cloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return []Turn{}
	}
	return append([]Turn(nil), turns...)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}
