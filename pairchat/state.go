package pairchat

// Phase is the lifecycle phase of a chat session.
type Phase int

const (
	// PhaseWaiting means the session waits for a second participant.
	PhaseWaiting Phase = iota

	// PhaseActive means the dialog has started.
	PhaseActive

	// PhaseOver is terminal: a participant stopped or the room closed.
	PhaseOver
)

// String returns the string representation of a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseOver:
		return "over"
	default:
		return "unknown"
	}
}

// Reason tells why a transition happened.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonDialogStarted
	ReasonWaitTimeout
	ReasonRoomClosed
	ReasonStopped
)

// String returns the string representation of a Reason.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDialogStarted:
		return "dialog_started"
	case ReasonWaitTimeout:
		return "wait_timeout"
	case ReasonRoomClosed:
		return "room_closed"
	case ReasonStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StateEvent represents a lifecycle change. A wait timeout sets Leaving
// without changing the phase.
type StateEvent struct {
	OldPhase Phase
	NewPhase Phase
	Leaving  bool
	Reason   Reason
}

// Status is a point-in-time view of a session.
type Status struct {
	Phase      Phase
	Leaving    bool
	TimedOut   bool
	Reason     Reason
	Cursor     string
	Events     int
	SelfCount  int
	OtherCount int
	Progress   Progress
	Notice     Notice
}
