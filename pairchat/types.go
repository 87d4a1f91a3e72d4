package pairchat

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// PollExpired is the control sentinel the server returns when a long-poll
// produced nothing new.
const PollExpired = "poll expired"

// Sender identifies the author of an event relative to this client.
type Sender string

const (
	SenderSelf  Sender = "self"
	SenderOther Sender = "other"
)

// EventType discriminates chat events.
type EventType string

// EventMessage is a chat message. Every other type is a status marker.
const EventMessage EventType = "msg"

// Event is one timestamped occurrence in the conversation.
type Event struct {
	Timestamp string    `json:"timestamp"`
	From      Sender    `json:"from"`
	Type      EventType `json:"type"`
	Body      string    `json:"body,omitempty"`
}

// EventKey identifies an event. Two events with the same key are the same event.
type EventKey struct {
	Timestamp string
	From      Sender
}

// Key returns the identity of the event.
func (e Event) Key() EventKey { return EventKey{Timestamp: e.Timestamp, From: e.From} }

// IsMessage reports whether the event is a chat message.
func (e Event) IsMessage() bool { return e.Type == EventMessage }

func (k EventKey) String() string { return k.Timestamp + "/" + string(k.From) }

// Snapshot is the server view of the room returned by the poll and send endpoints.
type Snapshot struct {
	Msg          string   `json:"msg,omitempty"`
	ID           string   `json:"id,omitempty"`
	Users        []string `json:"users,omitempty"`
	Closed       Flag     `json:"closed,omitempty"`
	Modified     string   `json:"modified,omitempty"`
	LatestEvents []Event  `json:"latestEvents,omitempty"`
}

// Expired reports whether the snapshot is the "poll expired" sentinel.
func (s *Snapshot) Expired() bool { return s != nil && s.Msg == PollExpired }

// BothPresent reports whether the server sees two participants in the room.
func (s *Snapshot) BothPresent() bool { return s != nil && len(s.Users) > 1 }

// Empty reports whether the snapshot carries nothing actionable.
func (s *Snapshot) Empty() bool {
	return s == nil || (s.Msg == "" && s.Modified == "" && s.Users == nil && s.LatestEvents == nil && !bool(s.Closed))
}

// Flag is a boolean that also accepts the quoted "true"/"false" form some
// servers template into their JSON.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = false
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*f = Flag(b)
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) { return json.Marshal(bool(f)) }

// LeaveCall tags the lifecycle trigger that produced a leave notification.
type LeaveCall int

const (
	LeaveRoomClosed  LeaveCall = 1
	LeaveWaitTimeout LeaveCall = 2
	LeaveUnconfirmed LeaveCall = 3
	LeaveConfirmed   LeaveCall = 4
)

func (c LeaveCall) String() string {
	switch c {
	case LeaveRoomClosed:
		return "room_closed"
	case LeaveWaitTimeout:
		return "wait_timeout"
	case LeaveUnconfirmed:
		return "stop_unconfirmed"
	case LeaveConfirmed:
		return "stop_confirmed"
	default:
		return "call_" + strconv.Itoa(int(c))
	}
}

// PollRequest asks for changes after Since.
type PollRequest struct {
	TabID   string
	RoomID  string
	Since   string
	Timeout time.Duration
}

// SendRequest posts a chat message.
type SendRequest struct {
	TabID  string
	RoomID string
	Text   string
	Refs   []int
}

// LeaveRequest notifies the server that this tab is leaving the room.
type LeaveRequest struct {
	TabID  string
	RoomID string
	Call   LeaveCall
}

// JoinRefs renders comment indices the way the post endpoint expects them.
func JoinRefs(refs []int) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ",")
}
