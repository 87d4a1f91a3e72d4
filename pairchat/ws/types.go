package ws

// Frame types. A response echoes the type of its request.
const (
	TypePoll  = "poll"
	TypePost  = "post"
	TypeLeave = "leave"
)

// PollPayload asks for room changes after Timestamp.
type PollPayload struct {
	TabID     string `json:"clientTabId"`
	RoomID    string `json:"id"`
	Timestamp string `json:"timestamp"`
}

// PostPayload posts a chat message.
type PostPayload struct {
	TabID   string `json:"clientTabId"`
	RoomID  string `json:"chatroom"`
	Message string `json:"message"`
	Refs    string `json:"tweets,omitempty"`
}

// LeavePayload announces that a tab leaves a room.
type LeavePayload struct {
	TabID  string `json:"clientTabId"`
	RoomID string `json:"chatroom"`
	Call   int    `json:"call"`
}
