package rest

import (
	"time"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
)

// Endpoint paths relative to the base URL.
const (
	PathJoin  = "/join"
	PathPoll  = "/chatroom"
	PathPost  = "/post"
	PathLeave = "/leave"
)

// Query and form parameter names.
const (
	ParamTabID     = "clientTabId"
	ParamRoomID    = "id"
	ParamChatroom  = "chatroom"
	ParamTimestamp = "timestamp"
	ParamMessage   = "message"
	ParamRefs      = "tweets"
	ParamCall      = "call"
)

// JoinRequest asks the server to place a tab into a room.
type JoinRequest struct {
	TabID string
}

// JoinInfo describes the room a tab was placed into.
type JoinInfo struct {
	RoomID          string `json:"chatroom"`
	FirstUser       bool   `json:"is_first_user"`
	MsgCountLow     int    `json:"msg_count_low"`
	MsgCountHigh    int    `json:"msg_count_high"`
	DelayForPartner int    `json:"delay_for_partner"` // seconds, 0 means no waiting phase
	PollTimeout     int    `json:"poll_timeout"`      // seconds
}

// Apply copies the room assignment into cfg. Zero values leave cfg alone.
func (j JoinInfo) Apply(cfg *pairchat.Config) {
	cfg.RoomID = j.RoomID
	cfg.FirstUser = j.FirstUser
	if j.MsgCountLow > 0 {
		cfg.MsgCountLow = j.MsgCountLow
	}
	if j.MsgCountHigh > 0 {
		cfg.MsgCountHigh = j.MsgCountHigh
	}
	cfg.MaxWait = time.Duration(j.DelayForPartner) * time.Second
	if cfg.SlowPartnerAfter >= cfg.MaxWait {
		cfg.SlowPartnerAfter = 0
	}
	if j.PollTimeout > 0 {
		cfg.PollTimeout = time.Duration(j.PollTimeout) * time.Second
	}
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
