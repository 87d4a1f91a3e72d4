package chattest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/internal"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/ws"
)

// PathWS is the WebSocket endpoint.
const PathWS = "/ws"

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer c.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	conn := internal.NewConn(c, 0, 10*time.Second)

	for {
		f, err := conn.ReadFrame(ctx)
		if err != nil {
			if !internal.IsExpectedDisconnect(ctx, err) {
				s.opts.Logger.Warn().Err(err).Msg("websocket read")
			}
			return
		}
		// Polls are held, so each request is answered on its own goroutine.
		go func(f internal.Frame) {
			resp := s.answer(ctx, f)
			if err := conn.WriteFrame(ctx, resp); err != nil && ctx.Err() == nil {
				s.opts.Logger.Warn().Err(err).Str("type", f.Type).Msg("websocket write")
			}
		}(f)
	}
}

func (s *Server) answer(ctx context.Context, f internal.Frame) internal.Frame {
	resp := internal.Frame{Type: f.Type, ID: f.ID}
	snap, err := s.dispatch(ctx, f)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	if snap == nil {
		resp.Data = json.RawMessage("{}")
		return resp
	}
	data, err := json.Marshal(snap)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Data = data
	return resp
}

func (s *Server) dispatch(ctx context.Context, f internal.Frame) (*pairchat.Snapshot, error) {
	switch f.Type {
	case ws.TypePoll:
		var p ws.PollPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("bad poll payload: %w", err)
		}
		return s.Poll(ctx, p.TabID, p.RoomID, p.Timestamp)
	case ws.TypePost:
		var p ws.PostPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("bad post payload: %w", err)
		}
		return s.Post(p.TabID, p.RoomID, p.Message, p.Refs), nil
	case ws.TypeLeave:
		var p ws.LeavePayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("bad leave payload: %w", err)
		}
		return s.Leave(p.TabID, p.RoomID, pairchat.LeaveCall(p.Call)), nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", f.Type)
	}
}
