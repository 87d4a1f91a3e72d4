package pairchat

import "context"

// Transport carries the three chat endpoints. Implementations must honor
// ctx cancellation; an aborted poll may still complete, its result is then
// ignored by the session.
type Transport interface {
	// Poll blocks until the room changed after req.Since or the server's
	// poll window elapsed, in which case the snapshot is the expired sentinel.
	Poll(ctx context.Context, req PollRequest) (*Snapshot, error)
	// Send posts a message and returns the room snapshot after it.
	Send(ctx context.Context, req SendRequest) (*Snapshot, error)
	// Leave tells the server this tab is leaving the room.
	Leave(ctx context.Context, req LeaveRequest) error
}
