// Package ws carries the poll, post and leave exchange over one WebSocket
// connection. Responses are matched to requests by frame id, so a held poll
// does not block a post.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/internal"
)

// Config controls the connection.
type Config struct {
	// URL is the WebSocket endpoint, e.g., "ws://localhost:8080/chat/ws".
	URL              string
	HandshakeTimeout time.Duration
	// ReadTimeout bounds each frame read; keep it zero or above the poll
	// window, since the connection idles while a poll is held.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Client implements pairchat.Transport over WebSocket.
type Client struct {
	cfg     Config
	logger  pairchat.Logger
	conn    *internal.Conn
	writeCh chan internal.Frame

	mu        sync.Mutex
	connected bool
	pending   map[string]chan internal.Frame
	cancel    context.CancelFunc
	done      chan struct{}
	err       error
}

var _ pairchat.Transport = (*Client)(nil)

// NewClient constructs a client with provided config.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		logger:  pairchat.NopLogger(),
		writeCh: make(chan internal.Frame, 16),
		pending: make(map[string]chan internal.Frame),
		done:    make(chan struct{}),
	}
}

// SetLogger overrides logger (optional).
func (c *Client) SetLogger(l pairchat.Logger) {
	if l == nil {
		return
	}
	c.logger = l
}

// Connect dials the server and starts the read and write loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	if c.cfg.URL == "" {
		return pairchat.NewError(pairchat.ErrorInvalidConfig, "empty URL")
	}
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return pairchat.WrapError(pairchat.ErrorInvalidConfig, "parse URL", err)
	}

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, u.String(), nil)
	if err != nil {
		return pairchat.WrapError(pairchat.ErrorTransport, "dial", err)
	}
	c.conn = internal.NewConn(conn, c.cfg.ReadTimeout, c.cfg.WriteTimeout)

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(runCtx)
	go c.writeLoop(runCtx)
	return nil
}

// Close shuts down client and closes WebSocket.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.connected = false
	c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

// Poll long-polls the room for changes after req.Since.
func (c *Client) Poll(ctx context.Context, req pairchat.PollRequest) (*pairchat.Snapshot, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	resp, err := c.call(ctx, TypePoll, PollPayload{TabID: req.TabID, RoomID: req.RoomID, Timestamp: req.Since})
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(resp.Data)
}

// Send posts a chat message and returns the room after it.
func (c *Client) Send(ctx context.Context, req pairchat.SendRequest) (*pairchat.Snapshot, error) {
	resp, err := c.call(ctx, TypePost, PostPayload{
		TabID:   req.TabID,
		RoomID:  req.RoomID,
		Message: req.Text,
		Refs:    pairchat.JoinRefs(req.Refs),
	})
	if err != nil {
		return nil, err
	}
	snap, err := decodeSnapshot(resp.Data)
	if errors.Is(err, pairchat.ErrEmptySnapshot) {
		return &pairchat.Snapshot{}, nil
	}
	return snap, err
}

// Leave notifies the server that the tab leaves the room.
func (c *Client) Leave(ctx context.Context, req pairchat.LeaveRequest) error {
	_, err := c.call(ctx, TypeLeave, LeavePayload{TabID: req.TabID, RoomID: req.RoomID, Call: int(req.Call)})
	return err
}

func (c *Client) call(ctx context.Context, typ string, payload any) (internal.Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return internal.Frame{}, pairchat.WrapError(pairchat.ErrorSerialization, "encode "+typ, err)
	}
	f := internal.Frame{Type: typ, ID: uuid.NewString(), Data: data}
	ch := make(chan internal.Frame, 1)

	c.mu.Lock()
	if !c.connected {
		err := c.err
		c.mu.Unlock()
		if err != nil {
			return internal.Frame{}, pairchat.WrapError(pairchat.ErrorTransport, "connection lost", err)
		}
		return internal.Frame{}, pairchat.NewError(pairchat.ErrorTransport, "not connected")
	}
	c.pending[f.ID] = ch
	c.mu.Unlock()
	defer c.forget(f.ID)

	select {
	case c.writeCh <- f:
	case <-ctx.Done():
		return internal.Frame{}, ctxError(ctx)
	case <-c.done:
		return internal.Frame{}, c.lostError()
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp, pairchat.NewError(pairchat.ErrorServerStatus, typ+": "+resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		return internal.Frame{}, ctxError(ctx)
	case <-c.done:
		return internal.Frame{}, c.lostError()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		f, err := c.conn.ReadFrame(ctx)
		if err != nil {
			c.fail(err)
			if internal.IsExpectedDisconnect(ctx, err) {
				return
			}
			c.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		c.mu.Unlock()
		if !ok {
			// The caller gave up, e.g. an aborted poll.
			c.logger.Debug("response without caller", map[string]any{"id": f.ID, "type": f.Type})
			continue
		}
		ch <- f
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case f := <-c.writeCh:
			if err := c.conn.WriteFrame(ctx, f); err != nil {
				c.fail(err)
				c.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// fail marks the connection lost and releases every waiting caller.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	c.connected = false
	if c.cancel != nil {
		c.cancel()
	}
	close(c.done)
}

func (c *Client) lostError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pairchat.WrapError(pairchat.ErrorTransport, "connection lost", c.err)
}

func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pairchat.WrapError(pairchat.ErrorTimeout, "request timed out", ctx.Err())
	}
	return pairchat.WrapError(pairchat.ErrorCanceled, "request canceled", ctx.Err())
}

func decodeSnapshot(data json.RawMessage) (*pairchat.Snapshot, error) {
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return nil, pairchat.ErrEmptySnapshot
	}
	var snap pairchat.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, pairchat.WrapError(pairchat.ErrorMalformedSnapshot, "decode snapshot", err)
	}
	return &snap, nil
}
