package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
)

const tracerName = "github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/rest"

// DefaultRequestTimeout bounds join, post and leave requests.
const DefaultRequestTimeout = 30 * time.Second

// Client talks to the chat server over HTTP long-polling. It implements
// pairchat.Transport.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	tracer         trace.Tracer
}

var _ pairchat.Transport = (*Client)(nil)

// NewClient creates a new HTTP client.
// baseURL should be the server root the endpoints hang off, e.g., "http://localhost:8080/chat".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: DefaultRequestTimeout,
		tracer:         otel.Tracer(tracerName),
	}
}

// SetHTTPClient allows setting a custom HTTP client. Long polls rely on
// per-request contexts, so its Timeout should be zero or above the poll timeout.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// SetRequestTimeout changes the bound on non-poll requests.
func (c *Client) SetRequestTimeout(d time.Duration) {
	c.requestTimeout = d
}

// SetTracerProvider traces requests with tp instead of the global provider.
func (c *Client) SetTracerProvider(tp trace.TracerProvider) {
	if tp != nil {
		c.tracer = tp.Tracer(tracerName)
	}
}

// Join places the tab into a room and returns the assignment.
func (c *Client) Join(ctx context.Context, req JoinRequest) (*JoinInfo, error) {
	form := url.Values{ParamTabID: {req.TabID}}
	body, err := c.post(ctx, "join", PathJoin, form)
	if err != nil {
		return nil, err
	}
	data, err := unwrapString(body)
	if err != nil {
		return nil, err
	}
	var info JoinInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, pairchat.WrapError(pairchat.ErrorSerialization, "decode join response", err)
	}
	if info.RoomID == "" {
		return nil, pairchat.NewError(pairchat.ErrorMalformedSnapshot, "join response without room")
	}
	return &info, nil
}

// Poll long-polls the room for changes after req.Since.
func (c *Client) Poll(ctx context.Context, req pairchat.PollRequest) (*pairchat.Snapshot, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	q := url.Values{
		ParamTabID:     {req.TabID},
		ParamRoomID:    {req.RoomID},
		ParamTimestamp: {req.Since},
	}
	body, err := c.get(ctx, "poll", PathPoll, q)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(body)
}

// Send posts a chat message and returns the room after it.
func (c *Client) Send(ctx context.Context, req pairchat.SendRequest) (*pairchat.Snapshot, error) {
	form := url.Values{
		ParamTabID:    {req.TabID},
		ParamChatroom: {req.RoomID},
		ParamMessage:  {req.Text},
		ParamRefs:     {pairchat.JoinRefs(req.Refs)},
	}
	body, err := c.post(ctx, "post", PathPost, form)
	if err != nil {
		return nil, err
	}
	snap, err := DecodeSnapshot(body)
	if errors.Is(err, pairchat.ErrEmptySnapshot) {
		// The room may already be gone; the message is lost with it.
		return &pairchat.Snapshot{}, nil
	}
	return snap, err
}

// Leave notifies the server that the tab leaves the room.
func (c *Client) Leave(ctx context.Context, req pairchat.LeaveRequest) error {
	q := url.Values{
		ParamTabID:    {req.TabID},
		ParamChatroom: {req.RoomID},
		ParamCall:     {strconv.Itoa(int(req.Call))},
	}
	_, err := c.get(ctx, "leave", PathLeave, q)
	return err
}

// DecodeSnapshot parses a room response. The body may be the snapshot
// object itself or a JSON string holding it; "{}" is the empty snapshot.
func DecodeSnapshot(body []byte) (*pairchat.Snapshot, error) {
	data, err := unwrapString(body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "{}" {
		return nil, pairchat.ErrEmptySnapshot
	}
	var snap pairchat.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, pairchat.WrapError(pairchat.ErrorMalformedSnapshot, "decode snapshot", err)
	}
	return &snap, nil
}

func unwrapString(body []byte) ([]byte, error) {
	data := bytes.TrimSpace(body)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, pairchat.WrapError(pairchat.ErrorMalformedSnapshot, "decode wrapped response", err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	return data, nil
}

// Helper methods

func (c *Client) post(ctx context.Context, op, path string, form url.Values) ([]byte, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pairchat.WrapError(pairchat.ErrorTransport, "create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, op, req)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]byte, error) {
	if op != "poll" {
		var cancel context.CancelFunc
		ctx, cancel = c.bound(ctx)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, pairchat.WrapError(pairchat.ErrorTransport, "create request", err)
	}
	return c.do(ctx, op, req)
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *Client) do(ctx context.Context, op string, req *http.Request) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "pairchat.rest."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		))
	defer span.End()

	body, err := c.roundTrip(ctx, req.WithContext(ctx), span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, span trace.Span) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read response: %w", err))
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, pairchat.NewError(pairchat.ErrorServerStatus, fmt.Sprintf("api error (status %d): %s", resp.StatusCode, errResp.Error))
		}
		return nil, pairchat.NewError(pairchat.ErrorServerStatus, fmt.Sprintf("http error: %s (status %d)", strings.TrimSpace(string(body)), resp.StatusCode))
	}
	return body, nil
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return pairchat.WrapError(pairchat.ErrorCanceled, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return pairchat.WrapError(pairchat.ErrorTimeout, "request timed out", err)
	default:
		return pairchat.WrapError(pairchat.ErrorTransport, "http request", err)
	}
}
