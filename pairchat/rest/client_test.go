package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/chattest"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/rest"
)

func newServer(t *testing.T, opts chattest.Options) (*chattest.Server, *rest.Client) {
	t.Helper()
	srv := chattest.New(opts)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, rest.NewClient(ts.URL)
}

func TestDecodeSnapshot(t *testing.T) {
	snap, err := rest.DecodeSnapshot([]byte(`{"id":"7","users":["a","b"],"closed":"false","modified":"2024-01-01T00:00:01",` +
		`"latestEvents":[{"timestamp":"2024-01-01T00:00:01","from":"other","type":"msg","body":"hi"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "7", snap.ID)
	assert.True(t, snap.BothPresent())
	assert.False(t, bool(snap.Closed))
	require.Len(t, snap.LatestEvents, 1)
	assert.Equal(t, pairchat.SenderOther, snap.LatestEvents[0].From)

	wrapped, err := rest.DecodeSnapshot([]byte(`"{\"msg\": \"poll expired\"}"`))
	require.NoError(t, err)
	assert.True(t, wrapped.Expired())

	closed, err := rest.DecodeSnapshot([]byte(`{"users":["a"],"closed":true}`))
	require.NoError(t, err)
	assert.True(t, bool(closed.Closed))
}

func TestDecodeSnapshotErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty object", `{}`, pairchat.ErrEmptySnapshot},
		{"wrapped empty object", `"{}"`, pairchat.ErrEmptySnapshot},
		{"empty body", ``, pairchat.ErrEmptySnapshot},
		{"garbage", `{"users":`, pairchat.ErrMalformedSnapshot},
		{"bad wrapper", `"{\"users`, pairchat.ErrMalformedSnapshot},
		{"bad closed flag", `{"closed":"maybe"}`, pairchat.ErrMalformedSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rest.DecodeSnapshot([]byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, pairchat.IsSnapshotError(err))
		})
	}
}

func TestJoinPollPostLeave(t *testing.T) {
	srv, c := newServer(t, chattest.Options{WrapJSON: true, DelayForPartner: 30})
	ctx := context.Background()

	first, err := c.Join(ctx, rest.JoinRequest{TabID: "tab-a"})
	require.NoError(t, err)
	assert.True(t, first.FirstUser)
	assert.Equal(t, 30, first.DelayForPartner)

	second, err := c.Join(ctx, rest.JoinRequest{TabID: "tab-b"})
	require.NoError(t, err)
	assert.False(t, second.FirstUser)
	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Zero(t, second.DelayForPartner)

	snap, err := c.Poll(ctx, pairchat.PollRequest{TabID: "tab-a", RoomID: first.RoomID})
	require.NoError(t, err)
	assert.True(t, snap.BothPresent())
	require.NotEmpty(t, snap.Modified)

	posted, err := c.Send(ctx, pairchat.SendRequest{TabID: "tab-a", RoomID: first.RoomID, Text: "hello", Refs: []int{1, 3}})
	require.NoError(t, err)
	require.Len(t, posted.LatestEvents, 1)
	assert.Equal(t, pairchat.SenderSelf, posted.LatestEvents[0].From)
	assert.Equal(t, "hello", posted.LatestEvents[0].Body)

	seen, err := c.Poll(ctx, pairchat.PollRequest{TabID: "tab-b", RoomID: first.RoomID, Since: snap.Modified})
	require.NoError(t, err)
	require.Len(t, seen.LatestEvents, 1)
	assert.Equal(t, pairchat.SenderOther, seen.LatestEvents[0].From)

	require.NoError(t, c.Leave(ctx, pairchat.LeaveRequest{TabID: "tab-b", RoomID: first.RoomID, Call: pairchat.LeaveConfirmed}))

	room, ok := srv.Room(first.RoomID)
	require.True(t, ok)
	assert.Equal(t, []string{"tab-a"}, room.Users)
	assert.Equal(t, []string{"1,3"}, room.Refs)
	assert.Equal(t, []pairchat.LeaveCall{pairchat.LeaveConfirmed}, room.Leaves)
}

func TestPollExpires(t *testing.T) {
	_, c := newServer(t, chattest.Options{PollWindow: 30 * time.Millisecond})
	ctx := context.Background()
	info, err := c.Join(ctx, rest.JoinRequest{TabID: "tab-a"})
	require.NoError(t, err)

	snap, err := c.Poll(ctx, pairchat.PollRequest{TabID: "tab-a", RoomID: info.RoomID})
	require.NoError(t, err)

	expired, err := c.Poll(ctx, pairchat.PollRequest{TabID: "tab-a", RoomID: info.RoomID, Since: snap.Modified})
	require.NoError(t, err)
	assert.True(t, expired.Expired())
}

func TestPollUnknownRoomIsEmpty(t *testing.T) {
	_, c := newServer(t, chattest.Options{})
	_, err := c.Poll(context.Background(), pairchat.PollRequest{TabID: "tab-a", RoomID: "404"})
	assert.ErrorIs(t, err, pairchat.ErrEmptySnapshot)
}

func TestSendToGoneRoomReturnsEmptySnapshot(t *testing.T) {
	_, c := newServer(t, chattest.Options{})
	snap, err := c.Send(context.Background(), pairchat.SendRequest{TabID: "tab-a", RoomID: "404", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestFormFields(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, rest.PathPost, r.URL.Path)
		got = map[string]string{}
		for k := range r.PostForm {
			got[k] = r.PostForm.Get(k)
		}
		_, _ = w.Write([]byte(`"{}"`))
	}))
	defer ts.Close()

	c := rest.NewClient(ts.URL + "/")
	_, err := c.Send(context.Background(), pairchat.SendRequest{TabID: "t", RoomID: "r", Text: "a&b", Refs: []int{2, 5}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"clientTabId": "t", "chatroom": "r", "message": "a&b", "tweets": "2,5"}, got)
}

func TestLeaveQuery(t *testing.T) {
	var query string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`"{}"`))
	}))
	defer ts.Close()

	c := rest.NewClient(ts.URL)
	require.NoError(t, c.Leave(context.Background(), pairchat.LeaveRequest{TabID: "t", RoomID: "r", Call: pairchat.LeaveWaitTimeout}))
	assert.Equal(t, "call=2&chatroom=r&clientTabId=t", query)
}

func TestErrorClassification(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case rest.PathPost:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"database down"}`))
		case rest.PathLeave:
			w.WriteHeader(http.StatusBadRequest)
		default:
			<-r.Context().Done()
		}
	}))
	defer ts.Close()
	c := rest.NewClient(ts.URL)
	ctx := context.Background()

	_, err := c.Send(ctx, pairchat.SendRequest{TabID: "t", RoomID: "r", Text: "x"})
	require.Error(t, err)
	assert.Equal(t, pairchat.ErrorServerStatus, pairchat.CodeOf(err))
	assert.Contains(t, err.Error(), "database down")

	err = c.Leave(ctx, pairchat.LeaveRequest{TabID: "t", RoomID: "r", Call: pairchat.LeaveConfirmed})
	assert.Equal(t, pairchat.ErrorServerStatus, pairchat.CodeOf(err))

	_, err = c.Poll(ctx, pairchat.PollRequest{TabID: "t", RoomID: "r", Timeout: 30 * time.Millisecond})
	assert.Equal(t, pairchat.ErrorTimeout, pairchat.CodeOf(err))
	assert.True(t, pairchat.IsTransportError(err))

	cctx, cancel := context.WithCancel(ctx)
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = c.Poll(cctx, pairchat.PollRequest{TabID: "t", RoomID: "r"})
	assert.Equal(t, pairchat.ErrorCanceled, pairchat.CodeOf(err))
}

func TestConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := rest.NewClient(url).Poll(context.Background(), pairchat.PollRequest{TabID: "t", RoomID: "r"})
	assert.Equal(t, pairchat.ErrorTransport, pairchat.CodeOf(err))
}

func TestRequestsAreTraced(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == rest.PathLeave {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"msg":"poll expired"}`))
	}))
	defer ts.Close()

	c := rest.NewClient(ts.URL)
	c.SetTracerProvider(tp)
	ctx := context.Background()
	_, err := c.Poll(ctx, pairchat.PollRequest{TabID: "t", RoomID: "r"})
	require.NoError(t, err)
	_ = c.Leave(ctx, pairchat.LeaveRequest{TabID: "t", RoomID: "r", Call: pairchat.LeaveRoomClosed})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "pairchat.rest.poll", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "pairchat.rest.leave", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
