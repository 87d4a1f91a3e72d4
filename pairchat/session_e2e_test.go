package pairchat_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/chattest"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/rest"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/term"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/ws"
)

type participant struct {
	s      *pairchat.Session
	screen *term.Screen
	errc   chan error
}

func config(tab string, info rest.JoinInfo) pairchat.Config {
	cfg := pairchat.DefaultConfig()
	cfg.TabID = tab
	cfg.Language = "en"
	info.Apply(&cfg)
	cfg.MsgCountLow = 1
	cfg.MsgCountHigh = 2
	return cfg
}

func start(t *testing.T, cfg pairchat.Config, tr pairchat.Transport) *participant {
	t.Helper()
	screen := term.New(&bytes.Buffer{})
	s, err := pairchat.NewSession(cfg, tr, screen.Targets())
	require.NoError(t, err)
	p := &participant{s: s, screen: screen, errc: make(chan error, 1)}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { p.errc <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return p
}

func (p *participant) waitDone(t *testing.T) {
	t.Helper()
	select {
	case err := <-p.errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "session did not finish")
	}
}

func (p *participant) waitEvents(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(p.s.Events()) >= n }, 5*time.Second, 10*time.Millisecond)
}

func runConversation(t *testing.T, srv *chattest.Server, transport func() pairchat.Transport) {
	ctx := context.Background()
	infoA := srv.Join("tab-a")
	infoB := srv.Join("tab-b")
	require.Equal(t, infoA.RoomID, infoB.RoomID)

	a := start(t, config("tab-a", infoA), transport())
	b := start(t, config("tab-b", infoB), transport())

	require.Eventually(t, func() bool {
		return a.s.Status().Phase == pairchat.PhaseActive && b.s.Status().Phase == pairchat.PhaseActive
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, a.s.Send(ctx, "hello", []int{1}))
	b.waitEvents(t, 1)
	require.NoError(t, b.s.Send(ctx, "hi there", nil))
	a.waitEvents(t, 2)

	q, err := a.s.RequestStop(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, q)
	require.NoError(t, a.s.ConfirmStop(ctx))

	a.waitDone(t)
	b.waitDone(t)

	assert.Equal(t, pairchat.ReasonStopped, a.s.Status().Reason)
	assert.Equal(t, pairchat.ReasonRoomClosed, b.s.Status().Reason)

	final, ok := srv.Room(infoA.RoomID)
	require.True(t, ok)
	assert.ElementsMatch(t, []pairchat.LeaveCall{pairchat.LeaveConfirmed, pairchat.LeaveRoomClosed}, final.Leaves)
	assert.Equal(t, []string{"1"}, final.Refs)

	transcript := b.screen.Transcript()
	require.GreaterOrEqual(t, len(transcript), 2)
	assert.Equal(t, "hello", transcript[0].Event.Body)
	assert.Equal(t, pairchat.SenderOther, transcript[0].Event.From)
	assert.Equal(t, "hi there", transcript[1].Event.Body)
	assert.Equal(t, pairchat.SenderSelf, transcript[1].Event.From)
}

func TestConversationOverHTTP(t *testing.T) {
	srv := chattest.New(chattest.Options{WrapJSON: true, PollWindow: time.Second})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	runConversation(t, srv, func() pairchat.Transport { return rest.NewClient(ts.URL) })
}

func TestConversationOverWebSocket(t *testing.T) {
	srv := chattest.New(chattest.Options{PollWindow: time.Second})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	runConversation(t, srv, func() pairchat.Transport {
		cfg := ws.DefaultConfig()
		cfg.URL = ts.URL + chattest.PathWS
		c := ws.NewClient(cfg)
		require.NoError(t, c.Connect(context.Background()))
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}
