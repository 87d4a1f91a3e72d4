package term

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
)

var renderer = pairchat.EntryRenderer{SelfLabel: "you", OtherLabel: "partner"}

func msg(ts string, from pairchat.Sender, body string) pairchat.Event {
	return pairchat.Event{Timestamp: ts, From: from, Type: pairchat.EventMessage, Body: body}
}

func TestScreenWithReconciler(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)
	r := pairchat.NewReconciler(s, renderer.Render)

	log := pairchat.NewEventLog()
	log.Merge([]pairchat.Event{msg("2024-01-01T10:00:03", pairchat.SenderSelf, "third")})
	r.Reconcile(log.Events())
	log.Merge([]pairchat.Event{msg("2024-01-01T10:00:01.5", pairchat.SenderOther, "first\nsecond line")})
	r.Reconcile(log.Events())

	assert.Equal(t, "[10:00:03] you: third\n[10:00:01] partner: first\n    second line (late)\n", out.String())

	transcript := s.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "first\nsecond line", transcript[0].Event.Body)
	assert.Equal(t, "third", transcript[1].Event.Body)

	out.Reset()
	s.Redraw()
	assert.Equal(t, "[10:00:01] partner: first\n    second line\n[10:00:03] you: third\n", out.String())
}

func TestNoticeAndProgressPrintOnChange(t *testing.T) {
	var out bytes.Buffer
	s := New(&out)

	n := pairchat.Notice{Kind: pairchat.NoticeWaiting, Text: "waiting 5s"}
	s.SetNotice(n)
	s.SetNotice(n)
	s.SetNotice(pairchat.Notice{})
	p := pairchat.Progress{Level: pairchat.ProgressEnough, Text: "enough"}
	s.SetProgress(p)
	s.SetProgress(p)
	s.Alert("Notice", "wait for your partner")

	assert.Equal(t, "* waiting 5s\n[enough] enough\n! Notice: wait for your partner\n", out.String())
}

func TestFormatStatusMarker(t *testing.T) {
	e := renderer.Render(pairchat.Event{Timestamp: "2024-01-01T10:00:00", From: pairchat.SenderOther, Type: "left"})
	assert.Equal(t, "[10:00:00] partner -- left --", Format(e))
}
