package pairchat

import (
	"regexp"
	"strings"
	"time"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

const clockLayout = "2006-01-02T15:04:05"

var urlPattern = regexp.MustCompile(`https?://(www\.)?[-a-zA-Z0-9@:%._+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b[-a-zA-Z0-9()@:%_+.~#?&/=]*`)

// Entry is the visual representation of one event.
type Entry struct {
	Key   EventKey
	Event Event
	// Clock is the HH:MM:SS display time.
	Clock string
	// User is the display label of the author.
	User string
	Node g.Node
}

// HTML renders the entry markup.
func (e Entry) HTML() string {
	var b strings.Builder
	if e.Node != nil {
		_ = e.Node.Render(&b)
	}
	return b.String()
}

// EntryRenderer builds entries for the reconciler.
type EntryRenderer struct {
	Location   *time.Location
	AutoLink   bool
	SelfLabel  string
	OtherLabel string
}

// Render builds the entry for ev. Message bodies are escaped and newlines
// become line breaks; other event types are rendered as plain text.
func (r EntryRenderer) Render(ev Event) Entry {
	side, user := "msg-left", r.OtherLabel
	if ev.From == SenderSelf {
		side, user = "msg-right", r.SelfLabel
	}
	clock := FormatClock(ev.Timestamp, r.Location)

	var body g.Node = g.Text(ev.Body)
	if ev.IsMessage() {
		body = g.Group(r.messageBody(ev.Body))
	}

	node := h.Div(h.Class("msg "+side),
		h.Div(h.Class("msg-avatar")),
		h.Div(h.Class("msg-bubble msg-type-"+string(ev.Type)),
			h.Div(h.Class("msg-header"),
				h.Div(h.Class("msg-from"), g.Text(string(ev.From))),
				h.Div(h.Class("msg-timestamp"), g.Text(ev.Timestamp)),
				h.Div(h.Class("msg-user"), g.Text(user)),
				h.Div(h.Class("msg-time"), g.Text(clock)),
			),
			h.Div(h.Class("msg-body"), body),
		),
	)
	return Entry{Key: ev.Key(), Event: ev, Clock: clock, User: user, Node: node}
}

func (r EntryRenderer) messageBody(text string) []g.Node {
	var nodes []g.Node
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			nodes = append(nodes, h.Br())
		}
		if !r.AutoLink {
			nodes = append(nodes, g.Text(line))
			continue
		}
		nodes = append(nodes, linkify(line)...)
	}
	return nodes
}

func linkify(line string) []g.Node {
	var nodes []g.Node
	last := 0
	for _, m := range urlPattern.FindAllStringIndex(line, -1) {
		if m[0] > last {
			nodes = append(nodes, g.Text(line[last:m[0]]))
		}
		u := line[m[0]:m[1]]
		nodes = append(nodes, h.A(h.Href(u), h.Target("_blank"), g.Text(u)))
		last = m[1]
	}
	if last < len(line) {
		nodes = append(nodes, g.Text(line[last:]))
	}
	return nodes
}

// FormatClock truncates a server timestamp to whole seconds and formats it as
// HH:MM:SS in loc (UTC when nil). Timestamps are read as UTC.
func FormatClock(ts string, loc *time.Location) string {
	whole, _, _ := strings.Cut(ts, ".")
	t, err := time.ParseInLocation(clockLayout, whole, time.UTC)
	if err != nil {
		if len(whole) >= 19 && whole[13] == ':' && whole[16] == ':' {
			return whole[11:19]
		}
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04:05")
}
