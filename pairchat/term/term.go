// Package term draws a chat session as plain text lines, for terminals and
// logs. Output is append-only; entries inserted above already printed lines
// are printed when they arrive and marked as late.
package term

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
)

// Screen implements every render target of a session.
type Screen struct {
	mu       sync.Mutex
	w        io.Writer
	entries  []*line
	notice   pairchat.Notice
	progress string
}

type line struct {
	entry pairchat.Entry
}

var (
	_ pairchat.MessageList       = (*Screen)(nil)
	_ pairchat.ProgressIndicator = (*Screen)(nil)
	_ pairchat.StatusArea        = (*Screen)(nil)
	_ pairchat.Modal             = (*Screen)(nil)
)

// New returns a screen writing to w.
func New(w io.Writer) *Screen {
	return &Screen{w: w}
}

// Targets returns the screen as session render targets.
func (s *Screen) Targets() pairchat.Targets {
	return pairchat.Targets{Messages: s, Progress: s, Status: s, Modal: s}
}

// Append prints e below everything else.
func (s *Screen) Append(e pairchat.Entry) pairchat.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &line{entry: e}
	s.entries = append(s.entries, l)
	s.printf("%s\n", Format(e))
	return l
}

// InsertBefore records e above h and prints it marked as late.
func (s *Screen) InsertBefore(h pairchat.Handle, e pairchat.Entry) pairchat.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := &line{entry: e}
	i := s.indexOf(h)
	if i < 0 {
		i = len(s.entries)
	}
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = l
	s.printf("%s (late)\n", Format(e))
	return l
}

// ScrollToBottom is a no-op; a terminal always shows the latest line.
func (s *Screen) ScrollToBottom() {}

// SetProgress prints the progress text when it changed.
func (s *Screen) SetProgress(p pairchat.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Text == "" || p.Text == s.progress {
		return
	}
	s.progress = p.Text
	s.printf("[%s] %s\n", p.Level, p.Text)
}

// SetNotice prints the notice when it changed.
func (s *Screen) SetNotice(n pairchat.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == s.notice {
		return
	}
	s.notice = n
	if n.Kind == pairchat.NoticeNone || n.Text == "" {
		return
	}
	s.printf("* %s\n", n.Text)
}

// Alert prints an alert.
func (s *Screen) Alert(title, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printf("! %s: %s\n", title, msg)
}

// Transcript returns the entries in display order.
func (s *Screen) Transcript() []pairchat.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pairchat.Entry, len(s.entries))
	for i, l := range s.entries {
		out[i] = l.entry
	}
	return out
}

// Redraw prints the whole transcript in display order.
func (s *Screen) Redraw() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.entries {
		s.printf("%s\n", Format(l.entry))
	}
}

func (s *Screen) indexOf(h pairchat.Handle) int {
	for i, l := range s.entries {
		if l == h {
			return i
		}
	}
	return -1
}

func (s *Screen) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.w, format, args...)
}

// Format renders an entry as one line. Message line breaks are indented
// under the header.
func Format(e pairchat.Entry) string {
	if !e.Event.IsMessage() {
		return fmt.Sprintf("[%s] %s -- %s --", e.Clock, e.User, e.Event.Type)
	}
	body := strings.ReplaceAll(e.Event.Body, "\n", "\n    ")
	return fmt.Sprintf("[%s] %s: %s", e.Clock, e.User, body)
}
