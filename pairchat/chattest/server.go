// Package chattest provides an in-memory two-party chat server speaking the
// same long-poll and WebSocket protocols as the production server. It pairs
// tabs into rooms in join order.
package chattest

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat"
	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/rest"
)

// EventLeft marks a participant leaving the room.
const EventLeft pairchat.EventType = "left"

// Options configures a Server.
type Options struct {
	// PollWindow is how long a poll is held before "poll expired".
	PollWindow time.Duration
	// DelayForPartner is reported to joining tabs, in seconds.
	DelayForPartner int
	MsgCountLow     int
	MsgCountHigh    int
	// WrapJSON encodes every response body a second time as a JSON string.
	WrapJSON bool
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// DefaultOptions returns options suitable for local development.
func DefaultOptions() Options {
	return Options{
		PollWindow:   25 * time.Second,
		MsgCountLow:  5,
		MsgCountHigh: 10,
		Clock:        clock.New(),
		Logger:       zerolog.Nop(),
	}
}

// RoomInfo is a copy of a room's state.
type RoomInfo struct {
	ID        string
	Initiator string
	Users     []string
	Closed    bool
	Events    []pairchat.Event // From holds the author's tab id
	Refs      []string
	Leaves    []pairchat.LeaveCall
}

type entry struct {
	ts   string
	tab  string
	typ  pairchat.EventType
	body string
}

type room struct {
	id        string
	initiator string
	users     []string
	closed    bool
	events    []entry
	refs      []string
	leaves    []pairchat.LeaveCall
	modified  string
	last      time.Time
	changed   chan struct{}
}

// Server is the in-memory chat server.
type Server struct {
	opts   Options
	router chi.Router

	mu      sync.Mutex
	rooms   map[string]*room
	waiting string
	nextID  int
	done    chan struct{}
	closed  bool
}

// New builds a server. Zero option fields take their defaults.
func New(opts Options) *Server {
	def := DefaultOptions()
	if opts.PollWindow <= 0 {
		opts.PollWindow = def.PollWindow
	}
	if opts.MsgCountLow <= 0 {
		opts.MsgCountLow = def.MsgCountLow
	}
	if opts.MsgCountHigh < opts.MsgCountLow {
		opts.MsgCountHigh = max(def.MsgCountHigh, opts.MsgCountLow)
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	s := &Server{
		opts:  opts,
		rooms: make(map[string]*room),
		done:  make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post(rest.PathJoin, s.handleJoin)
	r.Get(rest.PathPoll, s.handlePoll)
	r.Post(rest.PathPost, s.handlePost)
	r.Get(rest.PathLeave, s.handleLeave)
	r.Get(PathWS, s.handleWS)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Close releases every held poll. Later polls expire immediately.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// Join places tab into the room waiting for a partner, or opens a new one.
func (s *Server) Join(tab string) rest.JoinInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rooms[s.waiting]; ok && !r.closed && len(r.users) == 1 && r.users[0] != tab {
		r.users = append(r.users, tab)
		// A full room is closed to newcomers.
		r.closed = true
		s.waiting = ""
		s.touch(r)
		s.opts.Logger.Info().Str("room", r.id).Str("tab", tab).Msg("partner joined")
		return s.joinInfo(r, false)
	}

	s.nextID++
	r := &room{
		id:        strconv.Itoa(s.nextID),
		initiator: tab,
		users:     []string{tab},
		changed:   make(chan struct{}),
	}
	s.rooms[r.id] = r
	s.waiting = r.id
	s.touch(r)
	s.opts.Logger.Info().Str("room", r.id).Str("tab", tab).Msg("room opened")
	return s.joinInfo(r, true)
}

func (s *Server) joinInfo(r *room, first bool) rest.JoinInfo {
	delay := 0
	if first {
		delay = s.opts.DelayForPartner
	}
	return rest.JoinInfo{
		RoomID:          r.id,
		FirstUser:       first,
		MsgCountLow:     s.opts.MsgCountLow,
		MsgCountHigh:    s.opts.MsgCountHigh,
		DelayForPartner: delay,
		PollTimeout:     int((s.opts.PollWindow + 5*time.Second) / time.Second),
	}
}

// Poll returns the room as seen by tab once it changed after since, or the
// expired sentinel when nothing changed within the poll window. A nil
// snapshot means the room does not exist.
func (s *Server) Poll(ctx context.Context, tab, roomID, since string) (*pairchat.Snapshot, error) {
	timer := s.opts.Clock.Timer(s.opts.PollWindow)
	defer timer.Stop()
	for {
		s.mu.Lock()
		r, ok := s.rooms[roomID]
		if !ok {
			s.mu.Unlock()
			return nil, nil
		}
		if since == "" || r.modified > since {
			snap := s.snapshot(r, tab)
			s.mu.Unlock()
			return snap, nil
		}
		changed := r.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return &pairchat.Snapshot{Msg: pairchat.PollExpired}, nil
		case <-s.done:
			return &pairchat.Snapshot{Msg: pairchat.PollExpired}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Post appends a message from tab. It returns nil when tab is not in the room.
func (s *Server) Post(tab, roomID, text, refs string) *pairchat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok || !slices.Contains(r.users, tab) {
		return nil
	}
	s.appendEvent(r, tab, pairchat.EventMessage, text)
	if refs != "" {
		r.refs = append(r.refs, refs)
	}
	return s.snapshot(r, tab)
}

// Leave removes tab from the room and closes it.
func (s *Server) Leave(tab, roomID string, call pairchat.LeaveCall) *pairchat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	r.leaves = append(r.leaves, call)
	i := slices.Index(r.users, tab)
	if i < 0 {
		return nil
	}
	r.users = slices.Delete(r.users, i, i+1)
	r.closed = true
	if s.waiting == r.id {
		s.waiting = ""
	}
	s.appendEvent(r, tab, EventLeft, "")
	s.opts.Logger.Info().Str("room", r.id).Str("tab", tab).Int("call", int(call)).Msg("tab left")
	return s.snapshot(r, tab)
}

// Room returns a copy of the room state.
func (s *Server) Room(id string) (RoomInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return RoomInfo{}, false
	}
	info := RoomInfo{
		ID:        r.id,
		Initiator: r.initiator,
		Users:     slices.Clone(r.users),
		Closed:    r.closed,
		Refs:      slices.Clone(r.refs),
		Leaves:    slices.Clone(r.leaves),
	}
	for _, e := range r.events {
		info.Events = append(info.Events, pairchat.Event{Timestamp: e.ts, From: pairchat.Sender(e.tab), Type: e.typ, Body: e.body})
	}
	return info, true
}

// Drop deletes a room, as the production server does when it deallocates one.
func (s *Server) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		delete(s.rooms, id)
		close(r.changed)
		if s.waiting == id {
			s.waiting = ""
		}
	}
}

func (s *Server) appendEvent(r *room, tab string, typ pairchat.EventType, body string) {
	r.events = append(r.events, entry{ts: s.touch(r), tab: tab, typ: typ, body: body})
}

// touch stamps the room as modified and wakes its pollers. Stamps are
// strictly increasing within a room.
func (s *Server) touch(r *room) string {
	now := s.opts.Clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	r.modified = isoformat(now)
	close(r.changed)
	r.changed = make(chan struct{})
	return r.modified
}

func (s *Server) snapshot(r *room, viewer string) *pairchat.Snapshot {
	snap := &pairchat.Snapshot{
		ID:           r.id,
		Users:        slices.Clone(r.users),
		Closed:       pairchat.Flag(r.closed),
		Modified:     r.modified,
		LatestEvents: make([]pairchat.Event, 0, len(r.events)),
	}
	for _, e := range r.events {
		from := pairchat.SenderOther
		if e.tab == viewer {
			from = pairchat.SenderSelf
		}
		snap.LatestEvents = append(snap.LatestEvents, pairchat.Event{Timestamp: e.ts, From: from, Type: e.typ, Body: e.body})
	}
	return snap
}

// isoformat renders t the way the production server does: microseconds,
// omitted when zero.
func isoformat(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05.000000")
}

// HTTP handlers

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tab := r.PostForm.Get(rest.ParamTabID)
	if tab == "" {
		http.Error(w, "missing "+rest.ParamTabID, http.StatusBadRequest)
		return
	}
	s.writeJSON(w, s.Join(tab))
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has(rest.ParamTabID) || !q.Has(rest.ParamRoomID) || !q.Has(rest.ParamTimestamp) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	snap, err := s.Poll(r.Context(), q.Get(rest.ParamTabID), q.Get(rest.ParamRoomID), q.Get(rest.ParamTimestamp))
	if err != nil {
		return
	}
	s.writeSnapshot(w, snap)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := r.PostForm
	if !f.Has(rest.ParamTabID) || !f.Has(rest.ParamChatroom) || !f.Has(rest.ParamMessage) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.writeSnapshot(w, s.Post(f.Get(rest.ParamTabID), f.Get(rest.ParamChatroom), f.Get(rest.ParamMessage), f.Get(rest.ParamRefs)))
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has(rest.ParamTabID) || !q.Has(rest.ParamChatroom) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	call, _ := strconv.Atoi(q.Get(rest.ParamCall))
	s.writeSnapshot(w, s.Leave(q.Get(rest.ParamTabID), q.Get(rest.ParamChatroom), pairchat.LeaveCall(call)))
}

func (s *Server) writeSnapshot(w http.ResponseWriter, snap *pairchat.Snapshot) {
	if snap == nil {
		s.writeRaw(w, []byte("{}"))
		return
	}
	s.writeJSON(w, snap)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.opts.Logger.Error().Err(err).Msg("encode response")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeRaw(w, data)
}

func (s *Server) writeRaw(w http.ResponseWriter, data []byte) {
	if s.opts.WrapJSON {
		data, _ = json.Marshal(string(data))
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
