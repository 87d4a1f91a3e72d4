package pairchat

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/internal/locale"
)

// Session is one participant's view of a two-party chat room. All state is
// owned by the goroutine running Run; public methods hand work to it.
type Session struct {
	cfg        Config
	transport  Transport
	targets    Targets
	logger     Logger
	metrics    *Metrics
	clock      clock.Clock
	text       *locale.Printer
	dispatcher Dispatcher

	cmds      chan func()
	pollDone  chan pollResult
	sendDone  chan sendResult
	leaveDone chan leaveResult
	stopped   chan struct{}
	running   atomic.Bool

	// Owned by the Run goroutine.
	runCtx        context.Context
	log           *EventLog
	view          *Reconciler
	phase         Phase
	reason        Reason
	started       bool
	leaving       bool
	timedOut      bool
	stopConfirmed bool
	tooLongShown  bool
	slowWarned    bool
	cursor        string
	notice        Notice
	pollSeq       uint64
	pollCancel    context.CancelFunc
	sending       bool
	leaveInFlight bool
	leaveAcked    bool
	failures      int
	usedRefs      map[int]struct{}
	waitStart     time.Time
	waitTicker    *clock.Ticker
	waitDeadline  *clock.Timer
	repoll        *clock.Timer

	mu     sync.RWMutex
	status Status
	shown  []Event
}

type pollResult struct {
	seq     uint64
	snap    *Snapshot
	err     error
	started time.Time
}

type sendResult struct {
	snap *Snapshot
	err  error
}

type leaveResult struct {
	call LeaveCall
	err  error
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger overrides the logger.
func WithLogger(l Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records session metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// NewSession validates cfg and builds a session that talks to t and draws
// into targets.
func NewSession(cfg Config, t Transport, targets Targets, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewError(ErrorInvalidConfig, "nil transport")
	}
	s := &Session{
		cfg:       cfg,
		transport: t,
		targets:   targets.withDefaults(),
		logger:    noopLogger{},
		clock:     clock.New(),
		text:      locale.New(cfg.Language),
		cmds:      make(chan func()),
		pollDone:  make(chan pollResult),
		sendDone:  make(chan sendResult),
		leaveDone: make(chan leaveResult),
		stopped:   make(chan struct{}),
		log:       NewEventLog(),
		phase:     PhaseWaiting,
		usedRefs:  make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	renderer := EntryRenderer{
		Location:   cfg.Location,
		AutoLink:   cfg.AutoLink,
		SelfLabel:  s.text.Text(locale.UserSelf),
		OtherLabel: s.text.Text(locale.UserOther),
	}
	s.view = NewReconciler(s.targets.Messages, renderer.Render)
	s.status = Status{Phase: PhaseWaiting}
	return s, nil
}

// OnPhaseChange registers a callback for lifecycle changes.
func (s *Session) OnPhaseChange(fn func(StateEvent)) { s.dispatcher.SetOnPhaseChange(fn) }

// OnMerge registers a callback for events added to the log.
func (s *Session) OnMerge(fn func(MergeEvent)) { s.dispatcher.SetOnMerge(fn) }

// OnLeave registers a callback for completed leave notifications.
func (s *Session) OnLeave(fn func(LeaveEvent)) { s.dispatcher.SetOnLeave(fn) }

// OnError registers a callback for errors the loop recovers from.
func (s *Session) OnError(fn func(error)) { s.dispatcher.SetOnError(fn) }

// Status returns a snapshot of the session state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Events returns a copy of the event log.
func (s *Session) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.shown))
	copy(out, s.shown)
	return out
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.stopped }

// Run drives the session until it has left the room or ctx ends. It may be
// called once.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return NewError(ErrorSessionClosed, "session already ran")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	defer close(s.stopped)
	defer cancel()
	defer s.stopTimers()

	s.begin()
	s.publish()
	for !s.finished() {
		select {
		case <-ctx.Done():
			s.abortPoll()
			return ctx.Err()
		case fn := <-s.cmds:
			fn()
		case r := <-s.pollDone:
			s.handlePoll(r)
		case r := <-s.sendDone:
			s.handleSend(r)
		case r := <-s.leaveDone:
			s.handleLeave(r)
		case <-timerC(s.waitTicker):
			s.waitTick()
		case <-deadlineC(s.waitDeadline):
			s.waitDeadline = nil
			s.waitExpired()
		case <-deadlineC(s.repoll):
			s.repoll = nil
			s.startPoll()
		}
		s.publish()
	}
	s.logger.Info("session finished", s.fields(map[string]any{"reason": s.reason.String()}))
	return nil
}

// Send posts text with the given supplementary-comment references. Blank
// text and out-of-turn messages are refused with an alert. The poll in
// flight is aborted and re-issued once the send completes.
func (s *Session) Send(ctx context.Context, text string, refs []int) error {
	return s.exec(ctx, func() error { return s.send(strings.TrimSpace(text), refs) })
}

// RequestStop handles a press of the stop control. While the conversation
// is too short it alerts and returns an ErrorTooShort error. Otherwise it
// returns the question to confirm with ConfirmStop, or "" when the session
// already stopped without needing one.
func (s *Session) RequestStop(ctx context.Context) (string, error) {
	var question string
	err := s.exec(ctx, func() error {
		var err error
		question, err = s.requestStop()
		return err
	})
	return question, err
}

// ConfirmStop ends the conversation after the participant agreed.
func (s *Session) ConfirmStop(ctx context.Context) error {
	return s.exec(ctx, s.confirmStop)
}

func (s *Session) exec(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- func() { errc <- fn() }:
	case <-s.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) begin() {
	if s.cfg.MaxWait > 0 {
		s.waitStart = s.clock.Now()
		s.waitTicker = s.clock.Ticker(s.cfg.WaitTick)
		s.waitDeadline = s.clock.Timer(s.cfg.MaxWait)
		s.setNotice(NoticeWaiting, locale.NoticeWaiting, roundSeconds(s.cfg.MaxWait))
	} else if !s.cfg.FirstUser {
		s.startDialog()
	}
	s.publishProgress()
	s.startPoll()
}

func (s *Session) finished() bool {
	if !s.leaving || s.pollCancel != nil || s.sending || s.leaveInFlight {
		return false
	}
	return s.leaveAcked || s.phase == PhaseOver
}

// Poll loop

func (s *Session) startPoll() {
	if s.leaving || s.sending || s.pollCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	s.pollSeq++
	seq := s.pollSeq
	s.pollCancel = cancel
	req := PollRequest{TabID: s.cfg.TabID, RoomID: s.cfg.RoomID, Since: s.cursor, Timeout: s.cfg.PollTimeout}
	started := s.clock.Now()
	s.publish()
	s.logger.Debug("poll", s.fields(map[string]any{"since": req.Since, "seq": seq}))
	go func() {
		snap, err := s.transport.Poll(ctx, req)
		select {
		case s.pollDone <- pollResult{seq: seq, snap: snap, err: err, started: started}:
		case <-s.stopped:
		}
	}()
}

// abortPoll cancels the request in flight; whatever it returns is ignored.
func (s *Session) abortPoll() {
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.pollSeq++
}

func (s *Session) handlePoll(r pollResult) {
	if r.seq != s.pollSeq {
		s.logger.Debug("stale poll result dropped", s.fields(map[string]any{"seq": r.seq}))
		return
	}
	s.pollCancel()
	s.pollCancel = nil
	elapsed := s.clock.Since(r.started).Seconds()

	if r.err != nil {
		s.pollFailed(r.err, elapsed)
		return
	}
	s.failures = 0
	snap := r.snap
	switch {
	case snap.Empty():
		s.logger.Warn("empty snapshot", s.fields(nil))
		s.scheduleRepoll(s.cfg.MalformedRetryDelay)
		s.metrics.poll("empty", elapsed)
		return
	case snap.Expired():
		s.metrics.poll("expired", elapsed)
		s.startPoll()
		return
	}
	s.metrics.poll("snapshot", elapsed)

	if snap.BothPresent() {
		if !s.started {
			s.startDialog()
		}
	} else if snap.Closed {
		s.roomClosed()
	}
	s.apply(snap)
	s.startPoll()
}

func (s *Session) pollFailed(err error, elapsed float64) {
	if s.runCtx.Err() != nil {
		return
	}
	if IsSnapshotError(err) {
		s.logger.Warn("unusable snapshot", s.fields(map[string]any{"error": err.Error()}))
		s.scheduleRepoll(s.cfg.MalformedRetryDelay)
		s.metrics.poll("malformed", elapsed)
		s.dispatcher.fireError(err)
		return
	}
	s.failures++
	s.logger.Warn("poll failed", s.fields(map[string]any{"error": err.Error(), "failures": s.failures}))
	s.scheduleRepoll(s.cfg.RetryDelay)
	s.metrics.poll("error", elapsed)
	s.metrics.retry()
	s.dispatcher.fireError(err)
}

func (s *Session) scheduleRepoll(d time.Duration) {
	if s.leaving {
		return
	}
	if d <= 0 {
		s.startPoll()
		return
	}
	if s.repoll == nil {
		s.repoll = s.clock.Timer(d)
	}
}

// apply merges a snapshot into the log, then brings the view in line.
func (s *Session) apply(snap *Snapshot) {
	if snap.Modified != "" {
		s.cursor = snap.Modified
	}
	added := s.log.Merge(snap.LatestEvents)
	rendered := s.view.Reconcile(s.log.events)
	s.metrics.merged(len(added), rendered)
	if len(added) > 0 {
		s.mu.Lock()
		s.shown = s.log.Events()
		s.mu.Unlock()
	}
	s.publishProgress()
	s.promptIfOtherSpoke()
	s.dispatcher.merge(MergeEvent{Added: added, Cursor: s.cursor})
}

func (s *Session) promptIfOtherSpoke() {
	last, ok := s.log.Last()
	if !ok || last.From != SenderOther || !last.IsMessage() || s.leaving {
		return
	}
	if s.cfg.FirstUser {
		s.setNotice(NoticeRespond, locale.NoticeRespondGuided)
		return
	}
	s.setNotice(NoticeRespond, locale.NoticeRespond)
}

func (s *Session) publishProgress() {
	p := ComputeProgress(s.cfg.Thresholds(), s.log.MessageCount(SenderSelf), s.log.MessageCount(SenderOther))
	p.Text = progressText(s.text, p)
	s.targets.Progress.SetProgress(p)
	s.mu.Lock()
	s.status.Progress = p
	s.mu.Unlock()
}

// Sending

func (s *Session) send(text string, refs []int) error {
	if s.leaving {
		return ErrLeaving
	}
	if text == "" {
		s.alert(locale.AlertEmptyMessage)
		return ErrEmptyMessage
	}
	last, ok := s.log.Last()
	if (!ok && !s.cfg.FirstUser) || (ok && last.From == SenderSelf && last.IsMessage()) {
		s.alert(locale.AlertNotYourTurn)
		return ErrNotYourTurn
	}
	if s.sending {
		return ErrSendInFlight
	}

	s.abortPoll()
	s.stopRepoll()
	s.setNotice(NoticeAwaitPartner, locale.NoticeAwaitPartner)
	req := SendRequest{TabID: s.cfg.TabID, RoomID: s.cfg.RoomID, Text: text, Refs: s.claimRefs(refs)}
	s.sending = true
	go func() {
		snap, err := s.transport.Send(s.runCtx, req)
		select {
		case s.sendDone <- sendResult{snap: snap, err: err}:
		case <-s.stopped:
		}
	}()
	return nil
}

// claimRefs drops references already used in this session and marks the
// rest as used.
func (s *Session) claimRefs(refs []int) []int {
	var fresh []int
	for _, r := range refs {
		if _, used := s.usedRefs[r]; used {
			continue
		}
		s.usedRefs[r] = struct{}{}
		fresh = append(fresh, r)
	}
	return fresh
}

func (s *Session) handleSend(r sendResult) {
	s.sending = false
	if r.err != nil {
		s.logger.Error("send failed", s.fields(map[string]any{"error": r.err.Error()}))
		s.dispatcher.fireError(r.err)
		s.startPoll()
		return
	}
	s.metrics.sent()
	if !r.snap.Empty() {
		s.apply(r.snap)
	}
	if last, ok := s.log.Last(); ok && last.From == SenderSelf && last.IsMessage() && !s.leaving {
		s.setNotice(NoticeAwaitPartner, locale.NoticeAwaitPartner)
	}
	s.targets.Messages.ScrollToBottom()

	th := s.cfg.Thresholds()
	if !s.leaving && !s.tooLongShown && s.log.MessageCount(SenderSelf) >= th.High && s.log.MessageCount(SenderOther) >= th.High {
		s.tooLongShown = true
		s.alert(locale.AlertTooLong)
	}
	s.startPoll()
}

// Lifecycle

func (s *Session) startDialog() {
	if s.started || s.leaving {
		return
	}
	s.started = true
	s.stopWaitTimers()
	old := s.phase
	s.phase = PhaseActive
	if s.cfg.FirstUser {
		s.setNotice(NoticeStart, locale.NoticeStartFirst)
	} else {
		s.setNotice(NoticeAwaitPartner, locale.NoticeAwaitPartner)
	}
	s.transition(old, ReasonDialogStarted)
}

func (s *Session) roomClosed() {
	if s.phase == PhaseOver {
		return
	}
	old := s.phase
	s.enterLeaving()
	s.phase = PhaseOver
	if !s.stopConfirmed {
		s.setNotice(NoticeChatOver, locale.NoticeChatOver)
	}
	s.transition(old, ReasonRoomClosed)
	s.leave(LeaveRoomClosed)
}

func (s *Session) requestStop() (string, error) {
	if s.phase == PhaseOver {
		return "", NewError(ErrorLeaving, "conversation is over")
	}
	if s.timedOut {
		s.stopUnconfirmed()
		return "", nil
	}
	if err := s.checkGate(); err != nil {
		return "", err
	}
	return s.text.Text(locale.ConfirmStop), nil
}

func (s *Session) confirmStop() error {
	if s.phase == PhaseOver {
		return NewError(ErrorLeaving, "conversation is over")
	}
	if s.timedOut {
		s.stopUnconfirmed()
		return nil
	}
	if err := s.checkGate(); err != nil {
		return err
	}
	old := s.phase
	s.stopConfirmed = true
	s.enterLeaving()
	s.phase = PhaseOver
	if s.started {
		s.setNotice(NoticeChatOver, locale.NoticeChatOver)
	} else {
		s.setNotice(NoticeThanks, locale.NoticeThanks)
	}
	s.transition(old, ReasonStopped)
	s.leave(LeaveConfirmed)
	return nil
}

// stopUnconfirmed ends a session whose wait already timed out. The leave
// notification is repeated only if the timeout one did not get through.
func (s *Session) stopUnconfirmed() {
	old := s.phase
	s.enterLeaving()
	s.phase = PhaseOver
	s.transition(old, ReasonStopped)
	if !s.leaveAcked {
		s.leave(LeaveUnconfirmed)
	}
}

func (s *Session) checkGate() error {
	if !s.started {
		return nil
	}
	remaining, err := CheckStopGate(s.cfg.Thresholds(), s.log.MessageCount(SenderSelf), s.log.MessageCount(SenderOther))
	if err != nil {
		s.alert(locale.AlertTooShort, remaining)
		return err
	}
	return nil
}

func (s *Session) waitTick() {
	if s.started || s.leaving || s.stopConfirmed {
		return
	}
	elapsed := s.clock.Since(s.waitStart)
	if s.cfg.SlowPartnerAfter > 0 && elapsed >= s.cfg.SlowPartnerAfter {
		if !s.slowWarned {
			s.slowWarned = true
			s.logger.Info("partner is slow to join", s.fields(map[string]any{"elapsed": elapsed.String()}))
			s.setNotice(NoticeSlowPartner, locale.NoticeSlowPartner)
		}
		return
	}
	s.setNotice(NoticeWaiting, locale.NoticeWaiting, roundSeconds(s.cfg.MaxWait-elapsed))
}

func (s *Session) waitExpired() {
	if s.started || s.leaving {
		return
	}
	s.timedOut = true
	s.enterLeaving()
	s.setNotice(NoticeTryLater, locale.NoticeTryLater)
	s.transition(s.phase, ReasonWaitTimeout)
	s.leave(LeaveWaitTimeout)
}

// enterLeaving sets the leaving flag and drops every pending poll and timer.
func (s *Session) enterLeaving() {
	s.leaving = true
	s.abortPoll()
	s.stopWaitTimers()
	s.stopRepoll()
}

func (s *Session) transition(old Phase, reason Reason) {
	s.reason = reason
	ev := StateEvent{OldPhase: old, NewPhase: s.phase, Leaving: s.leaving, Reason: reason}
	s.logger.Info("lifecycle", s.fields(map[string]any{
		"from":    old.String(),
		"to":      s.phase.String(),
		"leaving": s.leaving,
		"reason":  reason.String(),
	}))
	s.publish()
	s.dispatcher.phase(ev)
}

// leave fires the leave notification unless one is in flight or already
// acknowledged.
func (s *Session) leave(call LeaveCall) {
	if s.leaveAcked || s.leaveInFlight {
		return
	}
	s.leaveInFlight = true
	s.metrics.leave(call)
	s.logger.Info("leaving room", s.fields(map[string]any{"call": int(call)}))
	req := LeaveRequest{TabID: s.cfg.TabID, RoomID: s.cfg.RoomID, Call: call}
	go func() {
		err := s.transport.Leave(s.runCtx, req)
		select {
		case s.leaveDone <- leaveResult{call: call, err: err}:
		case <-s.stopped:
		}
	}()
}

func (s *Session) handleLeave(r leaveResult) {
	s.leaveInFlight = false
	if r.err != nil {
		s.logger.Warn("leave failed", s.fields(map[string]any{"call": int(r.call), "error": r.err.Error()}))
		s.dispatcher.fireError(r.err)
	} else {
		s.leaveAcked = true
		s.abortPoll()
	}
	s.dispatcher.leave(LeaveEvent{Call: r.call, Err: r.err})
}

// Helpers

func (s *Session) setNotice(kind NoticeKind, key locale.Key, args ...any) {
	s.notice = Notice{Kind: kind, Text: s.text.Text(key, args...)}
	s.targets.Status.SetNotice(s.notice)
}

func (s *Session) alert(key locale.Key, args ...any) {
	s.targets.Modal.Alert(s.text.Text(locale.AlertTitle), s.text.Text(key, args...))
}

func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Phase = s.phase
	s.status.Leaving = s.leaving
	s.status.TimedOut = s.timedOut
	s.status.Reason = s.reason
	s.status.Cursor = s.cursor
	s.status.Notice = s.notice
	s.status.Events = s.log.Len()
	s.status.SelfCount = s.log.MessageCount(SenderSelf)
	s.status.OtherCount = s.log.MessageCount(SenderOther)
}

func (s *Session) stopWaitTimers() {
	if s.waitTicker != nil {
		s.waitTicker.Stop()
		s.waitTicker = nil
	}
	if s.waitDeadline != nil {
		s.waitDeadline.Stop()
		s.waitDeadline = nil
	}
}

func (s *Session) stopRepoll() {
	if s.repoll != nil {
		s.repoll.Stop()
		s.repoll = nil
	}
}

func (s *Session) stopTimers() {
	s.stopWaitTimers()
	s.stopRepoll()
}

func (s *Session) fields(extra map[string]any) map[string]any {
	f := map[string]any{"room": s.cfg.RoomID, "tab": s.cfg.TabID}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func timerC(t *clock.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func deadlineC(t *clock.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func roundSeconds(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Seconds()))
}
