package pairchat

// Handle identifies a node created by a MessageList.
type Handle any

// MessageList is the container rendered entries are placed into.
type MessageList interface {
	// InsertBefore places e immediately before the node identified by h.
	InsertBefore(h Handle, e Entry) Handle
	// Append places e after every existing node.
	Append(e Entry) Handle
	ScrollToBottom()
}

// ProgressIndicator shows the conversation length state.
type ProgressIndicator interface {
	SetProgress(p Progress)
}

// NoticeKind classifies what the status area shows.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeStart
	NoticeAwaitPartner
	NoticeRespond
	NoticeWaiting
	NoticeSlowPartner
	NoticeTryLater
	NoticeChatOver
	NoticeThanks
)

// Notice is the content of the status area. NoticeNone hides it.
type Notice struct {
	Kind NoticeKind
	Text string
}

// StatusArea shows notices to the participant.
type StatusArea interface {
	SetNotice(n Notice)
}

// Modal shows blocking alerts.
type Modal interface {
	Alert(title, msg string)
}

// Targets bundles the render targets a session writes to. Nil members are
// replaced with no-ops.
type Targets struct {
	Messages MessageList
	Progress ProgressIndicator
	Status   StatusArea
	Modal    Modal
}

func (t Targets) withDefaults() Targets {
	if t.Messages == nil {
		t.Messages = discardList{}
	}
	if t.Progress == nil {
		t.Progress = discardTargets{}
	}
	if t.Status == nil {
		t.Status = discardTargets{}
	}
	if t.Modal == nil {
		t.Modal = discardTargets{}
	}
	return t
}

type discardTargets struct{}

func (discardTargets) SetProgress(Progress) {}
func (discardTargets) SetNotice(Notice)     {}
func (discardTargets) Alert(string, string) {}

type discardList struct{}

func (discardList) InsertBefore(Handle, Entry) Handle { return nil }
func (discardList) Append(Entry) Handle               { return nil }
func (discardList) ScrollToBottom()                   {}

type renderedNode struct {
	key    EventKey
	handle Handle
}

// Reconciler keeps a MessageList in the same order as an EventLog. It keeps
// its own record of what was rendered, so nodes are never read back.
type Reconciler struct {
	list   MessageList
	render func(Event) Entry
	nodes  []renderedNode
	index  map[EventKey]Handle
}

// NewReconciler returns a reconciler drawing into list.
func NewReconciler(list MessageList, render func(Event) Entry) *Reconciler {
	if list == nil {
		list = discardList{}
	}
	return &Reconciler{
		list:   list,
		render: render,
		index:  make(map[EventKey]Handle),
	}
}

// Len returns the number of rendered nodes.
func (r *Reconciler) Len() int { return len(r.nodes) }

// Keys returns the keys of the rendered nodes in display order.
func (r *Reconciler) Keys() []EventKey {
	out := make([]EventKey, len(r.nodes))
	for i, n := range r.nodes {
		out[i] = n.key
	}
	return out
}

// Handle returns the node rendered for k.
func (r *Reconciler) Handle(k EventKey) (Handle, bool) {
	h, ok := r.index[k]
	return h, ok
}

// Reconcile renders every event not yet shown, placing it before the first
// rendered node that follows it in the log or at the end. Existing nodes are
// left alone. It returns the number of inserted nodes and scrolls to the
// bottom when anything was appended at the end.
//
// Rendered nodes are always a subsequence of the log in log order, because
// the log only inserts, so walking both with one cursor is enough.
func (r *Reconciler) Reconcile(events []Event) int {
	inserted := 0
	appended := false
	j := 0
	for _, ev := range events {
		k := ev.Key()
		if j < len(r.nodes) && r.nodes[j].key == k {
			j++
			continue
		}
		if _, ok := r.index[k]; ok {
			// Already shown elsewhere; only reachable if the caller passed
			// something other than a single growing log.
			continue
		}
		e := r.render(ev)
		var h Handle
		if j < len(r.nodes) {
			h = r.list.InsertBefore(r.nodes[j].handle, e)
		} else {
			h = r.list.Append(e)
			appended = true
		}
		r.nodes = append(r.nodes, renderedNode{})
		copy(r.nodes[j+1:], r.nodes[j:])
		r.nodes[j] = renderedNode{key: k, handle: h}
		r.index[k] = h
		j++
		inserted++
	}
	if appended {
		r.list.ScrollToBottom()
	}
	return inserted
}
