package pairchat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what a session does. A nil *Metrics records nothing.
type Metrics struct {
	Polls         *prometheus.CounterVec
	Retries       prometheus.Counter
	EventsMerged  prometheus.Counter
	NodesRendered prometheus.Counter
	MessagesSent  prometheus.Counter
	Leaves        *prometheus.CounterVec
	PollDuration  prometheus.Observer
}

// NewMetrics registers the session metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Polls:         f.NewCounterVec(prometheus.CounterOpts{Name: "pairchat_polls_total", Help: "Poll requests by outcome"}, []string{"outcome"}),
		Retries:       f.NewCounter(prometheus.CounterOpts{Name: "pairchat_poll_retries_total", Help: "Polls re-issued after a transport failure"}),
		EventsMerged:  f.NewCounter(prometheus.CounterOpts{Name: "pairchat_events_merged_total", Help: "Events added to the event log"}),
		NodesRendered: f.NewCounter(prometheus.CounterOpts{Name: "pairchat_nodes_rendered_total", Help: "Entries inserted into the message list"}),
		MessagesSent:  f.NewCounter(prometheus.CounterOpts{Name: "pairchat_messages_sent_total", Help: "Messages posted by this client"}),
		Leaves:        f.NewCounterVec(prometheus.CounterOpts{Name: "pairchat_leave_notifications_total", Help: "Leave notifications by call site"}, []string{"call"}),
		PollDuration:  f.NewHistogram(prometheus.HistogramOpts{Name: "pairchat_poll_duration_seconds", Help: "Poll request duration seconds", Buckets: prometheus.DefBuckets}),
	}
}

func (m *Metrics) poll(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(outcome).Inc()
	m.PollDuration.Observe(seconds)
}

func (m *Metrics) retry() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *Metrics) merged(n int, rendered int) {
	if m == nil {
		return
	}
	m.EventsMerged.Add(float64(n))
	m.NodesRendered.Add(float64(rendered))
}

func (m *Metrics) sent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) leave(call LeaveCall) {
	if m != nil {
		m.Leaves.WithLabelValues(call.String()).Inc()
	}
}
