package pairchat

import "sort"

// EventLog is the ordered, deduplicated record of every event seen by a
// session. It is sorted ascending by timestamp, holds at most one event per
// (timestamp, from) pair and never shrinks.
type EventLog struct {
	events []Event
}

// NewEventLog returns an empty log.
func NewEventLog() *EventLog {
	return &EventLog{events: make([]Event, 0, 64)}
}

// Len returns the number of events in the log.
func (l *EventLog) Len() int { return len(l.events) }

// At returns the i-th event.
func (l *EventLog) At(i int) Event { return l.events[i] }

// Events returns a copy of the log.
func (l *EventLog) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Last returns the most recent event.
func (l *EventLog) Last() (Event, bool) {
	if len(l.events) == 0 {
		return Event{}, false
	}
	return l.events[len(l.events)-1], true
}

// MessageCount counts chat messages authored by from.
func (l *EventLog) MessageCount(from Sender) int {
	n := 0
	for _, e := range l.events {
		if e.IsMessage() && e.From == from {
			n++
		}
	}
	return n
}

// Merge folds incoming into the log and returns the events that were not
// already present, in the order they were added.
//
// The cursor only moves forward while incoming is sorted, so an ordered
// snapshot costs O(len(log)+len(incoming)). Events sharing a timestamp keep
// insertion order; a new one is placed after the existing run. Events without
// a timestamp are dropped.
func (l *EventLog) Merge(incoming []Event) []Event {
	var added []Event
	j := 0
	prev := ""
	// run is the index of the first log event with timestamp prev.
	run := 0
	for _, ev := range incoming {
		if ev.Timestamp == "" {
			continue
		}
		switch {
		case ev.Timestamp < prev:
			// Out-of-order input: restart from the lower bound instead of
			// inserting behind the cursor.
			j = sort.Search(len(l.events), func(i int) bool {
				return l.events[i].Timestamp >= ev.Timestamp
			})
		case ev.Timestamp == prev:
			// The whole run must be checked again, whatever matched last.
			j = run
		}
		prev = ev.Timestamp

		for j < len(l.events) && l.events[j].Timestamp < ev.Timestamp {
			j++
		}
		run = j
		k := j
		dup := false
		for k < len(l.events) && l.events[k].Timestamp == ev.Timestamp {
			if l.events[k].From == ev.From {
				dup = true
				break
			}
			k++
		}
		if dup {
			j = k + 1
			continue
		}
		if k < len(l.events) {
			l.events = append(l.events, Event{})
			copy(l.events[k+1:], l.events[k:])
			l.events[k] = ev
		} else {
			l.events = append(l.events, ev)
		}
		j = k + 1
		added = append(added, ev)
	}
	return added
}
