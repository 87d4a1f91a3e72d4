package pairchat

// MergeEvent is emitted after a snapshot added events to the log.
type MergeEvent struct {
	Added  []Event
	Cursor string
}

// LeaveEvent is emitted when a leave notification completes.
type LeaveEvent struct {
	Call LeaveCall
	Err  error
}
