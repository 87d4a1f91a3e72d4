package pairchat

import (
	"fmt"

	"github.com/vovakirdan/pairchat-sdk/pairchat-sdk-go/pairchat/internal/locale"
)

// ProgressLevel is the advisory length state of a conversation.
type ProgressLevel int

const (
	// ProgressTooShort means both participants are below the low threshold.
	ProgressTooShort ProgressLevel = iota
	// ProgressEnough means the conversation may be stopped.
	ProgressEnough
	// ProgressTooLong means a participant reached the high threshold.
	ProgressTooLong
)

func (l ProgressLevel) String() string {
	switch l {
	case ProgressTooShort:
		return "too_short"
	case ProgressEnough:
		return "enough"
	case ProgressTooLong:
		return "too_long"
	default:
		return "unknown"
	}
}

// Color is the indicator color for each level.
func (l ProgressLevel) Color() string {
	switch l {
	case ProgressTooShort:
		return "yellow"
	case ProgressEnough:
		return "green"
	default:
		return "red"
	}
}

// Progress is what the progress indicator shows.
type Progress struct {
	Level      ProgressLevel
	SelfCount  int
	OtherCount int
	// Remaining is the number of messages still needed to reach the low
	// threshold; zero once the level is no longer ProgressTooShort.
	Remaining int
	// Percent is the bar fill, 90 when both reach the high threshold.
	Percent float64
	// CanStop reports whether the stop control should be offered.
	CanStop bool
	Text    string
}

// Thresholds are the message-count bounds of a conversation.
type Thresholds struct {
	Low  int
	High int
}

// RemainingMessages returns 2*low - self - other - 1, the number of messages
// the progress text reports as still needed.
func (t Thresholds) RemainingMessages(self, other int) int {
	return t.Low*2 - self - other - 1
}

// ComputeProgress derives the advisory progress state from message counts.
func ComputeProgress(t Thresholds, self, other int) Progress {
	p := Progress{SelfCount: self, OtherCount: other}
	switch {
	case self < t.Low && other < t.Low:
		p.Level = ProgressTooShort
		p.Remaining = t.RemainingMessages(self, other)
	case self < t.High && other < t.High:
		p.Level = ProgressEnough
		p.CanStop = true
	default:
		p.Level = ProgressTooLong
		p.CanStop = true
	}
	if t.High > 0 {
		p.Percent = float64(self+other) / float64(t.High*2) * 90
	}
	return p
}

// CheckStopGate refuses a stop request while both participants are below the
// low threshold. The returned error carries ErrorTooShort.
func CheckStopGate(t Thresholds, self, other int) (remaining int, err error) {
	if self < t.Low && other < t.Low {
		remaining = t.RemainingMessages(self, other)
		return remaining, NewError(ErrorTooShort, fmt.Sprintf("%d more messages needed before stopping", remaining))
	}
	return 0, nil
}

func progressText(p *locale.Printer, pr Progress) string {
	switch pr.Level {
	case ProgressTooShort:
		return p.Text(locale.ProgressShort, pr.Remaining)
	case ProgressEnough:
		return p.Text(locale.ProgressEnough)
	default:
		return p.Text(locale.ProgressTooLong)
	}
}
