// Package poller classifies the photo-library screen into a settled state by
// repeatedly sampling the accessibility tree.
package poller

import "time"

// ScreenState is the classification of the photo-library screen.
type ScreenState int

const (
	StateUnknown ScreenState = iota
	StateGrid
	StateEmpty
	StateDenied
)

// String returns the string representation of ScreenState
func (s ScreenState) String() string {
	switch s {
	case StateGrid:
		return "grid"
	case StateEmpty:
		return "empty"
	case StateDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// MarshalText lets ScreenState appear by name in JSON.
func (s ScreenState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sample holds the observations taken in one poll.
type Sample struct {
	Denied       bool // permission-denied indicator text present
	Empty        bool // empty-library indicator text present
	GridPresent  bool // grid container present
	GridHasItems bool // grid container has at least one cell
}

// Classify resolves a sample into a state. Denied wins over Empty, and Empty
// wins over a populated grid, so a transition frame showing several
// indicators never reports a grid. ok is false while nothing has resolved.
func Classify(s Sample) (state ScreenState, ok bool) {
	switch {
	case s.Denied:
		return StateDenied, true
	case s.Empty:
		return StateEmpty, true
	case s.GridPresent && s.GridHasItems:
		return StateGrid, true
	default:
		return StateUnknown, false
	}
}

// PollResult is the outcome of Poller.Wait.
type PollResult struct {
	State    ScreenState   `json:"state"`
	TimedOut bool          `json:"timedOut"` // resolved by the post-timeout fallback
	Polls    int           `json:"polls"`
	Elapsed  time.Duration `json:"elapsed"`
}
