// Package watch schedules re-runs in watch mode.
//
// Two trigger sources (file changes and dev server push notifications)
// fan in to a single event channel, are collapsed by a debounce window,
// and drive a scheduler that guarantees at-most-one-in-flight run with
// at-most-one-pending re-run.
package watch

// State represents the scheduler's position in the re-run state machine.
type State int

const (
	// StateIdle means no run is in flight.
	StateIdle State = iota

	// StateRunning means exactly one run is in flight.
	StateRunning

	// StateRunningPending means a run is in flight and one re-run is
	// queued behind it. Further triggers are coalesced into the same
	// pending slot.
	StateRunningPending
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateRunningPending:
		return "running+pending"
	default:
		return "unknown"
	}
}

// IsRunning reports whether a run is in flight.
func (s State) IsRunning() bool {
	return s == StateRunning || s == StateRunningPending
}
