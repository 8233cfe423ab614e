package watch

import (
	"time"

	"github.com/lotas/listenordnung/internal/dom"
)

// State is the watcher's scheduling state.
type State int

const (
	// StateIdle means no run is pending or in progress.
	StateIdle State = iota
	// StateScheduled means a debounce window is open and a run will fire
	// when it elapses.
	StateScheduled
	// StateRunning means a pipeline run is in progress; mutations observed
	// now are self-triggered or stale and are not scheduled.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

// Machine is the pure scheduling core: it turns observed mutations into
// deadlines and run decisions as a function of the current time, so tests
// can drive it with a simulated clock. It is not safe for concurrent use;
// the Watcher loop is its single caller.
type Machine struct {
	debounce time.Duration
	settle   time.Duration

	state      State
	debounceAt time.Time // zero when no debounce window is open
	settleAt   time.Time // zero when no navigation is settling
	location   string
}

// NewMachine creates a scheduling core with the given windows.
func NewMachine(debounce, settle time.Duration) *Machine {
	return &Machine{debounce: debounce, settle: settle}
}

// State returns the current scheduling state.
func (m *Machine) State() State {
	return m.state
}

// Observe feeds one mutation record into the machine. Relevant child-list
// mutations open or extend the debounce window; further bursts coalesce into
// the same run. Navigation always (re)arms the settle window regardless of
// state. Mutations observed while Running are ignored for scheduling: the
// reorganizer's own mutations are observable child-list changes, and acting
// on them would loop forever.
func (m *Machine) Observe(rec dom.MutationRecord, now time.Time) {
	if !rec.Relevant() {
		return
	}

	if rec.Kind == dom.MutationNavigation {
		if rec.Location == m.location {
			return
		}
		m.location = rec.Location
		m.settleAt = now.Add(m.settle)
		return
	}

	switch m.state {
	case StateIdle:
		m.state = StateScheduled
		m.debounceAt = now.Add(m.debounce)
	case StateScheduled:
		m.debounceAt = now.Add(m.debounce)
	case StateRunning:
		// Dropped; the post-run DOM no longer matches what this record
		// reacted to, and real external changes will mutate again.
	}
}

// NextDeadline returns the earliest pending deadline, or false when nothing
// is armed.
func (m *Machine) NextDeadline() (time.Time, bool) {
	switch {
	case m.debounceAt.IsZero() && m.settleAt.IsZero():
		return time.Time{}, false
	case m.debounceAt.IsZero():
		return m.settleAt, true
	case m.settleAt.IsZero():
		return m.debounceAt, true
	case m.settleAt.Before(m.debounceAt):
		return m.settleAt, true
	default:
		return m.debounceAt, true
	}
}

// Due reports what should happen at the given instant: a navigation
// reconcile (which invalidates claims first), a debounced run, or nothing
// yet. Firing clears the corresponding deadline.
func (m *Machine) Due(now time.Time) (run, navigated bool) {
	if !m.settleAt.IsZero() && !now.Before(m.settleAt) {
		m.settleAt = time.Time{}
		// A settled navigation supersedes any open debounce window.
		m.debounceAt = time.Time{}
		return true, true
	}
	if !m.debounceAt.IsZero() && !now.Before(m.debounceAt) {
		m.debounceAt = time.Time{}
		return true, false
	}
	return false, false
}

// BeginRun marks the pipeline as running.
func (m *Machine) BeginRun() {
	m.state = StateRunning
}

// FinishRun returns to idle. Any debounce window opened by records that
// slipped in before BeginRun is cleared; the run just consumed that state.
func (m *Machine) FinishRun() {
	m.state = StateIdle
	m.debounceAt = time.Time{}
}
