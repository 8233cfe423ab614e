// Package watch observes the document's mutation channel and turns bursts of
// changes into debounced pipeline runs. It is the only component that decides
// when the organizer acts.
package watch

import (
	"time"

	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/dom"
)

// Recommended windows: mutations coalesce for 300ms, navigations settle for
// 500ms before discovery reruns.
const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultSettle   = 500 * time.Millisecond
)

// Hooks are the callbacks a Watcher drives. OnRun executes one full
// discovery + classify + reorganize pass. OnNavigate is called before the
// post-navigation run to invalidate the claimed-container cache.
type Hooks struct {
	OnRun      func()
	OnNavigate func()
}

// Watcher drives a Machine with real time on a single goroutine. All
// pipeline work happens on that goroutine, so the document has exactly one
// writer while the watcher runs.
type Watcher struct {
	machine *Machine
	hooks   Hooks
	events  <-chan dom.MutationRecord
	stopc   chan struct{}
	done    chan struct{}
}

// New creates a stopped watcher over the given mutation channel.
func New(events <-chan dom.MutationRecord, debounce, settle time.Duration, hooks Hooks) *Watcher {
	return &Watcher{
		machine: NewMachine(debounce, settle),
		hooks:   hooks,
		events:  events,
		stopc:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the watcher loop.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop terminates the loop and waits for it to exit. For teardown only; a
// stopped watcher is not restartable.
func (w *Watcher) Stop() {
	close(w.stopc)
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	timerArmed := false

	rearm := func() {
		if timerArmed {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timerArmed = false
		}
		if deadline, ok := w.machine.NextDeadline(); ok {
			timer.Reset(time.Until(deadline))
			timerArmed = true
		}
	}

	for {
		select {
		case rec, ok := <-w.events:
			if !ok {
				return
			}
			w.machine.Observe(rec, time.Now())
			rearm()

		case now := <-timer.C:
			timerArmed = false
			run, navigated := w.machine.Due(now)
			if run {
				w.runOnce(navigated)
			}
			rearm()

		case <-w.stopc:
			return
		}
	}
}

// runOnce executes one pipeline pass under the Running guard, then drains
// the records the pass itself produced so they cannot re-trigger it.
func (w *Watcher) runOnce(navigated bool) {
	w.machine.BeginRun()
	applog.Info("watch.run", "navigated", navigated)

	if navigated && w.hooks.OnNavigate != nil {
		w.hooks.OnNavigate()
	}
	if w.hooks.OnRun != nil {
		w.hooks.OnRun()
	}

	w.drain()
	w.machine.FinishRun()
}

// drain discards child-list records queued during a run: they are either
// self-triggered or describe a pre-run DOM that no longer exists, and
// anything real will mutate again and open a fresh debounce window.
// Navigations are the exception: they must never be lost, so they still
// arm the settle window.
func (w *Watcher) drain() {
	for {
		select {
		case rec, ok := <-w.events:
			if !ok {
				return
			}
			if rec.Kind == dom.MutationNavigation {
				w.machine.Observe(rec, time.Now())
			}
		default:
			return
		}
	}
}
