package watch

import (
	"testing"
	"time"

	"github.com/lotas/listenordnung/internal/dom"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// childList returns a relevant child-list record backed by a real node.
func childList(t *testing.T) dom.MutationRecord {
	t.Helper()
	doc, err := dom.ParseString("<html><body><ul id='l'></ul></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	events := doc.Subscribe()
	list, _ := doc.QueryOne("#l")
	doc.Append(list, doc.CreateElement("li"))
	return <-events
}

func navigation(loc string) dom.MutationRecord {
	return dom.MutationRecord{Kind: dom.MutationNavigation, Location: loc}
}

func TestDebounceCoalesces(t *testing.T) {
	m := NewMachine(300*time.Millisecond, 500*time.Millisecond)
	rec := childList(t)

	m.Observe(rec, t0)
	if m.State() != StateScheduled {
		t.Fatalf("state = %v, want scheduled", m.State())
	}
	deadline, ok := m.NextDeadline()
	if !ok || !deadline.Equal(t0.Add(300*time.Millisecond)) {
		t.Fatalf("deadline = %v, want t0+300ms", deadline)
	}

	// A later mutation pushes the window out.
	m.Observe(rec, t0.Add(100*time.Millisecond))
	deadline, _ = m.NextDeadline()
	if !deadline.Equal(t0.Add(400 * time.Millisecond)) {
		t.Fatalf("deadline = %v, want t0+400ms", deadline)
	}

	if run, _ := m.Due(t0.Add(350 * time.Millisecond)); run {
		t.Fatal("must not fire inside the extended window")
	}
	run, navigated := m.Due(t0.Add(400 * time.Millisecond))
	if !run || navigated {
		t.Fatalf("Due = (%v, %v), want (true, false)", run, navigated)
	}
	if _, ok := m.NextDeadline(); ok {
		t.Fatal("firing must clear the deadline")
	}
}

func TestRunningDropsMutations(t *testing.T) {
	m := NewMachine(300*time.Millisecond, 500*time.Millisecond)
	rec := childList(t)

	m.BeginRun()
	m.Observe(rec, t0)
	if _, ok := m.NextDeadline(); ok {
		t.Fatal("mutations observed while running must not schedule")
	}
	m.FinishRun()
	if m.State() != StateIdle {
		t.Fatalf("state = %v, want idle", m.State())
	}

	// After the run, fresh mutations schedule again.
	m.Observe(rec, t0.Add(time.Second))
	if m.State() != StateScheduled {
		t.Fatal("post-run mutations must open a new window")
	}
}

func TestNavigationSettles(t *testing.T) {
	m := NewMachine(300*time.Millisecond, 500*time.Millisecond)

	m.Observe(navigation("/a"), t0)
	deadline, ok := m.NextDeadline()
	if !ok || !deadline.Equal(t0.Add(500*time.Millisecond)) {
		t.Fatalf("deadline = %v, want t0+500ms", deadline)
	}

	// Same location again does not re-arm.
	m.Observe(navigation("/a"), t0.Add(200*time.Millisecond))
	deadline, _ = m.NextDeadline()
	if !deadline.Equal(t0.Add(500 * time.Millisecond)) {
		t.Fatal("repeated navigation to the same location must not extend settle")
	}

	// A different location re-arms.
	m.Observe(navigation("/b"), t0.Add(300*time.Millisecond))
	deadline, _ = m.NextDeadline()
	if !deadline.Equal(t0.Add(800 * time.Millisecond)) {
		t.Fatalf("deadline = %v, want t0+800ms", deadline)
	}

	run, navigated := m.Due(t0.Add(800 * time.Millisecond))
	if !run || !navigated {
		t.Fatalf("Due = (%v, %v), want (true, true)", run, navigated)
	}
}

func TestNavigationArmsEvenWhileRunning(t *testing.T) {
	m := NewMachine(300*time.Millisecond, 500*time.Millisecond)

	m.BeginRun()
	m.Observe(navigation("/next"), t0)
	m.FinishRun()

	run, navigated := m.Due(t0.Add(500 * time.Millisecond))
	if !run || !navigated {
		t.Fatal("a navigation observed mid-run must still settle into a reconcile")
	}
}

func TestSettleSupersedesDebounce(t *testing.T) {
	m := NewMachine(300*time.Millisecond, 500*time.Millisecond)
	rec := childList(t)

	m.Observe(rec, t0)
	m.Observe(navigation("/new"), t0.Add(100*time.Millisecond))

	// Debounce would fire first, and does.
	run, navigated := m.Due(t0.Add(300 * time.Millisecond))
	if !run || navigated {
		t.Fatalf("Due = (%v, %v), want plain run first", run, navigated)
	}

	// The settle still fires, and clears any window the run left behind.
	m.Observe(rec, t0.Add(400*time.Millisecond))
	run, navigated = m.Due(t0.Add(600 * time.Millisecond))
	if !run || !navigated {
		t.Fatalf("Due = (%v, %v), want navigation reconcile", run, navigated)
	}
	if _, ok := m.NextDeadline(); ok {
		t.Fatal("a settled navigation supersedes the open debounce window")
	}
}

func TestIrrelevantRecordsIgnored(t *testing.T) {
	m := NewMachine(300*time.Millisecond, 500*time.Millisecond)

	// A removal-only record is not relevant.
	m.Observe(dom.MutationRecord{Kind: dom.MutationChildList}, t0)
	if _, ok := m.NextDeadline(); ok {
		t.Fatal("irrelevant records must not schedule")
	}
}

func TestWatcherRunsPipeline(t *testing.T) {
	doc, err := dom.ParseString("<html><body><ul id='l'></ul></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	events := doc.Subscribe()

	runs := make(chan bool, 8)
	w := New(events, 5*time.Millisecond, 10*time.Millisecond, Hooks{
		OnRun: func() { runs <- true },
	})
	w.Start()
	defer w.Stop()

	list, _ := doc.QueryOne("#l")
	doc.Append(list, doc.CreateElement("li"))
	doc.Append(list, doc.CreateElement("li"))

	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never ran the pipeline")
	}

	// The burst coalesced into a single run.
	select {
	case <-runs:
		t.Fatal("two appends within one window must coalesce into one run")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherNavigation(t *testing.T) {
	doc, err := dom.ParseString("<html><body></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	events := doc.Subscribe()

	navs := make(chan bool, 8)
	w := New(events, 5*time.Millisecond, 10*time.Millisecond, Hooks{
		OnNavigate: func() { navs <- true },
	})
	w.Start()
	defer w.Stop()

	doc.SetLocation("/projects")

	select {
	case <-navs:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher never reconciled the navigation")
	}
}
