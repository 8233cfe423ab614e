package server

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/discovery"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/organizer"
	"github.com/lotas/listenordnung/internal/settings"
	"github.com/lotas/listenordnung/internal/snapshot"
	"github.com/lotas/listenordnung/internal/theme"
	"github.com/lotas/listenordnung/internal/types"
	"github.com/lotas/listenordnung/internal/watch"
)

// GroupInfo describes one group of a live container for the UI.
type GroupInfo struct {
	Name  string
	Count int
}

// ContainerInfo describes one organized container for the UI.
type ContainerInfo struct {
	ID      string // data-lo-id on the real page, "" if unaddressable
	Groups  []GroupInfo
	Current string
	Items   int
}

// Update is a fresh view of the live session's state, published after every
// pipeline run.
type Update struct {
	Location        string
	Containers      []ContainerInfo
	GroupingEnabled bool
	CustomGroups    []string
}

var cmdCounter atomic.Int64

func nextCmdID() string {
	return fmt.Sprintf("cmd-%d", cmdCounter.Add(1))
}

// Session owns the live pipeline on a single goroutine: extension messages
// mutate the mirror, the scheduling machine debounces the resulting records,
// the organizer reworks the mirror, and the delta goes back to the real page
// as patches. Because everything runs on one loop, the document has exactly
// one writer.
type Session struct {
	srv      *Server
	st       *settings.Store
	cfg      discovery.Config
	debounce time.Duration
	settle   time.Duration

	doc     *dom.Document
	org     *organizer.Organizer
	machine *watch.Machine
	events  <-chan dom.MutationRecord
	styled  bool

	cmds    chan func()
	updates chan Update
}

// NewSession creates a live session over a server.
func NewSession(srv *Server, st *settings.Store, cfg discovery.Config, debounce, settle time.Duration) *Session {
	return &Session{
		srv:      srv,
		st:       st,
		cfg:      cfg,
		debounce: debounce,
		settle:   settle,
		machine:  watch.NewMachine(debounce, settle),
		cmds:     make(chan func(), 16),
		updates:  make(chan Update, 4),
	}
}

// Updates returns the channel of state updates for a UI. Slow consumers
// lose intermediate updates, never the session.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

// Select switches the visible group of a container from the UI. Executed on
// the session loop.
func (s *Session) Select(containerID, groupID string) {
	select {
	case s.cmds <- func() { s.selectGroup(containerID, groupID) }:
	default:
	}
}

// SetGroupingEnabled toggles grouping from the UI and reconciles.
func (s *Session) SetGroupingEnabled(enabled bool) {
	select {
	case s.cmds <- func() {
		if err := s.withOrganizer(func(o *organizer.Organizer) error {
			return o.SetGroupingEnabled(enabled)
		}); err != nil {
			applog.Error("session.toggle", err)
		}
	}:
	default:
	}
}

// AddCustomGroup adds an override name from the UI and reconciles.
func (s *Session) AddCustomGroup(name string) {
	select {
	case s.cmds <- func() {
		if err := s.withOrganizer(func(o *organizer.Organizer) error {
			return o.AddCustomGroup(name)
		}); err != nil {
			applog.Error("session.add-group", err)
		}
	}:
	default:
	}
}

// RemoveCustomGroup removes an override name from the UI and reconciles.
func (s *Session) RemoveCustomGroup(name string) {
	select {
	case s.cmds <- func() {
		if err := s.withOrganizer(func(o *organizer.Organizer) error {
			return o.RemoveCustomGroup(name)
		}); err != nil {
			applog.Error("session.remove-group", err)
		}
	}:
	default:
	}
}

// SaveSnapshot persists the current grouping as a stored revision. Executed
// on the session loop; a session without a connected page is a no-op.
func (s *Session) SaveSnapshot(db *sql.DB, label string) {
	select {
	case s.cmds <- func() {
		if s.org == nil || s.doc == nil {
			return
		}
		html, err := s.doc.Render()
		if err != nil {
			applog.Error("session.snapshot", err)
			return
		}
		rev, created, _, err := snapshot.Create(db, s.doc.Location(), s.org.Organized(), label, html)
		if err != nil {
			applog.Error("session.snapshot", err)
			return
		}
		applog.Info("session.snapshot", "rev", rev, "created", created)
	}:
	default:
	}
}

// Run starts the WebSocket listener and the session loop, blocking until
// the context is canceled.
func (s *Session) Run(ctx context.Context) error {
	go s.srv.ListenAndServe(ctx)

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
		if deadline, ok := s.machine.NextDeadline(); ok {
			timer.Reset(time.Until(deadline))
			timerArmed = true
		}
	}

	for {
		select {
		case msg := <-s.srv.Messages():
			s.handle(msg)
			rearm()

		case now := <-timer.C:
			timerArmed = false
			run, navigated := s.machine.Due(now)
			if run && s.org != nil {
				s.runPipeline(navigated)
			}
			rearm()

		case fn := <-s.cmds:
			fn()
			rearm()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) handle(msg IncomingMsg) {
	switch msg.Type {
	case "document":
		doc, err := Mirror(msg)
		if err != nil {
			applog.Error("session.document", err)
			return
		}
		s.doc = doc
		s.events = doc.Subscribe()
		s.org = organizer.New(doc, s.cfg, s.st)
		s.machine = watch.NewMachine(s.debounce, s.settle)
		s.styled = false
		applog.Info("session.document", "location", msg.Location)
		s.runPipeline(false)

	case "mutation":
		if s.doc == nil {
			return
		}
		if err := ApplyMutation(s.doc, msg); err != nil {
			applog.Warn("session.mutation", "err", err.Error())
			return
		}
		s.observeEvents()

	case "navigated":
		if s.doc == nil {
			return
		}
		s.doc.SetLocation(msg.Location)
		s.observeEvents()

	case "selected":
		s.selectGroup(msg.Container, msg.Group)
	}
}

// observeEvents feeds the mirror's queued mutation records into the
// scheduling machine.
func (s *Session) observeEvents() {
	if s.events == nil {
		return
	}
	now := time.Now()
	for {
		select {
		case rec := <-s.events:
			s.machine.Observe(rec, now)
		default:
			return
		}
	}
}

// runPipeline executes one organizer pass under the Running guard, then
// drops the records the pass itself produced and pushes patches.
func (s *Session) runPipeline(navigated bool) {
	s.machine.BeginRun()
	if navigated {
		s.org.Invalidate()
	}
	s.org.Process()
	s.drainSelfEvents()
	s.machine.FinishRun()

	theme.Apply(s.doc)
	s.flush()
	s.publish()
}

func (s *Session) drainSelfEvents() {
	if s.events == nil {
		return
	}
	for {
		select {
		case rec := <-s.events:
			if rec.Kind == dom.MutationNavigation {
				s.machine.Observe(rec, time.Now())
			}
		default:
			return
		}
	}
}

func (s *Session) selectGroup(containerID, groupID string) {
	c := s.findContainer(containerID)
	if c == nil {
		applog.Warn("session.select", "container", containerID, "reason", "unknown")
		return
	}
	s.org.Select(c, groupID)
	s.drainSelfEvents()
	s.flush()
	s.publish()
}

func (s *Session) withOrganizer(fn func(*organizer.Organizer) error) error {
	if s.org == nil {
		return fmt.Errorf("no page connected")
	}
	if err := fn(s.org); err != nil {
		return err
	}
	s.drainSelfEvents()
	s.flush()
	s.publish()
	return nil
}

func (s *Session) findContainer(containerID string) *types.Container {
	if s.org == nil {
		return nil
	}
	for _, c := range s.org.Containers() {
		if id, _ := c.Node.Attr(AttrNodeID); id == containerID {
			return c
		}
	}
	return nil
}

// flush sends the organizer's work back to the real page: one replace patch
// per claimed container, the stylesheet once per document, and a scroll op
// when a selection asked for one.
func (s *Session) flush() {
	var ops []PatchOp

	if !s.styled {
		ops = append(ops, PatchOp{Op: "style", HTML: theme.CSS()})
		s.styled = true
	}

	for _, c := range s.org.Containers() {
		id, ok := c.Node.Attr(AttrNodeID)
		if !ok {
			applog.Warn("session.patch", "reason", "container has no node id")
			continue
		}
		html, err := c.Node.OuterHTML()
		if err != nil {
			applog.Error("session.render", err)
			continue
		}
		ops = append(ops, PatchOp{Op: "replace", Target: id, HTML: html})

		if _, scroll := c.Node.Attr("data-lo-scroll"); scroll {
			c.Node.RemoveAttr("data-lo-scroll")
			ops = append(ops, PatchOp{Op: "scroll", Target: id})
		}
	}

	if len(ops) == 0 {
		return
	}
	if err := s.srv.Send(OutgoingMsg{ID: nextCmdID(), Action: "patch", Ops: ops}); err != nil {
		applog.Error("session.send", err)
	}
}

func (s *Session) publish() {
	update := Update{
		Location:        s.doc.Location(),
		GroupingEnabled: s.st.GroupingEnabled(),
		CustomGroups:    s.st.CustomGroups().Names(),
	}
	for _, c := range s.org.Containers() {
		id, _ := c.Node.Attr(AttrNodeID)
		info := ContainerInfo{
			ID:      id,
			Current: s.org.Current(c),
			Items:   len(c.Items),
		}
		for _, g := range s.org.Groups(c) {
			info.Groups = append(info.Groups, GroupInfo{Name: g.Name, Count: len(g.Items)})
		}
		update.Containers = append(update.Containers, info)
	}

	select {
	case s.updates <- update:
	default:
		// Drop for slow consumers; the next run publishes again.
	}
}
