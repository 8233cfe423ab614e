// Package organizer is the top-level driver: discovery, classification,
// reorganization and view state wired together behind a single processing
// flag. One Organizer owns one document; tests build as many independent
// instances as they need.
package organizer

import (
	"fmt"
	"sync"
	"time"

	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/classify"
	"github.com/lotas/listenordnung/internal/discovery"
	"github.com/lotas/listenordnung/internal/dom"
	"github.com/lotas/listenordnung/internal/reorganize"
	"github.com/lotas/listenordnung/internal/settings"
	"github.com/lotas/listenordnung/internal/types"
	"github.com/lotas/listenordnung/internal/view"
	"github.com/lotas/listenordnung/internal/watch"
)

// Organizer holds its collaborators by reference and the containers claimed
// in the current session.
type Organizer struct {
	doc      *dom.Document
	cfg      discovery.Config
	settings *settings.Store
	view     *view.Controller

	mu         sync.Mutex
	processing bool
	containers []*types.Container
	groups     map[*types.Container][]*types.Group
}

// New creates an Organizer over a document.
func New(doc *dom.Document, cfg discovery.Config, st *settings.Store) *Organizer {
	return &Organizer{
		doc:      doc,
		cfg:      cfg,
		settings: st,
		view:     view.NewController(doc),
		groups:   make(map[*types.Container][]*types.Group),
	}
}

// Process runs one full pass: discover unclaimed containers, classify their
// items, reorganize, select defaults. Safe to call at any time; a call that
// arrives while a pass is running is a no-op, and a pass over an unchanged
// document converges to a no-op through the claimed markers.
func (o *Organizer) Process() {
	o.mu.Lock()
	if o.processing {
		o.mu.Unlock()
		return
	}
	o.processing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.processing = false
		o.mu.Unlock()
	}()

	found := discovery.New(o.doc, o.cfg).FindContainers()
	if len(found) == 0 {
		return
	}

	enabled := o.settings.GroupingEnabled()
	custom := o.settings.CustomGroups()

	for _, c := range found {
		// One malformed container must never abort the others.
		if err := o.processContainer(c, enabled, custom); err != nil {
			applog.Error("organizer.container", err, "items", len(c.Items))
		}
	}
}

func (o *Organizer) processContainer(c *types.Container, enabled bool, custom *classify.CustomGroups) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			// Best effort: leave the container flat rather than half-built.
			if daErr := reorganize.DisplayAll(o.doc, c, c.Items); daErr != nil {
				applog.Error("organizer.fallback", daErr)
			}
		}
	}()

	groups := classify.ExtractGroups(c.Items, custom)

	if !enabled || len(groups) <= 1 {
		if err := reorganize.DisplayAll(o.doc, c, c.Items); err != nil {
			return err
		}
		o.record(c, nil)
		return nil
	}

	if err := reorganize.Reorganize(o.doc, c, groups); err != nil {
		// Rolled back and displayed flat already; nothing more to do here.
		o.record(c, nil)
		return err
	}

	o.view.SelectDefault(c, groups)
	o.record(c, groups)
	return nil
}

func (o *Organizer) record(c *types.Container, groups []*types.Group) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.containers = append(o.containers, c)
	if groups != nil {
		o.groups[c] = groups
	}
}

// Containers returns the containers claimed this session, in claim order.
func (o *Organizer) Containers() []*types.Container {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*types.Container(nil), o.containers...)
}

// Groups returns the groups of a reorganized container, or nil for one on
// the ungrouped path.
func (o *Organizer) Groups(c *types.Container) []*types.Group {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.groups[c]
}

// Organized returns the session's containers paired with their groups.
func (o *Organizer) Organized() []types.Organized {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.Organized, 0, len(o.containers))
	for _, c := range o.containers {
		out = append(out, types.Organized{Container: c, Groups: o.groups[c]})
	}
	return out
}

// Select switches the visible group of a container, driven by the UI.
func (o *Organizer) Select(c *types.Container, groupID string) {
	o.view.Select(c, groupID)
}

// Current returns the visible group id for a container.
func (o *Organizer) Current(c *types.Container) string {
	return o.view.Current(c)
}

// Invalidate restores every claimed container to its flat item list, clears
// the claimed markers and forgets session state, making the containers
// eligible for re-discovery. Called after navigation and after settings
// mutations. Flattening first matters: re-discovery over a still-grouped
// container would find the union holder's clones as items.
func (o *Organizer) Invalidate() {
	o.mu.Lock()
	containers := o.containers
	o.containers = nil
	o.groups = make(map[*types.Container][]*types.Group)
	o.mu.Unlock()

	for _, c := range containers {
		if err := reorganize.DisplayAll(o.doc, c, c.Items); err != nil {
			applog.Error("organizer.invalidate", err)
		}
		c.Unclaim()
		o.view.Forget(c)
	}
	applog.Info("organizer.invalidate", "containers", len(containers))
}

// SetGroupingEnabled persists the flag, then reconciles: invalidate and
// reprocess. Mutate-then-reconcile keeps the page consistent with settings
// without any finer-grained locking.
func (o *Organizer) SetGroupingEnabled(enabled bool) error {
	if err := o.settings.SetGroupingEnabled(enabled); err != nil {
		return err
	}
	o.reconcile()
	return nil
}

// AddCustomGroup persists a new override name and reconciles.
func (o *Organizer) AddCustomGroup(name string) error {
	if err := o.settings.AddCustomGroup(name); err != nil {
		return err
	}
	o.reconcile()
	return nil
}

// RemoveCustomGroup deletes an override name and reconciles.
func (o *Organizer) RemoveCustomGroup(name string) error {
	if err := o.settings.RemoveCustomGroup(name); err != nil {
		return err
	}
	o.reconcile()
	return nil
}

func (o *Organizer) reconcile() {
	o.Invalidate()
	o.Process()
}

// NewWatcher wires a watcher to this organizer: debounced runs call Process,
// navigations invalidate the claimed cache first. Must be called before the
// document starts mutating or early records are missed.
func (o *Organizer) NewWatcher(debounce, settle time.Duration) *watch.Watcher {
	return watch.New(o.doc.Subscribe(), debounce, settle, watch.Hooks{
		OnRun:      o.Process,
		OnNavigate: o.Invalidate,
	})
}
