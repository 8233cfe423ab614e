// Package settings provides typed accessors over the persistence KV. Every
// read degrades to a default on storage failure, so the organizer keeps
// working with in-memory values when persistence is gone.
package settings

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lotas/listenordnung/internal/applog"
	"github.com/lotas/listenordnung/internal/classify"
	"github.com/lotas/listenordnung/internal/storage"
)

const (
	keyGroupingEnabled = "grouping_enabled"
	keyCustomGroups    = "custom_groups"
)

// Store wraps a KV backend with the two settings the organizer consumes:
// the grouping-enabled flag and the custom group set.
type Store struct {
	kv storage.KV
}

// New creates a Store over the given backend.
func New(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// GroupingEnabled reports whether grouping is on. Defaults to true.
func (s *Store) GroupingEnabled() bool {
	v, err := s.kv.LoadSetting(keyGroupingEnabled, "true")
	if err != nil {
		applog.Error("settings.load", err, "key", keyGroupingEnabled)
		return true
	}
	return v != "false"
}

// SetGroupingEnabled persists the flag.
func (s *Store) SetGroupingEnabled(enabled bool) error {
	v := "true"
	if !enabled {
		v = "false"
	}
	return s.kv.SaveSetting(keyGroupingEnabled, v)
}

// CustomGroups loads the override set. A load or decode failure yields an
// empty set, never an error.
func (s *Store) CustomGroups() *classify.CustomGroups {
	return classify.NewCustomGroups(s.customGroupNames())
}

func (s *Store) customGroupNames() []string {
	v, err := s.kv.LoadSetting(keyCustomGroups, "[]")
	if err != nil {
		applog.Error("settings.load", err, "key", keyCustomGroups)
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		applog.Error("settings.decode", err, "key", keyCustomGroups)
		return nil
	}
	return names
}

// SetCustomGroups replaces the whole override set.
func (s *Store) SetCustomGroups(names []string) error {
	data, err := json.Marshal(classify.NewCustomGroups(names).Names())
	if err != nil {
		return fmt.Errorf("encode custom groups: %w", err)
	}
	return s.kv.SaveSetting(keyCustomGroups, string(data))
}

// AddCustomGroup adds one override name. Duplicate names (case-insensitive)
// are rejected.
func (s *Store) AddCustomGroup(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty group name")
	}
	names := s.customGroupNames()
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return fmt.Errorf("group %q already exists", n)
		}
	}
	return s.SetCustomGroups(append(names, name))
}

// RemoveCustomGroup deletes one override name (case-insensitive).
func (s *Store) RemoveCustomGroup(name string) error {
	names := s.customGroupNames()
	out := names[:0]
	found := false
	for _, n := range names {
		if strings.EqualFold(n, name) {
			found = true
			continue
		}
		out = append(out, n)
	}
	if !found {
		return fmt.Errorf("group %q not found", name)
	}
	return s.SetCustomGroups(out)
}
