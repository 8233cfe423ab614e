package settings

import (
	"errors"
	"testing"

	"github.com/lotas/listenordnung/internal/storage"
)

func TestGroupingEnabledDefault(t *testing.T) {
	s := New(storage.NewMemStore())
	if !s.GroupingEnabled() {
		t.Error("grouping should default to enabled")
	}
}

func TestGroupingEnabledRoundTrip(t *testing.T) {
	s := New(storage.NewMemStore())

	if err := s.SetGroupingEnabled(false); err != nil {
		t.Fatal(err)
	}
	if s.GroupingEnabled() {
		t.Error("flag did not stick")
	}

	if err := s.SetGroupingEnabled(true); err != nil {
		t.Fatal(err)
	}
	if !s.GroupingEnabled() {
		t.Error("flag did not flip back")
	}
}

func TestCustomGroups(t *testing.T) {
	s := New(storage.NewMemStore())

	if got := s.CustomGroups().Names(); len(got) != 0 {
		t.Fatalf("fresh store has custom groups: %v", got)
	}

	if err := s.AddCustomGroup("Infra"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddCustomGroup("web"); err != nil {
		t.Fatal(err)
	}

	got := s.CustomGroups().Names()
	if len(got) != 2 || got[0] != "Infra" || got[1] != "web" {
		t.Errorf("Names = %v, want [Infra web]", got)
	}
}

func TestAddCustomGroupRejectsDuplicates(t *testing.T) {
	s := New(storage.NewMemStore())

	if err := s.AddCustomGroup("Web"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddCustomGroup("web"); err == nil {
		t.Error("case-insensitive duplicate must be rejected")
	}
	if err := s.AddCustomGroup("  "); err == nil {
		t.Error("blank name must be rejected")
	}
}

func TestRemoveCustomGroup(t *testing.T) {
	s := New(storage.NewMemStore())

	if err := s.AddCustomGroup("Web"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveCustomGroup("WEB"); err != nil {
		t.Fatalf("case-insensitive remove failed: %v", err)
	}
	if err := s.RemoveCustomGroup("Web"); err == nil {
		t.Error("removing a missing group must fail")
	}
}

// failKV simulates a broken persistence backend.
type failKV struct{}

func (failKV) SaveSetting(string, string) error { return errors.New("disk gone") }
func (failKV) LoadSetting(string, string) (string, error) {
	return "", errors.New("disk gone")
}

func TestDegradesToDefaultsOnStorageFailure(t *testing.T) {
	s := New(failKV{})

	if !s.GroupingEnabled() {
		t.Error("load failure should fall back to enabled")
	}
	if got := s.CustomGroups().Names(); len(got) != 0 {
		t.Errorf("load failure should yield no custom groups, got %v", got)
	}
}
