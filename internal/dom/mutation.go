package dom

// MutationKind distinguishes the events a Document emits.
type MutationKind int

const (
	// MutationChildList is a structural change: nodes added to or removed
	// from a parent.
	MutationChildList MutationKind = iota
	// MutationNavigation is a location change without a page reload.
	MutationNavigation
)

// MutationRecord describes one observed change. For child-list records,
// Target is the parent whose children changed. For navigation records only
// Location is set.
type MutationRecord struct {
	Kind     MutationKind
	Target   *Node
	Added    []*Node
	Removed  []*Node
	Location string
}

// Relevant reports whether the record should schedule a pipeline run: any
// child-list change that added at least one node, or a navigation.
func (r MutationRecord) Relevant() bool {
	switch r.Kind {
	case MutationChildList:
		return len(r.Added) > 0
	case MutationNavigation:
		return true
	}
	return false
}
