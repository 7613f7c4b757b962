package canopy

// DefaultRebuildFraction is the share of changed widgets above which a full
// rebuild is chosen over per-widget updates.
const DefaultRebuildFraction = 0.25

// UpdateAction is the maintenance step an UpdatePolicy picks for a frame.
type UpdateAction uint8

const (
	UpdateNone        UpdateAction = iota // nothing changed
	UpdateIncremental                     // remove+insert each dirty widget
	UpdateRebuild                         // clear and reinsert everything
)

// String returns the action name used in debug output.
func (a UpdateAction) String() string {
	switch a {
	case UpdateNone:
		return "none"
	case UpdateIncremental:
		return "incremental"
	case UpdateRebuild:
		return "rebuild"
	default:
		return "unknown"
	}
}

// DirtyWidget is a widget whose bounds changed this frame, with the bounds
// it was indexed under before the change.
type DirtyWidget[W Widget] struct {
	Widget    W
	OldBounds Rect
}

// UpdatePolicy chooses between a full rebuild and incremental updates. It is
// a cost heuristic only; the index gives the same answers either way.
//
// The zero value uses DefaultRebuildFraction. A RebuildFraction of 1 or more
// never rebuilds unless more widgets are dirty than tracked.
type UpdatePolicy struct {
	RebuildFraction float64
}

// DefaultUpdatePolicy returns a policy with DefaultRebuildFraction.
func DefaultUpdatePolicy() UpdatePolicy {
	return UpdatePolicy{RebuildFraction: DefaultRebuildFraction}
}

// Decide picks the action for dirty changed widgets out of total.
func (p UpdatePolicy) Decide(dirty, total int) UpdateAction {
	if dirty <= 0 {
		return UpdateNone
	}
	if total <= 0 {
		return UpdateRebuild
	}
	frac := p.RebuildFraction
	if frac <= 0 {
		frac = DefaultRebuildFraction
	}
	if float64(dirty)/float64(total) > frac {
		return UpdateRebuild
	}
	return UpdateIncremental
}
