package canopy

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
)

// Widget is the element type a HitTestIndex tracks. Implementations must be
// comparable handles with stable identity (typically pointers); the index
// never copies widget state.
type Widget interface {
	comparable
	// HitBounds returns the axis-aligned bounding box in query coordinates.
	HitBounds() Rect
	// HitZ returns the hit-test precedence. Higher values are in front.
	HitZ() int
}

// BoundsCache is implemented by widgets that remember the bounds they were
// last indexed with. UpdateWidgetBounds uses it to find the old intervals.
type BoundsCache interface {
	CachedHitBounds() (Rect, bool)
	SetCachedHitBounds(r Rect)
}

type indexEntry struct {
	bounds Rect
	seq    uint64
}

type indexHit[W Widget] struct {
	w   W
	z   int
	seq uint64
}

// HitTestIndex answers "which widgets occupy this point / overlap this rect"
// using one IntervalTree per axis. A widget is tracked as its X projection
// [x, x+w] in one tree and its Y projection [y, y+h] in the other; a 2D hit
// is a widget found on both axes.
//
// Bounds are captured when a widget is inserted or updated. Moving a widget
// without calling UpdateWidget leaves stale results until the next update.
// HitTestIndex is not safe for concurrent use.
type HitTestIndex[W Widget] struct {
	xTree IntervalTree[W]
	yTree IntervalTree[W]

	// entries maps identity to the bounds the widget was indexed with, so
	// removal never depends on two widgets having distinct ranges.
	entries map[W]indexEntry
	nextSeq uint64

	debug io.Writer

	// query scratch, reused between calls
	seen map[W]struct{}
	hits []indexHit[W]
}

// NewHitTestIndex returns an empty index.
func NewHitTestIndex[W Widget]() *HitTestIndex[W] {
	return &HitTestIndex[W]{
		entries: make(map[W]indexEntry),
		seen:    make(map[W]struct{}),
	}
}

// SetDebugOutput sets where diagnostic warnings are written. Nil disables
// them.
func (idx *HitTestIndex[W]) SetDebugOutput(w io.Writer) {
	idx.debug = w
}

func (idx *HitTestIndex[W]) debugf(format string, args ...any) {
	if idx.debug == nil {
		return
	}
	_, _ = fmt.Fprintf(idx.debug, "[canopy] "+format+"\n", args...)
}

// --- Mutation ---

// InsertWidget starts tracking w with its current HitBounds. Inserting a
// widget that is already tracked replaces its intervals and keeps its
// insertion order. Returns ErrInvalidInterval for a negative width or height;
// nothing is modified then.
func (idx *HitTestIndex[W]) InsertWidget(w W) error {
	return idx.insertWithBounds(w, w.HitBounds())
}

func (idx *HitTestIndex[W]) insertWithBounds(w W, b Rect) error {
	if err := validateBounds(b); err != nil {
		return err
	}
	e, tracked := idx.entries[w]
	if tracked {
		idx.removePair(w, e.bounds)
	} else {
		idx.nextSeq++
		e.seq = idx.nextSeq
	}
	idx.xTree.insert(Interval[W]{Start: b.X, End: b.X + b.Width, Data: w})
	idx.yTree.insert(Interval[W]{Start: b.Y, End: b.Y + b.Height, Data: w})
	e.bounds = b
	idx.entries[w] = e
	return nil
}

// RemoveWidget stops tracking w. knownBounds must be the bounds w was
// inserted with; the intervals are matched by range and identity. If
// knownBounds disagrees with what the index recorded, the recorded bounds
// are used and a debug warning is written. Reports whether w was tracked.
func (idx *HitTestIndex[W]) RemoveWidget(w W, knownBounds Rect) bool {
	e, ok := idx.entries[w]
	if !ok {
		return false
	}
	if knownBounds != e.bounds {
		idx.debugf("warning: RemoveWidget bounds %v differ from indexed bounds %v", knownBounds, e.bounds)
	}
	idx.removePair(w, e.bounds)
	delete(idx.entries, w)
	return true
}

func (idx *HitTestIndex[W]) removePair(w W, b Rect) {
	same := func(d W) bool { return d == w }
	okX := idx.xTree.RemoveFunc(b.X, b.X+b.Width, same)
	okY := idx.yTree.RemoveFunc(b.Y, b.Y+b.Height, same)
	if !okX || !okY {
		idx.debugf("warning: intervals for %v missing (x=%t y=%t)", b, okX, okY)
	}
}

// UpdateWidget moves w from oldBounds to its current HitBounds. An
// untracked widget is simply inserted. If the new bounds are invalid the
// error is returned and w keeps its old intervals.
func (idx *HitTestIndex[W]) UpdateWidget(w W, oldBounds Rect) error {
	b := w.HitBounds()
	if err := validateBounds(b); err != nil {
		return err
	}
	if e, ok := idx.entries[w]; ok && oldBounds != e.bounds {
		idx.debugf("warning: UpdateWidget old bounds %v differ from indexed bounds %v", oldBounds, e.bounds)
	}
	return idx.insertWithBounds(w, b)
}

// UpdateWidgetBounds moves w to newBounds. The previous bounds come from the
// widget's BoundsCache when it implements one, otherwise from the index's
// own record. newBounds is stored back into the cache afterwards.
func (idx *HitTestIndex[W]) UpdateWidgetBounds(w W, newBounds Rect) error {
	cache, hasCache := any(w).(BoundsCache)
	if hasCache {
		if prev, ok := cache.CachedHitBounds(); ok {
			if e, tracked := idx.entries[w]; tracked && prev != e.bounds {
				idx.debugf("warning: cached bounds %v differ from indexed bounds %v", prev, e.bounds)
			}
		}
	}
	if err := idx.insertWithBounds(w, newBounds); err != nil {
		return err
	}
	if hasCache {
		cache.SetCachedHitBounds(newBounds)
	}
	return nil
}

// RebuildFromWidgets replaces the whole index with ws, in order. Insertion
// order restarts from the first element. All bounds are validated first; on
// error the index is left untouched.
func (idx *HitTestIndex[W]) RebuildFromWidgets(ws []W) error {
	bounds := make([]Rect, len(ws))
	for i, w := range ws {
		bounds[i] = w.HitBounds()
		if err := validateBounds(bounds[i]); err != nil {
			return fmt.Errorf("rebuild widget %d: %w", i, err)
		}
	}
	idx.Clear()
	for i, w := range ws {
		// Validated above.
		_ = idx.insertWithBounds(w, bounds[i])
	}
	return nil
}

// Clear removes every widget.
func (idx *HitTestIndex[W]) Clear() {
	idx.xTree.Clear()
	idx.yTree.Clear()
	clear(idx.entries)
	idx.nextSeq = 0
}

// ApplyUpdates brings the index up to date after a frame in which dirty
// widgets changed. all is the full widget list, used when the policy picks a
// rebuild. Incremental updates continue past failing widgets; their errors
// are joined. A rebuild rejected by an invalid widget falls back to
// incremental updates, so the returned action is the one actually applied.
func (idx *HitTestIndex[W]) ApplyUpdates(p UpdatePolicy, all []W, dirty []DirtyWidget[W]) (UpdateAction, error) {
	action := p.Decide(len(dirty), len(all))
	switch action {
	case UpdateRebuild:
		err := idx.RebuildFromWidgets(all)
		if err == nil {
			return action, nil
		}
		idx.debugf("warning: rebuild rejected, updating incrementally: %v", err)
		fallthrough
	case UpdateIncremental:
		var errs []error
		for _, d := range dirty {
			if err := idx.UpdateWidget(d.Widget, d.OldBounds); err != nil {
				errs = append(errs, err)
			}
		}
		return UpdateIncremental, errors.Join(errs...)
	}
	return action, nil
}

// --- Queries ---

// FindWidgetsAt returns every widget whose bounds contain (x, y), front to
// back: descending HitZ, ties in insertion order. Edges are inclusive.
func (idx *HitTestIndex[W]) FindWidgetsAt(x, y float64) []W {
	if len(idx.entries) == 0 {
		return nil
	}
	clear(idx.seen)
	idx.xTree.QueryFunc(x, func(iv Interval[W]) bool {
		idx.seen[iv.Data] = struct{}{}
		return true
	})
	if len(idx.seen) == 0 {
		return nil
	}
	idx.hits = idx.hits[:0]
	idx.yTree.QueryFunc(y, idx.collect)
	return idx.resolve()
}

// FindWidgetsInRect returns every widget whose bounds intersect r, ordered
// like FindWidgetsAt. Rectangles sharing only an edge intersect.
func (idx *HitTestIndex[W]) FindWidgetsInRect(r Rect) []W {
	if len(idx.entries) == 0 {
		return nil
	}
	clear(idx.seen)
	idx.xTree.FindOverlapsFunc(r.X, r.X+r.Width, func(iv Interval[W]) bool {
		idx.seen[iv.Data] = struct{}{}
		return true
	})
	if len(idx.seen) == 0 {
		return nil
	}
	idx.hits = idx.hits[:0]
	idx.yTree.FindOverlapsFunc(r.Y, r.Y+r.Height, idx.collect)
	return idx.resolve()
}

// FindTopWidgetAt returns the front-most widget at (x, y).
func (idx *HitTestIndex[W]) FindTopWidgetAt(x, y float64) (W, bool) {
	ws := idx.FindWidgetsAt(x, y)
	if len(ws) == 0 {
		var zero W
		return zero, false
	}
	return ws[0], true
}

// collect keeps a y-axis candidate that was also found on the x axis.
func (idx *HitTestIndex[W]) collect(iv Interval[W]) bool {
	if _, ok := idx.seen[iv.Data]; ok {
		idx.hits = append(idx.hits, indexHit[W]{w: iv.Data, z: iv.Data.HitZ(), seq: idx.entries[iv.Data].seq})
	}
	return true
}

func (idx *HitTestIndex[W]) resolve() []W {
	if len(idx.hits) == 0 {
		return nil
	}
	slices.SortFunc(idx.hits, func(a, b indexHit[W]) int {
		if a.z != b.z {
			return cmp.Compare(b.z, a.z)
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]W, len(idx.hits))
	for i := range idx.hits {
		out[i] = idx.hits[i].w
		idx.hits[i] = indexHit[W]{}
	}
	return out
}

// --- Inspection ---

// Len returns the number of tracked widgets.
func (idx *HitTestIndex[W]) Len() int {
	return len(idx.entries)
}

// Contains reports whether w is tracked.
func (idx *HitTestIndex[W]) Contains(w W) bool {
	_, ok := idx.entries[w]
	return ok
}

// Bounds returns the bounds w was indexed with.
func (idx *HitTestIndex[W]) Bounds(w W) (Rect, bool) {
	e, ok := idx.entries[w]
	return e.bounds, ok
}

// VerifyIntegrity reports whether both trees are balanced with correct
// caches and both hold exactly one interval per tracked widget. O(n);
// meant for tests and debug builds.
func (idx *HitTestIndex[W]) VerifyIntegrity() bool {
	n := len(idx.entries)
	return idx.xTree.Len() == n && idx.yTree.Len() == n &&
		idx.xTree.IsBalanced() && idx.yTree.IsBalanced()
}

// TreeStats describes one axis tree.
type TreeStats struct {
	Size     int
	Height   int
	Balanced bool
}

// IndexStats is a snapshot of index size and shape.
type IndexStats struct {
	Widgets int
	X, Y    TreeStats
}

// Stats returns size and balance information for both trees.
func (idx *HitTestIndex[W]) Stats() IndexStats {
	return IndexStats{
		Widgets: len(idx.entries),
		X:       TreeStats{Size: idx.xTree.Len(), Height: idx.xTree.Height(), Balanced: idx.xTree.IsBalanced()},
		Y:       TreeStats{Size: idx.yTree.Len(), Height: idx.yTree.Height(), Balanced: idx.yTree.IsBalanced()},
	}
}

// String formats the stats on one line.
func (s IndexStats) String() string {
	return fmt.Sprintf("widgets: %s | x-tree: size=%s height=%d balanced=%t | y-tree: size=%s height=%d balanced=%t",
		humanize.Comma(int64(s.Widgets)),
		humanize.Comma(int64(s.X.Size)), s.X.Height, s.X.Balanced,
		humanize.Comma(int64(s.Y.Size)), s.Y.Height, s.Y.Balanced)
}

func validateBounds(b Rect) error {
	if err := checkRange(b.X, b.X+b.Width); err != nil {
		return fmt.Errorf("x extent: %w", err)
	}
	if err := checkRange(b.Y, b.Y+b.Height); err != nil {
		return fmt.Errorf("y extent: %w", err)
	}
	return nil
}
