package canopy

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
)

// testWidget is a minimal Widget: a pointer handle with mutable bounds.
type testWidget struct {
	name string
	b    Rect
	z    int
}

func (w *testWidget) HitBounds() Rect { return w.b }
func (w *testWidget) HitZ() int       { return w.z }

// cachedWidget also remembers the bounds it was last indexed with.
type cachedWidget struct {
	testWidget
	cached   Rect
	cachedOK bool
}

func (w *cachedWidget) CachedHitBounds() (Rect, bool) { return w.cached, w.cachedOK }
func (w *cachedWidget) SetCachedHitBounds(r Rect)     { w.cached, w.cachedOK = r, true }

func newWidget(name string, x, y, w, h float64, z int) *testWidget {
	return &testWidget{name: name, b: Rect{X: x, Y: y, Width: w, Height: h}, z: z}
}

func names(ws []*testWidget) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.name
	}
	return out
}

func mustInsertWidget(t *testing.T, idx *HitTestIndex[*testWidget], ws ...*testWidget) {
	t.Helper()
	for _, w := range ws {
		if err := idx.InsertWidget(w); err != nil {
			t.Fatalf("InsertWidget(%s): %v", w.name, err)
		}
	}
}

// overlapScene builds three widgets: A and B overlap, C sits apart.
func overlapScene(t *testing.T) (*HitTestIndex[*testWidget], *testWidget, *testWidget, *testWidget) {
	t.Helper()
	idx := NewHitTestIndex[*testWidget]()
	a := newWidget("A", 0, 0, 100, 100, 1)
	b := newWidget("B", 50, 50, 100, 100, 2)
	c := newWidget("C", 200, 200, 50, 50, 0)
	mustInsertWidget(t, idx, a, b, c)
	return idx, a, b, c
}

// --- Point queries ---

func TestFindWidgetsAtZOrder(t *testing.T) {
	idx, _, _, _ := overlapScene(t)

	tests := []struct {
		name string
		x, y float64
		want []string
	}{
		{"overlap", 75, 75, []string{"B", "A"}},
		{"only A", 25, 25, []string{"A"}},
		{"only C", 225, 225, []string{"C"}},
		{"miss", 175, 175, nil},
		{"shared corner", 100, 100, []string{"B", "A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(idx.FindWidgetsAt(tt.x, tt.y))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindWidgetsAt(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestFindTopWidgetAt(t *testing.T) {
	idx, _, b, _ := overlapScene(t)

	top, ok := idx.FindTopWidgetAt(75, 75)
	if !ok || top != b {
		t.Errorf("FindTopWidgetAt(75, 75) = %v, %v; want B", top, ok)
	}
	if top, ok := idx.FindTopWidgetAt(175, 175); ok || top != nil {
		t.Errorf("FindTopWidgetAt(175, 175) = %v, %v; want nil, false", top, ok)
	}
}

func TestFindWidgetsAtTieKeepsInsertionOrder(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	first := newWidget("first", 0, 0, 10, 10, 5)
	second := newWidget("second", 0, 0, 10, 10, 5)
	third := newWidget("third", 0, 0, 10, 10, 5)
	mustInsertWidget(t, idx, first, second, third)

	got := names(idx.FindWidgetsAt(5, 5))
	want := []string{"first", "second", "third"}
	if !slices.Equal(got, want) {
		t.Errorf("FindWidgetsAt = %v, want %v", got, want)
	}
}

func TestFindWidgetsAtReadsZAtQueryTime(t *testing.T) {
	idx, a, _, _ := overlapScene(t)
	a.z = 10
	got := names(idx.FindWidgetsAt(75, 75))
	if want := []string{"A", "B"}; !slices.Equal(got, want) {
		t.Errorf("after raising A: %v, want %v", got, want)
	}
}

func TestFindWidgetsAtEmptyIndex(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	if got := idx.FindWidgetsAt(0, 0); len(got) != 0 {
		t.Errorf("empty index returned %v", got)
	}
}

func TestZeroSizeWidgetHitOnlyAtItsPoint(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	dot := newWidget("dot", 10, 10, 0, 0, 0)
	mustInsertWidget(t, idx, dot)

	if got := idx.FindWidgetsAt(10, 10); len(got) != 1 {
		t.Errorf("FindWidgetsAt(10, 10) = %v, want dot", names(got))
	}
	if got := idx.FindWidgetsAt(10.5, 10); len(got) != 0 {
		t.Errorf("FindWidgetsAt(10.5, 10) = %v, want none", names(got))
	}
}

// --- Rect queries ---

func TestFindWidgetsInRect(t *testing.T) {
	idx, _, _, _ := overlapScene(t)

	tests := []struct {
		name string
		r    Rect
		want []string
	}{
		{"everything", Rect{X: -10, Y: -10, Width: 300, Height: 300}, []string{"B", "A", "C"}},
		{"touching C edge", Rect{X: 250, Y: 250, Width: 10, Height: 10}, []string{"C"}},
		{"x overlap only", Rect{X: 200, Y: 0, Width: 10, Height: 10}, nil},
		{"only A", Rect{X: 0, Y: 0, Width: 10, Height: 10}, []string{"A"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(idx.FindWidgetsInRect(tt.r))
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindWidgetsInRect(%v) = %v, want %v", tt.r, got, tt.want)
			}
		})
	}
}

func TestFindWidgetsInRectInvertedIsEmpty(t *testing.T) {
	idx, _, _, _ := overlapScene(t)
	if got := idx.FindWidgetsInRect(Rect{X: 50, Y: 50, Width: -10, Height: 10}); len(got) != 0 {
		t.Errorf("inverted rect returned %v", names(got))
	}
}

// --- Mutation ---

func TestInsertWidgetInvalidBounds(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	bad := newWidget("bad", 0, 0, -5, 10, 0)
	err := idx.InsertWidget(bad)
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("InsertWidget err = %v, want ErrInvalidInterval", err)
	}
	if idx.Len() != 0 || idx.Contains(bad) {
		t.Error("rejected widget should not be tracked")
	}
	if !idx.VerifyIntegrity() {
		t.Error("index integrity broken after rejected insert")
	}
}

func TestInsertWidgetTwiceReplaces(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	w := newWidget("w", 0, 0, 10, 10, 0)
	mustInsertWidget(t, idx, w)
	w.b.X = 100
	mustInsertWidget(t, idx, w)

	if idx.Len() != 1 {
		t.Fatalf("Len = %d, want 1", idx.Len())
	}
	if got := idx.FindWidgetsAt(5, 5); len(got) != 0 {
		t.Errorf("old position still hits: %v", names(got))
	}
	if got := idx.FindWidgetsAt(105, 5); len(got) != 1 {
		t.Errorf("new position should hit, got %v", names(got))
	}
	if !idx.VerifyIntegrity() {
		t.Error("integrity broken")
	}
}

func TestRemoveWidget(t *testing.T) {
	idx, a, b, _ := overlapScene(t)

	if !idx.RemoveWidget(b, b.b) {
		t.Fatal("RemoveWidget(B) = false")
	}
	if idx.RemoveWidget(b, b.b) {
		t.Error("second RemoveWidget(B) should report false")
	}
	got := idx.FindWidgetsAt(75, 75)
	if len(got) != 1 || got[0] != a {
		t.Errorf("after removing B: %v, want [A]", names(got))
	}
	if idx.Len() != 2 || !idx.VerifyIntegrity() {
		t.Errorf("Len = %d, integrity = %v", idx.Len(), idx.VerifyIntegrity())
	}
}

func TestRemoveWidgetIdenticalBoundsRemovesOnlyThatWidget(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	var ws []*testWidget
	for _, n := range []string{"a", "b", "c", "d"} {
		ws = append(ws, newWidget(n, 10, 10, 20, 20, 0))
	}
	mustInsertWidget(t, idx, ws...)

	if !idx.RemoveWidget(ws[2], ws[2].b) {
		t.Fatal("RemoveWidget(c) = false")
	}
	got := names(idx.FindWidgetsAt(15, 15))
	if want := []string{"a", "b", "d"}; !slices.Equal(got, want) {
		t.Errorf("after removing c: %v, want %v", got, want)
	}
	if !idx.VerifyIntegrity() {
		t.Error("integrity broken")
	}
}

func TestRemoveWidgetStaleBoundsUsesRecorded(t *testing.T) {
	var buf bytes.Buffer
	idx := NewHitTestIndex[*testWidget]()
	idx.SetDebugOutput(&buf)
	w := newWidget("w", 0, 0, 10, 10, 0)
	mustInsertWidget(t, idx, w)

	if !idx.RemoveWidget(w, Rect{X: 500, Y: 500, Width: 1, Height: 1}) {
		t.Fatal("RemoveWidget with stale bounds = false")
	}
	if idx.Len() != 0 || !idx.VerifyIntegrity() {
		t.Errorf("Len = %d, integrity = %v", idx.Len(), idx.VerifyIntegrity())
	}
	if !strings.Contains(buf.String(), "[canopy] warning") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}

func TestUpdateWidgetMovesHits(t *testing.T) {
	idx, a, _, _ := overlapScene(t)
	old := a.b
	a.b.X, a.b.Y = 300, 300

	if err := idx.UpdateWidget(a, old); err != nil {
		t.Fatal(err)
	}
	if got := names(idx.FindWidgetsAt(25, 25)); len(got) != 0 {
		t.Errorf("old position still hits %v", got)
	}
	if got := names(idx.FindWidgetsAt(350, 350)); !slices.Equal(got, []string{"A"}) {
		t.Errorf("new position = %v, want [A]", got)
	}
	if !idx.VerifyIntegrity() {
		t.Error("integrity broken")
	}
}

func TestUpdateWidgetKeepsInsertionOrder(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	first := newWidget("first", 0, 0, 10, 10, 0)
	second := newWidget("second", 0, 0, 10, 10, 0)
	mustInsertWidget(t, idx, first, second)

	old := first.b
	first.b.Width = 20
	if err := idx.UpdateWidget(first, old); err != nil {
		t.Fatal(err)
	}
	got := names(idx.FindWidgetsAt(5, 5))
	if want := []string{"first", "second"}; !slices.Equal(got, want) {
		t.Errorf("FindWidgetsAt = %v, want %v", got, want)
	}
}

func TestUpdateWidgetInvalidKeepsOldBounds(t *testing.T) {
	idx, a, _, _ := overlapScene(t)
	old := a.b
	a.b.Height = -1

	if err := idx.UpdateWidget(a, old); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("UpdateWidget err = %v, want ErrInvalidInterval", err)
	}
	if got, ok := idx.Bounds(a); !ok || got != old {
		t.Errorf("Bounds(A) = %v, %v; want %v", got, ok, old)
	}
	if got := names(idx.FindWidgetsAt(25, 25)); !slices.Equal(got, []string{"A"}) {
		t.Errorf("old position = %v, want [A]", got)
	}
}

func TestUpdateWidgetUntrackedInserts(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	w := newWidget("w", 0, 0, 10, 10, 0)
	if err := idx.UpdateWidget(w, Rect{}); err != nil {
		t.Fatal(err)
	}
	if !idx.Contains(w) {
		t.Error("UpdateWidget should start tracking an untracked widget")
	}
}

func TestUpdateWidgetBoundsUsesCache(t *testing.T) {
	idx := NewHitTestIndex[*cachedWidget]()
	w := &cachedWidget{testWidget: testWidget{name: "w", b: Rect{Width: 10, Height: 10}}}
	if err := idx.UpdateWidgetBounds(w, w.b); err != nil {
		t.Fatal(err)
	}
	if got, ok := w.CachedHitBounds(); !ok || got != w.b {
		t.Fatalf("cache = %v, %v; want %v", got, ok, w.b)
	}

	next := Rect{X: 40, Y: 40, Width: 10, Height: 10}
	if err := idx.UpdateWidgetBounds(w, next); err != nil {
		t.Fatal(err)
	}
	if got, _ := w.CachedHitBounds(); got != next {
		t.Errorf("cache = %v, want %v", got, next)
	}
	if got := idx.FindWidgetsAt(5, 5); len(got) != 0 {
		t.Error("old bounds still hit")
	}
	if got := idx.FindWidgetsAt(45, 45); len(got) != 1 || got[0] != w {
		t.Errorf("new bounds miss: %v", got)
	}
	if idx.Len() != 1 || !idx.VerifyIntegrity() {
		t.Errorf("Len = %d, integrity = %v", idx.Len(), idx.VerifyIntegrity())
	}

	if err := idx.UpdateWidgetBounds(w, Rect{Width: -1}); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("invalid bounds err = %v", err)
	}
	if got, _ := w.CachedHitBounds(); got != next {
		t.Errorf("cache changed by rejected update: %v", got)
	}
}

func TestRebuildFromWidgets(t *testing.T) {
	idx, a, b, c := overlapScene(t)
	d := newWidget("D", 60, 60, 10, 10, 2)

	if err := idx.RebuildFromWidgets([]*testWidget{c, d, b}); err != nil {
		t.Fatal(err)
	}
	if idx.Contains(a) {
		t.Error("A should be gone after rebuild")
	}
	if idx.Len() != 3 || !idx.VerifyIntegrity() {
		t.Errorf("Len = %d, integrity = %v", idx.Len(), idx.VerifyIntegrity())
	}
	// D and B share z 2; D now comes first in insertion order.
	got := names(idx.FindWidgetsAt(65, 65))
	if want := []string{"D", "B"}; !slices.Equal(got, want) {
		t.Errorf("FindWidgetsAt(65, 65) = %v, want %v", got, want)
	}
}

func TestRebuildFromWidgetsInvalidLeavesIndexUntouched(t *testing.T) {
	idx, a, b, c := overlapScene(t)
	bad := newWidget("bad", 0, 0, 1, -1, 0)

	err := idx.RebuildFromWidgets([]*testWidget{c, bad})
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
	for _, w := range []*testWidget{a, b, c} {
		if !idx.Contains(w) {
			t.Errorf("%s dropped by failed rebuild", w.name)
		}
	}
}

func TestRebuildIdempotent(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	ws := randomWidgets(rand.New(rand.NewPCG(3, 4)), 200)
	if err := idx.RebuildFromWidgets(ws); err != nil {
		t.Fatal(err)
	}
	probes := randomProbes(rand.New(rand.NewPCG(5, 6)), 100)
	before := make([][]*testWidget, len(probes))
	for i, p := range probes {
		before[i] = idx.FindWidgetsAt(p.X, p.Y)
	}
	if err := idx.RebuildFromWidgets(ws); err != nil {
		t.Fatal(err)
	}
	for i, p := range probes {
		if got := idx.FindWidgetsAt(p.X, p.Y); !slices.Equal(got, before[i]) {
			t.Fatalf("probe %v: %d hits after second rebuild, want %d", p, len(got), len(before[i]))
		}
	}
}

func TestClear(t *testing.T) {
	idx, a, _, _ := overlapScene(t)
	idx.Clear()
	if idx.Len() != 0 || idx.Contains(a) {
		t.Error("Clear left widgets behind")
	}
	if got := idx.FindWidgetsAt(75, 75); len(got) != 0 {
		t.Errorf("FindWidgetsAt after Clear = %v", names(got))
	}
}

// --- ApplyUpdates ---

func TestApplyUpdatesChoosesAction(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	ws := make([]*testWidget, 10)
	for i := range ws {
		ws[i] = newWidget("w", float64(i*20), 0, 10, 10, 0)
	}
	if err := idx.RebuildFromWidgets(ws); err != nil {
		t.Fatal(err)
	}

	move := func(n int) []DirtyWidget[*testWidget] {
		var dirty []DirtyWidget[*testWidget]
		for _, w := range ws[:n] {
			old := w.b
			w.b.Y += 50
			dirty = append(dirty, DirtyWidget[*testWidget]{Widget: w, OldBounds: old})
		}
		return dirty
	}

	tests := []struct {
		name  string
		moved int
		want  UpdateAction
	}{
		{"none", 0, UpdateNone},
		{"few", 2, UpdateIncremental},
		{"many", 6, UpdateRebuild},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := idx.ApplyUpdates(DefaultUpdatePolicy(), ws, move(tt.moved))
			if err != nil {
				t.Fatal(err)
			}
			if action != tt.want {
				t.Errorf("action = %v, want %v", action, tt.want)
			}
			if !idx.VerifyIntegrity() || idx.Len() != len(ws) {
				t.Errorf("Len = %d, integrity = %v", idx.Len(), idx.VerifyIntegrity())
			}
			for _, w := range ws {
				got, _ := idx.Bounds(w)
				if got != w.b {
					t.Fatalf("Bounds = %v, want %v", got, w.b)
				}
			}
		})
	}
}

func TestApplyUpdatesJoinsErrors(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	ws := make([]*testWidget, 10)
	for i := range ws {
		ws[i] = newWidget("w", float64(i*20), 0, 10, 10, 0)
	}
	mustInsertWidget(t, idx, ws...)

	good, bad := ws[0], ws[1]
	goodOld, badOld := good.b, bad.b
	good.b.Y = 100
	bad.b.Width = -3

	action, err := idx.ApplyUpdates(DefaultUpdatePolicy(), ws, []DirtyWidget[*testWidget]{
		{Widget: bad, OldBounds: badOld},
		{Widget: good, OldBounds: goodOld},
	})
	if action != UpdateIncremental {
		t.Fatalf("action = %v, want incremental", action)
	}
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
	if got, _ := idx.Bounds(good); got != good.b {
		t.Errorf("good widget not updated past the failure: %v", got)
	}
	if got, _ := idx.Bounds(bad); got != badOld {
		t.Errorf("bad widget bounds = %v, want %v", got, badOld)
	}
}

// --- Brute force comparison ---

// TestIndexMatchesLinearScan runs random mutations and compares every query
// against a brute-force scan with the same ordering rule.
func TestIndexMatchesLinearScan(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	idx := NewHitTestIndex[*testWidget]()
	var live []*testWidget

	for step := range 600 {
		switch op := r.IntN(4); {
		case op == 0 || len(live) == 0:
			w := randomWidgets(r, 1)[0]
			mustInsertWidget(t, idx, w)
			live = append(live, w)
		case op == 1:
			i := r.IntN(len(live))
			if !idx.RemoveWidget(live[i], live[i].b) {
				t.Fatalf("step %d: RemoveWidget failed", step)
			}
			live = slices.Delete(live, i, i+1)
		default:
			w := live[r.IntN(len(live))]
			old := w.b
			w.b.X += float64(r.IntN(41) - 20)
			w.b.Y += float64(r.IntN(41) - 20)
			w.z = r.IntN(4)
			if err := idx.UpdateWidget(w, old); err != nil {
				t.Fatalf("step %d: %v", step, err)
			}
		}

		if !idx.VerifyIntegrity() {
			t.Fatalf("step %d: integrity broken", step)
		}
		p := randomProbes(r, 1)[0]
		got := idx.FindWidgetsAt(p.X, p.Y)
		want := linearHits(idx, live, p.X, p.Y)
		if !slices.Equal(got, want) {
			t.Fatalf("step %d: FindWidgetsAt(%v) = %v, want %v", step, p, names(got), names(want))
		}
	}
}

// linearHits scans ws and orders matches by z descending, then by the
// index's recorded insertion order.
func linearHits(idx *HitTestIndex[*testWidget], ws []*testWidget, x, y float64) []*testWidget {
	var out []*testWidget
	for _, w := range ws {
		if w.b.Contains(x, y) {
			out = append(out, w)
		}
	}
	slices.SortStableFunc(out, func(a, b *testWidget) int {
		if a.z != b.z {
			return b.z - a.z
		}
		sa, sb := idx.entries[a].seq, idx.entries[b].seq
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		}
		return 0
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func randomWidgets(r *rand.Rand, n int) []*testWidget {
	ws := make([]*testWidget, n)
	for i := range ws {
		ws[i] = newWidget("w", float64(r.IntN(400)), float64(r.IntN(400)),
			float64(r.IntN(80)), float64(r.IntN(80)), r.IntN(4))
	}
	return ws
}

func randomProbes(r *rand.Rand, n int) []Vec2 {
	ps := make([]Vec2, n)
	for i := range ps {
		ps[i] = Vec2{X: float64(r.IntN(480)), Y: float64(r.IntN(480))}
	}
	return ps
}

// --- Stats ---

func TestStats(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	mustInsertWidget(t, idx, randomWidgets(rand.New(rand.NewPCG(8, 9)), 1500)...)

	st := idx.Stats()
	if st.Widgets != 1500 || st.X.Size != 1500 || st.Y.Size != 1500 {
		t.Errorf("Stats = %+v", st)
	}
	if !st.X.Balanced || !st.Y.Balanced {
		t.Error("trees reported unbalanced")
	}
	if s := st.String(); !strings.Contains(s, "widgets: 1,500") {
		t.Errorf("String() = %q", s)
	}
}

func TestApplyUpdatesRejectedRebuildFallsBack(t *testing.T) {
	idx := NewHitTestIndex[*testWidget]()
	ws := make([]*testWidget, 4)
	for i := range ws {
		ws[i] = newWidget("w", float64(i*20), 0, 10, 10, 0)
	}
	mustInsertWidget(t, idx, ws...)

	var dirty []DirtyWidget[*testWidget]
	for _, w := range ws {
		dirty = append(dirty, DirtyWidget[*testWidget]{Widget: w, OldBounds: w.b})
		w.b.Y = 100
	}
	ws[3].b.Height = -1

	action, err := idx.ApplyUpdates(DefaultUpdatePolicy(), ws, dirty)
	if action != UpdateIncremental {
		t.Errorf("action = %v, want incremental fallback", action)
	}
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
	for _, w := range ws[:3] {
		if got, _ := idx.Bounds(w); got != w.b {
			t.Errorf("Bounds = %v, want %v", got, w.b)
		}
	}
	if got, _ := idx.Bounds(ws[3]); got.Y != 0 {
		t.Errorf("invalid widget moved to %v", got)
	}
	if idx.Len() != 4 || !idx.VerifyIntegrity() {
		t.Errorf("Len = %d, integrity = %v", idx.Len(), idx.VerifyIntegrity())
	}
}
