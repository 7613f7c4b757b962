package canopy

import (
	"io"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// Scene is the top-level object that owns the node tree, cameras, the hit
// index, and pointer state.
type Scene struct {
	root  *Node
	store EntityStore
	debug bool
	// debugOut receives debug lines; stderr unless replaced.
	debugOut io.Writer

	// Cameras
	cameras []*Camera

	// Hit index
	index   *HitTestIndex[*Node]
	policy  UpdatePolicy
	frame   uint64
	hitBuf  []*Node // interactable nodes in painter order, rebuilt every sync
	tracked []*Node // nodes indexed after the previous sync
	dirty   []DirtyWidget[*Node]

	// Input state
	handlers     handlerRegistry
	captured     [maxPointers]*Node
	pointers     [maxPointers]pointerState
	dragDeadZone float64
	touchMap     [maxPointers]ebiten.TouchID
	touchUsed    [maxPointers]bool
	prevTouchIDs []ebiten.TouchID
	injectQueue  []syntheticPointerEvent
	testRunner   *TestRunner
}

// NewScene creates a new scene with a pre-created root container.
func NewScene() *Scene {
	return &Scene{
		root:         NewContainer("root"),
		debugOut:     os.Stderr,
		index:        NewHitTestIndex[*Node](),
		policy:       DefaultUpdatePolicy(),
		dragDeadZone: defaultDragDeadZone,
	}
}

// Root returns the scene's root container node.
func (s *Scene) Root() *Node {
	return s.root
}

// HitIndex returns the scene's hit index. It is kept in sync by Update and
// RefreshHitIndex; mutating it directly desynchronizes the scene.
func (s *Scene) HitIndex() *HitTestIndex[*Node] {
	return s.index
}

// SetUpdatePolicy replaces the policy used to maintain the hit index.
func (s *Scene) SetUpdatePolicy(p UpdatePolicy) {
	s.policy = p
}

// Update refreshes transforms and the hit index, advances cameras, and
// processes input. Call once per tick.
func (s *Scene) Update() {
	dt := float32(1.0 / float64(ebiten.TPS()))

	s.RefreshHitIndex()

	for _, cam := range s.cameras {
		cam.update(dt)
	}
	if s.testRunner != nil {
		s.testRunner.step(s)
	}
	s.processInput()
}

// RefreshHitIndex recomputes world transforms and brings the hit index up to
// date with the node tree. Update calls it each frame; call it directly after
// moving nodes when queries must see the change before the next Update.
func (s *Scene) RefreshHitIndex() {
	updateWorldTransform(s.root, identityTransform, false)
	s.syncHitIndex()
}

// syncHitIndex diffs the interactable nodes against what the index holds.
// Vanished nodes are removed directly; new and moved nodes go through the
// update policy.
func (s *Scene) syncHitIndex() {
	var stats indexSyncStats
	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}

	s.frame++
	s.hitBuf = s.collectInteractable(s.root, s.hitBuf[:0])
	s.dirty = s.dirty[:0]

	for i, n := range s.hitBuf {
		n.hitOrder = i
		n.hitFrame = s.frame
		b := n.HitBounds()
		prev, cached := n.CachedHitBounds()
		if cached && s.index.Contains(n) {
			if prev == b {
				continue
			}
		} else {
			stats.added++
		}
		s.dirty = append(s.dirty, DirtyWidget[*Node]{Widget: n, OldBounds: prev})
		n.SetCachedHitBounds(b)
	}

	for _, n := range s.tracked {
		if n.hitFrame == s.frame {
			continue
		}
		if prev, ok := n.CachedHitBounds(); ok {
			s.index.RemoveWidget(n, prev)
		}
		n.forgetHitBounds()
		stats.removed++
	}
	clear(s.tracked)
	s.tracked = append(s.tracked[:0], s.hitBuf...)

	action, err := s.index.ApplyUpdates(s.policy, s.hitBuf, s.dirty)
	if err != nil {
		// Resync caches with what the index actually holds so failed nodes
		// are picked up again next frame.
		for _, d := range s.dirty {
			if b, ok := s.index.Bounds(d.Widget); ok {
				d.Widget.SetCachedHitBounds(b)
			} else {
				d.Widget.forgetHitBounds()
			}
		}
	}

	if s.debug {
		stats.action = action
		stats.dirty = len(s.dirty)
		stats.total = len(s.hitBuf)
		stats.elapsed = time.Since(t0)
		stats.err = err
		s.debugLogSync(stats)
	}
	clear(s.dirty)
}

// collectInteractable walks the tree in painter order (DFS, ZIndex-sorted),
// appending hit-testable nodes to buf. Skips Visible=false or
// Interactable=false subtrees and disposed nodes.
func (s *Scene) collectInteractable(n *Node, buf []*Node) []*Node {
	if !n.Visible || !n.Interactable || n.disposed {
		return buf
	}
	if n.hitTestable() {
		buf = append(buf, n)
	}
	if len(n.children) == 0 {
		return buf
	}

	children := n.children
	if !n.childrenSorted {
		rebuildSortedChildren(n)
	}
	if n.sortedChildren != nil {
		children = n.sortedChildren
	}
	for _, child := range children {
		buf = s.collectInteractable(child, buf)
	}
	return buf
}

// rebuildSortedChildren rebuilds the ZIndex-sorted traversal order for a node.
// Stable insertion sort: siblings with equal ZIndex keep child order.
func rebuildSortedChildren(n *Node) {
	nc := len(n.children)
	if cap(n.sortedChildren) < nc {
		n.sortedChildren = make([]*Node, nc)
	}
	n.sortedChildren = n.sortedChildren[:nc]
	copy(n.sortedChildren, n.children)
	for i := 1; i < nc; i++ {
		key := n.sortedChildren[i]
		j := i - 1
		for j >= 0 && n.sortedChildren[j].ZIndex > key.ZIndex {
			n.sortedChildren[j+1] = n.sortedChildren[j]
			j--
		}
		n.sortedChildren[j+1] = key
	}
	n.childrenSorted = true
}

// --- Queries ---

// NodesAt returns every node whose hit region contains the world point,
// front to back. HitShapes are honored.
func (s *Scene) NodesAt(wx, wy float64) []*Node {
	candidates := s.index.FindWidgetsAt(wx, wy)
	out := candidates[:0]
	for _, n := range candidates {
		if nodeContainsWorld(n, wx, wy) {
			out = append(out, n)
		}
	}
	return out
}

// TopNodeAt returns the front-most node whose hit region contains the world
// point, or nil.
func (s *Scene) TopNodeAt(wx, wy float64) *Node {
	for _, n := range s.index.FindWidgetsAt(wx, wy) {
		if nodeContainsWorld(n, wx, wy) {
			return n
		}
	}
	return nil
}

// NodesIn returns every node whose world bounding box intersects r, front to
// back. HitShapes are not consulted.
func (s *Scene) NodesIn(r Rect) []*Node {
	return s.index.FindWidgetsInRect(r)
}

// VisibleNodes returns the interactable nodes inside the camera's visible
// area, front to back.
func (s *Scene) VisibleNodes(cam *Camera) []*Node {
	return s.NodesIn(cam.VisibleBounds())
}

// --- Cameras ---

// NewCamera creates a camera with the given viewport and adds it to the scene.
func (s *Scene) NewCamera(viewport Rect) *Camera {
	cam := newCamera(viewport)
	s.cameras = append(s.cameras, cam)
	return cam
}

// RemoveCamera removes a camera from the scene.
func (s *Scene) RemoveCamera(cam *Camera) {
	for i, c := range s.cameras {
		if c == cam {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			return
		}
	}
}

// Cameras returns the scene's camera list. The returned slice MUST NOT be mutated.
func (s *Scene) Cameras() []*Camera {
	return s.cameras
}

// --- Debug ---

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics, tree depth and child count warnings are printed, and
// per-frame hit index maintenance is logged.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
	if enabled {
		s.index.SetDebugOutput(s.debugOut)
	} else {
		s.index.SetDebugOutput(nil)
	}
}

// SetDebugOutput redirects debug output (stderr by default). Nil discards it.
func (s *Scene) SetDebugOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	s.debugOut = w
	debugWarnOut = w
	if s.debug {
		s.index.SetDebugOutput(w)
	}
}

// globalDebug mirrors the most recently set Scene debug flag so that node
// operations (which lack a Scene pointer) can check it cheaply.
var globalDebug bool
