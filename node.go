package canopy

// nodeIDCounter is a plain counter; canopy is single-threaded.
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is a scene graph element. Nodes with a size or a HitShape and with
// Interactable set take part in hit testing; plain containers only group and
// transform their children.
type Node struct {
	// Identity
	ID   uint32
	Name string
	// EntityID links the node to an external entity; 0 means unbound.
	EntityID uint32

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local)
	X, Y     float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64
	PivotX   float64
	PivotY   float64

	// Size of the node's default hit region in local units, anchored at the
	// local origin. Ignored when HitShape is set.
	Width, Height float64

	worldTransform [6]float64
	transformDirty bool

	// Visibility & interaction
	Visible      bool
	Interactable bool

	// ZIndex orders siblings: higher values paint and hit-test in front.
	ZIndex int

	// Metadata
	UserData any

	// HitShape narrows the hit region. The index works on its bounding box
	// and the shape's Contains gives the final answer.
	HitShape HitShape

	// Per-node callbacks (nil by default)
	OnPointerDown  func(PointerContext)
	OnPointerUp    func(PointerContext)
	OnPointerMove  func(PointerContext)
	OnPointerEnter func(PointerContext)
	OnPointerLeave func(PointerContext)
	OnClick        func(ClickContext)
	OnDragStart    func(DragContext)
	OnDrag         func(DragContext)
	OnDragEnd      func(DragContext)

	// Hit index bookkeeping, maintained by Scene.
	hitOrder    int
	hitFrame    uint64
	hitBounds   Rect
	hitBoundsOK bool

	// Internal
	disposed       bool
	childrenSorted bool
	sortedChildren []*Node // reused buffer for ZIndex-sorted traversal order
}

// NewNode creates an interactable-by-default node with the given hit size.
func NewNode(name string, width, height float64) *Node {
	n := &Node{Name: name, Width: width, Height: height, Interactable: true}
	nodeDefaults(n)
	return n
}

// NewContainer creates a grouping node with no hit region of its own.
// Containers must be Interactable for their children to be hit-tested.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Interactable: true}
	nodeDefaults(n)
	return n
}

func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Visible = true
	n.transformDirty = true
	n.childrenSorted = true
}

// --- Widget implementation ---

// HitBounds returns the world-space axis-aligned bounding box of the node's
// hit region, as of the last transform refresh.
func (n *Node) HitBounds() Rect {
	return worldAABB(n.worldTransform, n.localHitRect())
}

// HitZ returns the node's position in painter order. Nodes painted later are
// in front and get higher values.
func (n *Node) HitZ() int {
	return n.hitOrder
}

// CachedHitBounds returns the bounds the node is currently indexed under.
func (n *Node) CachedHitBounds() (Rect, bool) {
	return n.hitBounds, n.hitBoundsOK
}

// SetCachedHitBounds records the bounds the node is indexed under.
func (n *Node) SetCachedHitBounds(r Rect) {
	n.hitBounds = r
	n.hitBoundsOK = true
}

func (n *Node) forgetHitBounds() {
	n.hitBounds = Rect{}
	n.hitBoundsOK = false
}

// localHitRect returns the hit region's bounding box in local coordinates.
func (n *Node) localHitRect() Rect {
	if n.HitShape != nil {
		if b, ok := n.HitShape.(interface{ Bounds() Rect }); ok {
			return b.Bounds()
		}
	}
	return Rect{Width: n.Width, Height: n.Height}
}

// hitTestable reports whether the node has a region worth indexing.
func (n *Node) hitTestable() bool {
	return n.HitShape != nil || n.Width > 0 || n.Height > 0
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	n.AddChildAt(child, len(n.children))
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("canopy: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("canopy: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
		child.Parent.childrenSorted = false
		if child.Parent == n && index > len(n.children) {
			index = len(n.children)
		}
	}
	if index < 0 || index > len(n.children) {
		panic("canopy: child index out of range")
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	n.childrenSorted = false
	markSubtreeDirty(child)
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("canopy: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	n.childrenSorted = false
	markSubtreeDirty(child)
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, child := range n.children {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	clear(n.children)
	n.children = n.children[:0]
	n.childrenSorted = true
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// SetZIndex sets the node's ZIndex and marks the parent's children as unsorted.
func (n *Node) SetZIndex(z int) {
	if n.ZIndex == z {
		return
	}
	n.ZIndex = z
	if n.Parent != nil {
		n.Parent.childrenSorted = false
	}
}

// SetSize sets the node's hit size and marks it dirty.
func (n *Node) SetSize(w, h float64) {
	n.Width = w
	n.Height = h
	n.transformDirty = true
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants. The scene drops disposed nodes
// from its hit index on the next Update.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.sortedChildren = nil
	n.Parent = nil
	n.HitShape = nil
	n.UserData = nil
	n.OnPointerDown = nil
	n.OnPointerUp = nil
	n.OnPointerMove = nil
	n.OnPointerEnter = nil
	n.OnPointerLeave = nil
	n.OnClick = nil
	n.OnDragStart = nil
	n.OnDrag = nil
	n.OnDragEnd = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node (or node itself).
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// markSubtreeDirty sets transformDirty on node and all its descendants.
func markSubtreeDirty(node *Node) {
	node.transformDirty = true
	for _, child := range node.children {
		markSubtreeDirty(child)
	}
}
