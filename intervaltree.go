package canopy

// IntervalTree is an AVL-balanced binary search tree of closed intervals,
// keyed by interval start. Every node caches the maximum End of its subtree
// so stabbing and overlap queries can skip subtrees that end too early.
//
// Duplicate starts and identical ranges are allowed. The zero value is an
// empty tree ready to use. IntervalTree is not safe for concurrent use.
type IntervalTree[T any] struct {
	root *intervalNode[T]
	size int
}

// NewIntervalTree returns an empty interval tree.
func NewIntervalTree[T any]() *IntervalTree[T] {
	return &IntervalTree[T]{}
}

// Insert adds [start, end] carrying data. Returns ErrInvalidInterval when
// start > end; the tree is unchanged in that case.
func (t *IntervalTree[T]) Insert(start, end float64, data T) error {
	iv, err := NewInterval(start, end, data)
	if err != nil {
		return err
	}
	t.insert(iv)
	return nil
}

// InsertInterval adds iv. Intervals built as struct literals are validated
// here the same way NewInterval validates them.
func (t *IntervalTree[T]) InsertInterval(iv Interval[T]) error {
	if err := checkRange(iv.Start, iv.End); err != nil {
		return err
	}
	t.insert(iv)
	return nil
}

func (t *IntervalTree[T]) insert(iv Interval[T]) {
	t.root = t.root.insert(iv)
	t.size++
}

// Remove deletes one interval whose range equals [start, end], regardless of
// its payload. When several intervals share the range, the first one met on
// the search path is removed, which is not necessarily the oldest. Use
// RemoveFunc to pick a specific payload. Reports whether anything was removed.
func (t *IntervalTree[T]) Remove(start, end float64) bool {
	return t.RemoveFunc(start, end, nil)
}

// RemoveFunc deletes one interval whose range equals [start, end] and whose
// payload satisfies match. A nil match accepts any payload.
func (t *IntervalTree[T]) RemoveFunc(start, end float64, match func(T) bool) bool {
	var removed bool
	t.root = t.root.remove(start, end, match, &removed)
	if removed {
		t.size--
	}
	return removed
}

// Query returns every interval containing p, in ascending start order.
func (t *IntervalTree[T]) Query(p float64) []Interval[T] {
	var out []Interval[T]
	t.root.stab(p, func(iv Interval[T]) bool {
		out = append(out, iv)
		return true
	})
	return out
}

// QueryFunc calls fn for every interval containing p, in ascending start
// order, until fn returns false.
func (t *IntervalTree[T]) QueryFunc(p float64, fn func(Interval[T]) bool) {
	t.root.stab(p, fn)
}

// FindOverlaps returns every interval intersecting [start, end], in
// ascending start order. An inverted range matches nothing.
func (t *IntervalTree[T]) FindOverlaps(start, end float64) []Interval[T] {
	var out []Interval[T]
	t.FindOverlapsFunc(start, end, func(iv Interval[T]) bool {
		out = append(out, iv)
		return true
	})
	return out
}

// FindOverlapsFunc calls fn for every interval intersecting [start, end]
// until fn returns false.
func (t *IntervalTree[T]) FindOverlapsFunc(start, end float64, fn func(Interval[T]) bool) {
	if !(start <= end) {
		return
	}
	t.root.overlaps(start, end, fn)
}

// Len returns the number of intervals in the tree.
func (t *IntervalTree[T]) Len() int {
	return t.size
}

// IsEmpty reports whether the tree holds no intervals.
func (t *IntervalTree[T]) IsEmpty() bool {
	return t.size == 0
}

// Clear removes every interval.
func (t *IntervalTree[T]) Clear() {
	t.root = nil
	t.size = 0
}

// Height returns the number of levels in the tree; a single node has height 1.
func (t *IntervalTree[T]) Height() int {
	return t.root.getHeight()
}

// Intervals returns all intervals in order (ascending start).
func (t *IntervalTree[T]) Intervals() []Interval[T] {
	out := make([]Interval[T], 0, t.size)
	return t.root.appendInOrder(out)
}

// IsBalanced walks the whole tree and reports whether every node satisfies
// the AVL bound, carries correct height and maxEnd caches, and keeps BST
// order. The node count must also match Len. Intended for tests and
// diagnostics; it is O(n).
func (t *IntervalTree[T]) IsBalanced() bool {
	count := 0
	if _, _, ok := t.root.check(&count); !ok {
		return false
	}
	return count == t.size
}

// --- Nodes ---

type intervalNode[T any] struct {
	iv     Interval[T]
	maxEnd float64
	// height counts nodes, not edges
	height      int
	left, right *intervalNode[T]
}

func (n *intervalNode[T]) getHeight() int {
	if n == nil {
		return 0
	}
	return n.height
}

// fix recomputes height and maxEnd from the node's own interval and its
// children. Must run on every node whose children changed.
func (n *intervalNode[T]) fix() {
	n.height = 1 + max(n.left.getHeight(), n.right.getHeight())
	n.maxEnd = n.iv.End
	if n.left != nil && n.left.maxEnd > n.maxEnd {
		n.maxEnd = n.left.maxEnd
	}
	if n.right != nil && n.right.maxEnd > n.maxEnd {
		n.maxEnd = n.right.maxEnd
	}
}

func (n *intervalNode[T]) insert(iv Interval[T]) *intervalNode[T] {
	if n == nil {
		return &intervalNode[T]{iv: iv, maxEnd: iv.End, height: 1}
	}
	if iv.Start < n.iv.Start {
		n.left = n.left.insert(iv)
	} else {
		n.right = n.right.insert(iv)
	}
	return n.rebalance()
}

// remove deletes the first node on the search path matching the range and
// payload. Equal starts can sit on either side of a node after rotations, so
// both subtrees are searched on a start tie.
func (n *intervalNode[T]) remove(start, end float64, match func(T) bool, removed *bool) *intervalNode[T] {
	if n == nil || n.maxEnd < end {
		return n
	}
	switch {
	case start < n.iv.Start:
		n.left = n.left.remove(start, end, match, removed)
	case start > n.iv.Start:
		n.right = n.right.remove(start, end, match, removed)
	default:
		if n.iv.End == end && (match == nil || match(n.iv.Data)) {
			*removed = true
			return n.unlink()
		}
		n.left = n.left.remove(start, end, match, removed)
		if !*removed {
			n.right = n.right.remove(start, end, match, removed)
		}
	}
	if !*removed {
		return n
	}
	return n.rebalance()
}

// unlink removes n itself and returns the subtree that replaces it.
func (n *intervalNode[T]) unlink() *intervalNode[T] {
	if n.left == nil {
		return n.right
	}
	if n.right == nil {
		return n.left
	}
	// Two children: take over the in-order successor's interval.
	succ := n.right
	for succ.left != nil {
		succ = succ.left
	}
	n.iv = succ.iv
	n.right = n.right.removeMin()
	return n.rebalance()
}

func (n *intervalNode[T]) removeMin() *intervalNode[T] {
	if n.left == nil {
		return n.right
	}
	n.left = n.left.removeMin()
	return n.rebalance()
}

// rebalance restores the AVL bound at n after one of its subtrees changed
// height by at most one, covering the LL, RR, LR and RL cases.
func (n *intervalNode[T]) rebalance() *intervalNode[T] {
	n.fix()
	balance := n.left.getHeight() - n.right.getHeight()
	switch {
	case balance > 1:
		if n.left.right.getHeight() > n.left.left.getHeight() {
			n.left = n.left.rotateLeft()
		}
		return n.rotateRight()
	case balance < -1:
		if n.right.left.getHeight() > n.right.right.getHeight() {
			n.right = n.right.rotateRight()
		}
		return n.rotateLeft()
	}
	return n
}

func (n *intervalNode[T]) rotateLeft() *intervalNode[T] {
	r := n.right
	n.right = r.left
	r.left = n
	n.fix()
	r.fix()
	return r
}

func (n *intervalNode[T]) rotateRight() *intervalNode[T] {
	l := n.left
	n.left = l.right
	l.right = n
	n.fix()
	l.fix()
	return l
}

// stab visits intervals containing p. Every node in the right subtree starts
// at or after n's start, so the right side is only worth visiting when
// p >= n's start. Returns false once fn asks to stop.
func (n *intervalNode[T]) stab(p float64, fn func(Interval[T]) bool) bool {
	if n == nil || n.maxEnd < p {
		return true
	}
	if n.left != nil && n.left.maxEnd >= p {
		if !n.left.stab(p, fn) {
			return false
		}
	}
	if n.iv.Start <= p && p <= n.iv.End {
		if !fn(n.iv) {
			return false
		}
	}
	if p >= n.iv.Start {
		return n.right.stab(p, fn)
	}
	return true
}

func (n *intervalNode[T]) overlaps(start, end float64, fn func(Interval[T]) bool) bool {
	if n == nil || n.maxEnd < start {
		return true
	}
	if n.left != nil && n.left.maxEnd >= start {
		if !n.left.overlaps(start, end, fn) {
			return false
		}
	}
	if n.iv.Start <= end && start <= n.iv.End {
		if !fn(n.iv) {
			return false
		}
	}
	if n.iv.Start <= end {
		return n.right.overlaps(start, end, fn)
	}
	return true
}

func (n *intervalNode[T]) appendInOrder(out []Interval[T]) []Interval[T] {
	if n == nil {
		return out
	}
	out = n.left.appendInOrder(out)
	out = append(out, n.iv)
	return n.right.appendInOrder(out)
}

// check returns the subtree's true height and max end, and whether every
// cached value and ordering constraint below n holds.
func (n *intervalNode[T]) check(count *int) (height int, maxEnd float64, ok bool) {
	if n == nil {
		return 0, 0, true
	}
	*count++
	lh, lmax, lok := n.left.check(count)
	rh, rmax, rok := n.right.check(count)
	if !lok || !rok {
		return 0, 0, false
	}
	if lh-rh > 1 || rh-lh > 1 {
		return 0, 0, false
	}
	if n.left != nil && n.left.maxStart() > n.iv.Start {
		return 0, 0, false
	}
	if n.right != nil && n.right.minStart() < n.iv.Start {
		return 0, 0, false
	}
	height = 1 + max(lh, rh)
	maxEnd = n.iv.End
	if n.left != nil && lmax > maxEnd {
		maxEnd = lmax
	}
	if n.right != nil && rmax > maxEnd {
		maxEnd = rmax
	}
	if n.height != height || n.maxEnd != maxEnd {
		return 0, 0, false
	}
	return height, maxEnd, true
}

func (n *intervalNode[T]) minStart() float64 {
	for n.left != nil {
		n = n.left
	}
	return n.iv.Start
}

func (n *intervalNode[T]) maxStart() float64 {
	for n.right != nil {
		n = n.right
	}
	return n.iv.Start
}
