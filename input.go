package canopy

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

const (
	maxPointers         = 10  // pointer 0 = mouse, 1-9 = touch
	defaultDragDeadZone = 4.0 // pixels
)

// PointerContext carries pointer event data.
type PointerContext struct {
	Node      *Node
	UserData  any
	GlobalX   float64
	GlobalY   float64
	LocalX    float64
	LocalY    float64
	Button    MouseButton
	PointerID int
	Modifiers KeyModifiers
}

// ClickContext carries click event data.
type ClickContext struct {
	Node      *Node
	UserData  any
	GlobalX   float64
	GlobalY   float64
	LocalX    float64
	LocalY    float64
	Button    MouseButton
	PointerID int
	Modifiers KeyModifiers
}

// DragContext carries drag event data. DeltaX/DeltaY are relative to the
// previous drag event (to the press point for EventDragStart).
type DragContext struct {
	Node      *Node
	UserData  any
	GlobalX   float64
	GlobalY   float64
	LocalX    float64
	LocalY    float64
	StartX    float64
	StartY    float64
	DeltaX    float64
	DeltaY    float64
	Button    MouseButton
	PointerID int
	Modifiers KeyModifiers
}

// --- Per-pointer state ---

type pointerState struct {
	down      bool
	startX    float64
	startY    float64
	lastX     float64
	lastY     float64
	hitNode   *Node
	hoverNode *Node // last node under the pointer (for enter/leave)
	dragging  bool
	button    MouseButton // button captured at press time
}

// --- Handler registry ---

type handler[C any] struct {
	id uint32
	fn func(C)
}

type handlerList[C any] []handler[C]

func (l handlerList[C]) fire(ctx C) {
	for _, h := range l {
		h.fn(ctx)
	}
}

// without returns the list minus the handler with the given id. The vacated
// tail slot is zeroed so the closure can be collected.
func (l handlerList[C]) without(id uint32) handlerList[C] {
	for i := range l {
		if l[i].id == id {
			copy(l[i:], l[i+1:])
			l[len(l)-1] = handler[C]{}
			return l[:len(l)-1]
		}
	}
	return l
}

type handlerRegistry struct {
	pointerDown  handlerList[PointerContext]
	pointerUp    handlerList[PointerContext]
	pointerMove  handlerList[PointerContext]
	pointerEnter handlerList[PointerContext]
	pointerLeave handlerList[PointerContext]
	click        handlerList[ClickContext]
	dragStart    handlerList[DragContext]
	drag         handlerList[DragContext]
	dragEnd      handlerList[DragContext]
	nextID       uint32
}

// pointerList returns the registry slot for a pointer-style event.
func (r *handlerRegistry) pointerList(ev EventType) *handlerList[PointerContext] {
	switch ev {
	case EventPointerDown:
		return &r.pointerDown
	case EventPointerUp:
		return &r.pointerUp
	case EventPointerMove:
		return &r.pointerMove
	case EventPointerEnter:
		return &r.pointerEnter
	case EventPointerLeave:
		return &r.pointerLeave
	}
	return nil
}

// dragList returns the registry slot for a drag event.
func (r *handlerRegistry) dragList(ev EventType) *handlerList[DragContext] {
	switch ev {
	case EventDragStart:
		return &r.dragStart
	case EventDrag:
		return &r.drag
	case EventDragEnd:
		return &r.dragEnd
	}
	return nil
}

// CallbackHandle allows removing a registered scene-level callback.
type CallbackHandle struct {
	id    uint32
	reg   *handlerRegistry
	event EventType
}

// Remove unregisters this callback so it no longer fires.
func (h CallbackHandle) Remove() {
	if h.reg == nil {
		return
	}
	if l := h.reg.pointerList(h.event); l != nil {
		*l = l.without(h.id)
		return
	}
	if l := h.reg.dragList(h.event); l != nil {
		*l = l.without(h.id)
		return
	}
	if h.event == EventClick {
		h.reg.click = h.reg.click.without(h.id)
	}
}

func (s *Scene) onPointer(ev EventType, fn func(PointerContext)) CallbackHandle {
	s.handlers.nextID++
	l := s.handlers.pointerList(ev)
	*l = append(*l, handler[PointerContext]{id: s.handlers.nextID, fn: fn})
	return CallbackHandle{id: s.handlers.nextID, reg: &s.handlers, event: ev}
}

func (s *Scene) onDrag(ev EventType, fn func(DragContext)) CallbackHandle {
	s.handlers.nextID++
	l := s.handlers.dragList(ev)
	*l = append(*l, handler[DragContext]{id: s.handlers.nextID, fn: fn})
	return CallbackHandle{id: s.handlers.nextID, reg: &s.handlers, event: ev}
}

// OnPointerDown registers a scene-level callback for pointer down events.
func (s *Scene) OnPointerDown(fn func(PointerContext)) CallbackHandle {
	return s.onPointer(EventPointerDown, fn)
}

// OnPointerUp registers a scene-level callback for pointer up events.
func (s *Scene) OnPointerUp(fn func(PointerContext)) CallbackHandle {
	return s.onPointer(EventPointerUp, fn)
}

// OnPointerMove registers a scene-level callback for pointer move events.
func (s *Scene) OnPointerMove(fn func(PointerContext)) CallbackHandle {
	return s.onPointer(EventPointerMove, fn)
}

// OnPointerEnter registers a scene-level callback fired when the pointer
// moves over a new node.
func (s *Scene) OnPointerEnter(fn func(PointerContext)) CallbackHandle {
	return s.onPointer(EventPointerEnter, fn)
}

// OnPointerLeave registers a scene-level callback fired when the pointer
// leaves a node.
func (s *Scene) OnPointerLeave(fn func(PointerContext)) CallbackHandle {
	return s.onPointer(EventPointerLeave, fn)
}

// OnClick registers a scene-level callback for click events.
func (s *Scene) OnClick(fn func(ClickContext)) CallbackHandle {
	s.handlers.nextID++
	s.handlers.click = append(s.handlers.click, handler[ClickContext]{id: s.handlers.nextID, fn: fn})
	return CallbackHandle{id: s.handlers.nextID, reg: &s.handlers, event: EventClick}
}

// OnDragStart registers a scene-level callback for drag start events.
func (s *Scene) OnDragStart(fn func(DragContext)) CallbackHandle {
	return s.onDrag(EventDragStart, fn)
}

// OnDrag registers a scene-level callback for drag events.
func (s *Scene) OnDrag(fn func(DragContext)) CallbackHandle {
	return s.onDrag(EventDrag, fn)
}

// OnDragEnd registers a scene-level callback for drag end events.
func (s *Scene) OnDragEnd(fn func(DragContext)) CallbackHandle {
	return s.onDrag(EventDragEnd, fn)
}

// CapturePointer routes all events for pointerID to the given node.
func (s *Scene) CapturePointer(pointerID int, node *Node) {
	if pointerID >= 0 && pointerID < maxPointers {
		s.captured[pointerID] = node
	}
}

// ReleasePointer stops routing events for pointerID to a captured node.
func (s *Scene) ReleasePointer(pointerID int) {
	if pointerID >= 0 && pointerID < maxPointers {
		s.captured[pointerID] = nil
	}
}

// SetDragDeadZone sets the minimum movement in pixels before a drag starts.
func (s *Scene) SetDragDeadZone(pixels float64) {
	s.dragDeadZone = pixels
}

// --- Input processing ---

// readModifiers reads the current keyboard modifier state.
func readModifiers() KeyModifiers {
	var mods KeyModifiers
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		mods |= ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		mods |= ModCtrl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		mods |= ModAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMeta) {
		mods |= ModMeta
	}
	return mods
}

// processInput is called from Scene.Update after the hit index is synced.
func (s *Scene) processInput() {
	mods := readModifiers()

	// Primary camera for screen-to-world conversion.
	var cam *Camera
	if len(s.cameras) > 0 {
		cam = s.cameras[0]
	}

	if s.processInjectedInput(cam, mods) {
		return
	}
	s.processMousePointer(cam, mods)
	s.processTouchPointers(cam, mods)
}

// screenToWorld converts screen coordinates to world coordinates using the primary camera.
func screenToWorld(cam *Camera, sx, sy float64) (float64, float64) {
	if cam != nil {
		return cam.ScreenToWorld(sx, sy)
	}
	return sx, sy
}

// processMousePointer handles mouse input (pointer 0).
func (s *Scene) processMousePointer(cam *Camera, mods KeyModifiers) {
	mx, my := ebiten.CursorPosition()
	wx, wy := screenToWorld(cam, float64(mx), float64(my))

	var pressed bool
	var button MouseButton
	switch {
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		pressed, button = true, MouseButtonLeft
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight):
		pressed, button = true, MouseButtonRight
	case ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle):
		pressed, button = true, MouseButtonMiddle
	}

	s.processPointer(0, wx, wy, pressed, button, mods)
}

// processTouchPointers handles touch input (pointers 1-9).
func (s *Scene) processTouchPointers(cam *Camera, mods KeyModifiers) {
	touchIDs := ebiten.AppendTouchIDs(s.prevTouchIDs[:0])
	s.prevTouchIDs = touchIDs

	var activeSlots [maxPointers]bool
	for _, tid := range touchIDs {
		slot := s.touchSlot(tid)
		if slot < 0 {
			continue
		}
		activeSlots[slot] = true

		tx, ty := ebiten.TouchPosition(tid)
		wx, wy := screenToWorld(cam, float64(tx), float64(ty))
		s.processPointer(slot, wx, wy, true, MouseButtonLeft, mods)
	}

	// Release any touch slots that are no longer active.
	for i := 1; i < maxPointers; i++ {
		if s.touchUsed[i] && !activeSlots[i] {
			ps := &s.pointers[i]
			if ps.down {
				s.processPointer(i, ps.lastX, ps.lastY, false, MouseButtonLeft, mods)
			}
			s.touchUsed[i] = false
			s.touchMap[i] = 0
		}
	}
}

// touchSlot maps an ebiten.TouchID to a pointer slot (1-9).
// Returns the existing slot or allocates a new one. Returns -1 if full.
func (s *Scene) touchSlot(tid ebiten.TouchID) int {
	for i := 1; i < maxPointers; i++ {
		if s.touchUsed[i] && s.touchMap[i] == tid {
			return i
		}
	}
	for i := 1; i < maxPointers; i++ {
		if !s.touchUsed[i] {
			s.touchUsed[i] = true
			s.touchMap[i] = tid
			return i
		}
	}
	return -1
}

// processPointer runs the pointer state machine for a single pointer. The
// target is the captured node, or the front-most node the hit index finds
// under the pointer.
func (s *Scene) processPointer(pointerID int, wx, wy float64, pressed bool, button MouseButton, mods KeyModifiers) {
	ps := &s.pointers[pointerID]

	target := s.captured[pointerID]
	if target == nil {
		target = s.TopNodeAt(wx, wy)
	}

	if target != ps.hoverNode {
		if ps.hoverNode != nil {
			s.firePointer(EventPointerLeave, ps.hoverNode, pointerID, wx, wy, button, mods)
		}
		if target != nil {
			s.firePointer(EventPointerEnter, target, pointerID, wx, wy, button, mods)
		}
		ps.hoverNode = target
	}

	switch {
	case pressed && !ps.down:
		ps.down = true
		ps.button = button
		ps.startX, ps.startY = wx, wy
		ps.lastX, ps.lastY = wx, wy
		ps.hitNode = target
		ps.dragging = false
		s.firePointer(EventPointerDown, target, pointerID, wx, wy, ps.button, mods)

	case !pressed && ps.down:
		if ps.dragging {
			s.fireDrag(EventDragEnd, ps.hitNode, pointerID, wx, wy, ps, wx-ps.lastX, wy-ps.lastY, mods)
		} else if ps.hitNode != nil && ps.hitNode == target {
			s.fireClick(target, pointerID, wx, wy, ps.button, mods)
		}
		s.firePointer(EventPointerUp, target, pointerID, wx, wy, ps.button, mods)

		// Auto-release capture.
		s.captured[pointerID] = nil
		ps.down = false
		ps.hitNode = nil
		ps.dragging = false

	case pressed && ps.down:
		if wx != ps.lastX || wy != ps.lastY {
			if !ps.dragging && math.Hypot(wx-ps.startX, wy-ps.startY) > s.dragDeadZone {
				ps.dragging = true
				s.fireDrag(EventDragStart, ps.hitNode, pointerID, wx, wy, ps, wx-ps.startX, wy-ps.startY, mods)
			}
			if ps.dragging {
				s.fireDrag(EventDrag, ps.hitNode, pointerID, wx, wy, ps, wx-ps.lastX, wy-ps.lastY, mods)
			}
		}
		ps.lastX, ps.lastY = wx, wy

	default:
		// Hover move.
		if wx != ps.lastX || wy != ps.lastY {
			s.firePointer(EventPointerMove, target, pointerID, wx, wy, button, mods)
			ps.lastX, ps.lastY = wx, wy
		}
	}
}

// --- Event dispatch ---

// localPoint converts a world point into node space; zero for a nil node.
func localPoint(node *Node, wx, wy float64) (lx, ly float64, userData any) {
	if node == nil {
		return 0, 0, nil
	}
	lx, ly = node.WorldToLocal(wx, wy)
	return lx, ly, node.UserData
}

// firePointer runs scene-level handlers first, then the node's own callback.
func (s *Scene) firePointer(ev EventType, node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	lx, ly, ud := localPoint(node, wx, wy)
	ctx := PointerContext{
		Node: node, UserData: ud,
		GlobalX: wx, GlobalY: wy, LocalX: lx, LocalY: ly,
		Button: button, PointerID: pointerID, Modifiers: mods,
	}
	s.handlers.pointerList(ev).fire(ctx)
	if node == nil {
		return
	}
	s.emitInteractionEvent(InteractionEvent{
		Type: ev, PointerID: pointerID,
		GlobalX: wx, GlobalY: wy, LocalX: lx, LocalY: ly,
		Button: button, Modifiers: mods,
	}, node)
	var cb func(PointerContext)
	switch ev {
	case EventPointerDown:
		cb = node.OnPointerDown
	case EventPointerUp:
		cb = node.OnPointerUp
	case EventPointerMove:
		cb = node.OnPointerMove
	case EventPointerEnter:
		cb = node.OnPointerEnter
	case EventPointerLeave:
		cb = node.OnPointerLeave
	}
	if cb != nil {
		cb(ctx)
	}
}

func (s *Scene) fireClick(node *Node, pointerID int, wx, wy float64, button MouseButton, mods KeyModifiers) {
	lx, ly, ud := localPoint(node, wx, wy)
	ctx := ClickContext{
		Node: node, UserData: ud,
		GlobalX: wx, GlobalY: wy, LocalX: lx, LocalY: ly,
		Button: button, PointerID: pointerID, Modifiers: mods,
	}
	s.handlers.click.fire(ctx)
	if node == nil {
		return
	}
	s.emitInteractionEvent(InteractionEvent{
		Type: EventClick, PointerID: pointerID,
		GlobalX: wx, GlobalY: wy, LocalX: lx, LocalY: ly,
		Button: button, Modifiers: mods,
	}, node)
	if node.OnClick != nil {
		node.OnClick(ctx)
	}
}

func (s *Scene) fireDrag(ev EventType, node *Node, pointerID int, wx, wy float64, ps *pointerState, dx, dy float64, mods KeyModifiers) {
	lx, ly, ud := localPoint(node, wx, wy)
	ctx := DragContext{
		Node: node, UserData: ud,
		GlobalX: wx, GlobalY: wy, LocalX: lx, LocalY: ly,
		StartX: ps.startX, StartY: ps.startY, DeltaX: dx, DeltaY: dy,
		Button: ps.button, PointerID: pointerID, Modifiers: mods,
	}
	s.handlers.dragList(ev).fire(ctx)
	if node == nil {
		return
	}
	s.emitInteractionEvent(InteractionEvent{
		Type: ev, PointerID: pointerID,
		GlobalX: wx, GlobalY: wy, LocalX: lx, LocalY: ly,
		Button: ps.button, Modifiers: mods,
		StartX: ps.startX, StartY: ps.startY, DeltaX: dx, DeltaY: dy,
	}, node)
	var cb func(DragContext)
	switch ev {
	case EventDragStart:
		cb = node.OnDragStart
	case EventDrag:
		cb = node.OnDrag
	case EventDragEnd:
		cb = node.OnDragEnd
	}
	if cb != nil {
		cb(ctx)
	}
}
