package canopy

// EntityStore receives interaction events for nodes bound to an external
// entity system. Set one with Scene.SetEntityStore.
type EntityStore interface {
	EmitEvent(event InteractionEvent)
}

// InteractionEvent is the flattened form of a pointer, click, or drag event
// for nodes that carry a non-zero EntityID.
type InteractionEvent struct {
	Type      EventType
	EntityID  uint32
	PointerID int
	GlobalX   float64
	GlobalY   float64
	LocalX    float64
	LocalY    float64
	Button    MouseButton
	Modifiers KeyModifiers
	// Drag fields (valid for EventDragStart, EventDrag, EventDragEnd)
	StartX float64
	StartY float64
	DeltaX float64
	DeltaY float64
}

// SetEntityStore sets the bridge that receives events for entity-bound nodes.
// Pass nil to detach it.
func (s *Scene) SetEntityStore(store EntityStore) {
	s.store = store
}

func (s *Scene) emitInteractionEvent(ev InteractionEvent, node *Node) {
	if s.store == nil || node == nil || node.EntityID == 0 {
		return
	}
	ev.EntityID = node.EntityID
	s.store.EmitEvent(ev)
}
