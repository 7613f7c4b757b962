// Package canopy is a hit-testing layer for 2D scenes built on [Ebitengine].
//
// At its core is [IntervalTree], a self-balancing (AVL) tree of closed
// intervals that answers stabbing and overlap queries in O(log n + k). Two
// of them, one per axis, make up a [HitTestIndex]: each widget is stored as
// its X extent in one tree and its Y extent in the other, and a point hit is
// any widget found on both axes. Results come back front to back by
// [Widget.HitZ], ties in insertion order.
//
//	idx := canopy.NewHitTestIndex[*Button]()
//	for _, b := range buttons {
//		if err := idx.InsertWidget(b); err != nil {
//			return err
//		}
//	}
//	if top, ok := idx.FindTopWidgetAt(mx, my); ok {
//		top.Press()
//	}
//
// After widgets move, either update them one by one with
// [HitTestIndex.UpdateWidget] or let an [UpdatePolicy] choose between
// incremental updates and a full rebuild through [HitTestIndex.ApplyUpdates].
//
// # Scene
//
// [Scene] wraps the index around a node tree with transforms, cameras, and
// pointer routing. Nodes with a size or a [HitShape] are indexed by their
// world-space bounding box; the shape refines the candidates the index
// returns. Each [Scene.Update] re-syncs only the nodes whose bounds changed:
//
//	scene := canopy.NewScene()
//	btn := canopy.NewNode("ok", 120, 40)
//	btn.SetPosition(100, 80)
//	btn.OnClick = func(ctx canopy.ClickContext) { fmt.Println("ok") }
//	scene.Root().AddChild(btn)
//
//	type Game struct{ scene *canopy.Scene }
//
//	func (g *Game) Update() error { g.scene.Update(); return nil }
//
// Siblings are ordered by [Node.ZIndex], then child order; nodes painted later
// win hit tests. Pointer input is mapped through the scene's first camera.
//
// Tweens (via [gween]) move nodes through the index like any other change.
//
// Nodes with a non-zero [Node.EntityID] also report their input events to
// the [EntityStore] set with [Scene.SetEntityStore]; the
// ecs sub-package provides one backed by a Donburi world.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
package canopy
