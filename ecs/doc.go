// Package ecs bridges canopy interaction events into an entity component
// system.
//
// [NewDonburiStore] publishes every event for a node with a non-zero
// EntityID to [InteractionEventType] in a [Donburi] world:
//
//	store := ecs.NewDonburiStore(world)
//	scene.SetEntityStore(store)
//
// Systems subscribe to [InteractionEventType] and drain the queue with
// ProcessEvents once per tick.
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
