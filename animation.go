package canopy

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to two float64 fields on a Node together. Create
// one with TweenPosition, TweenSize, TweenScale, or TweenRotation and call
// Update(dt) each frame. Every Update marks the node dirty, so the scene
// moves it in the hit index on the next sync. A disposed target stops the
// group immediately.
//
// There is no global animation manager; callers drive Update themselves.
type TweenGroup struct {
	tweens [2]*gween.Tween
	fields [2]*float64
	count  int
	target *Node
	Done   bool
}

func newTweenGroup(node *Node, duration float32, fn ease.TweenFunc, pairs ...tweenField) *TweenGroup {
	g := &TweenGroup{target: node, count: len(pairs)}
	for i, p := range pairs {
		g.tweens[i] = gween.New(float32(*p.field), float32(p.to), duration, fn)
		g.fields[i] = p.field
	}
	return g
}

type tweenField struct {
	field *float64
	to    float64
}

// Update advances the tweens by dt seconds and writes the values to the
// node. No writes happen once the target is disposed.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}
	if g.target.IsDisposed() {
		g.Done = true
		return
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}
	g.Done = allDone
	g.target.MarkDirty()
}

// TweenPosition animates node.X and node.Y.
func TweenPosition(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(node, duration, fn,
		tweenField{&node.X, toX}, tweenField{&node.Y, toY})
}

// TweenSize animates node.Width and node.Height, growing or shrinking the
// default hit region.
func TweenSize(node *Node, toW, toH float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(node, duration, fn,
		tweenField{&node.Width, toW}, tweenField{&node.Height, toH})
}

// TweenScale animates node.ScaleX and node.ScaleY.
func TweenScale(node *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(node, duration, fn,
		tweenField{&node.ScaleX, toSX}, tweenField{&node.ScaleY, toSY})
}

// TweenRotation animates node.Rotation (radians).
func TweenRotation(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	return newTweenGroup(node, duration, fn, tweenField{&node.Rotation, to})
}
