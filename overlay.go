package canopy

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

var whitePixelImage *ebiten.Image

// ensureWhitePixel returns a lazily-initialized 1x1 white pixel image.
func ensureWhitePixel() *ebiten.Image {
	if whitePixelImage == nil {
		whitePixelImage = ebiten.NewImage(1, 1)
		whitePixelImage.Fill(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return whitePixelImage
}

// overlayMaxVerts keeps index values inside uint16.
const overlayMaxVerts = 65532

// overlayBatch accumulates outline quads for a single DrawTriangles call.
type overlayBatch struct {
	dst   *ebiten.Image
	verts []ebiten.Vertex
	inds  []uint16
	r, g  float32
	b, a  float32
	width float64
}

func (o *overlayBatch) line(x0, y0, x1, y1 float64) {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	if len(o.verts)+4 > overlayMaxVerts {
		o.flush()
	}
	nx, ny := -dy/l*o.width/2, dx/l*o.width/2
	base := uint16(len(o.verts))
	for _, p := range [4][2]float64{
		{x0 + nx, y0 + ny}, {x1 + nx, y1 + ny},
		{x1 - nx, y1 - ny}, {x0 - nx, y0 - ny},
	} {
		o.verts = append(o.verts, ebiten.Vertex{
			DstX: float32(p[0]), DstY: float32(p[1]),
			SrcX: 0.5, SrcY: 0.5,
			ColorR: o.r, ColorG: o.g, ColorB: o.b, ColorA: o.a,
		})
	}
	o.inds = append(o.inds, base, base+1, base+2, base, base+2, base+3)
}

func (o *overlayBatch) flush() {
	if len(o.verts) == 0 {
		return
	}
	o.dst.DrawTriangles(o.verts, o.inds, ensureWhitePixel(), &ebiten.DrawTrianglesOptions{})
	o.verts = o.verts[:0]
	o.inds = o.inds[:0]
}

// DrawHitBounds outlines the indexed bounds of every interactable node on
// dst, as seen through cam (nil draws in world coordinates). It shows what
// the hit index holds, so nodes moved since the last Update appear at their
// old position.
func (s *Scene) DrawHitBounds(dst *ebiten.Image, cam *Camera, clr Color) {
	a := clamp01(clr.A)
	o := overlayBatch{
		dst:   dst,
		r:     float32(clamp01(clr.R) * a),
		g:     float32(clamp01(clr.G) * a),
		b:     float32(clamp01(clr.B) * a),
		a:     float32(a),
		width: 1,
	}
	view := identityTransform
	if cam != nil {
		view = cam.computeViewMatrix()
	}
	for _, n := range s.hitBuf {
		b, ok := s.index.Bounds(n)
		if !ok {
			continue
		}
		x0, y0 := transformPoint(view, b.X, b.Y)
		x1, y1 := transformPoint(view, b.X+b.Width, b.Y)
		x2, y2 := transformPoint(view, b.X+b.Width, b.Y+b.Height)
		x3, y3 := transformPoint(view, b.X, b.Y+b.Height)
		o.line(x0, y0, x1, y1)
		o.line(x1, y1, x2, y2)
		o.line(x2, y2, x3, y3)
		o.line(x3, y3, x0, y0)
	}
	o.flush()
}

// DrawHitStats prints the index size, tree heights, and frame rate in the
// top-left corner of dst.
func (s *Scene) DrawHitStats(dst *ebiten.Image) {
	st := s.index.Stats()
	ebitenutil.DebugPrint(dst, fmt.Sprintf("%s\nFPS: %.1f TPS: %.1f", st, ebiten.ActualFPS(), ebiten.ActualTPS()))
}
