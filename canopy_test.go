package canopy

import (
	"image/color"
	"testing"
)

func TestRectContains(t *testing.T) {
	r := Rect{10, 20, 100, 50}
	tests := []struct {
		name   string
		x, y   float64
		expect bool
	}{
		{"inside", 50, 40, true},
		{"top-left corner", 10, 20, true},
		{"bottom-right corner", 110, 70, true},
		{"left edge", 10, 40, true},
		{"right edge", 110, 40, true},
		{"outside left", 9, 40, false},
		{"outside right", 111, 40, false},
		{"outside above", 50, 19, false},
		{"outside below", 50, 71, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.x, tt.y); got != tt.expect {
				t.Errorf("Rect%v.Contains(%v, %v) = %v, want %v", r, tt.x, tt.y, got, tt.expect)
			}
		})
	}
}

func TestRectIntersects(t *testing.T) {
	base := Rect{10, 10, 100, 100}
	tests := []struct {
		name   string
		other  Rect
		expect bool
	}{
		{"overlapping", Rect{50, 50, 100, 100}, true},
		{"fully contained", Rect{20, 20, 10, 10}, true},
		{"containing", Rect{0, 0, 200, 200}, true},
		{"adjacent right", Rect{110, 10, 50, 50}, true},
		{"adjacent top", Rect{10, -50, 50, 60}, true},
		{"disjoint right", Rect{111, 10, 50, 50}, false},
		{"disjoint below", Rect{10, 111, 50, 50}, false},
		{"zero-size at corner", Rect{110, 110, 0, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Intersects(tt.other); got != tt.expect {
				t.Errorf("Rect%v.Intersects(Rect%v) = %v, want %v", base, tt.other, got, tt.expect)
			}
		})
	}
}

func TestRectCenterAndUnion(t *testing.T) {
	cx, cy := Rect{10, 20, 100, 50}.Center()
	if cx != 60 || cy != 45 {
		t.Errorf("Center = (%v, %v), want (60, 45)", cx, cy)
	}
	got := Rect{0, 0, 10, 10}.Union(Rect{-5, 20, 10, 5})
	if want := (Rect{-5, 0, 15, 25}); got != want {
		t.Errorf("Union = %v, want %v", got, want)
	}
}

func TestColorRGBA(t *testing.T) {
	got := Color{R: 1, G: 0.5, B: 2, A: 1}.RGBA()
	if want := (color.RGBA{R: 255, G: 128, B: 255, A: 255}); got != want {
		t.Errorf("RGBA() = %v, want %v", got, want)
	}
}

func TestEnumValues(t *testing.T) {
	if EventPointerDown != 0 || EventPointerLeave <= EventClick {
		t.Error("EventType iota drifted")
	}
	if MouseButtonLeft != 0 {
		t.Errorf("MouseButtonLeft = %d, want 0", MouseButtonLeft)
	}
	if ModShift|ModCtrl|ModAlt|ModMeta != 0xF {
		t.Error("KeyModifiers should be distinct bits")
	}
}

func BenchmarkRectContains(b *testing.B) {
	r := Rect{10, 20, 100, 50}
	for b.Loop() {
		r.Contains(50, 40)
	}
}
