package commands

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/phanxgames/canopy"
)

// ErrEmptyFixture is returned for a fixture without widgets.
var ErrEmptyFixture = errors.New("fixture has no widgets")

// Fixture is a set of rectangles to index, loaded from YAML or generated.
//
//	world: 1024
//	widgets:
//	  - {name: button, x: 10, y: 10, width: 80, height: 24, z: 2}
type Fixture struct {
	World   float64         `yaml:"world"`
	Widgets []FixtureWidget `yaml:"widgets"`
}

// FixtureWidget is one rectangle in a fixture.
type FixtureWidget struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Z      int     `yaml:"z"`
}

// benchWidget is the canopy.Widget the benchmark indexes.
type benchWidget struct {
	name   string
	bounds canopy.Rect
	z      int
}

func (w *benchWidget) HitBounds() canopy.Rect { return w.bounds }
func (w *benchWidget) HitZ() int              { return w.z }

// LoadFixture reads a YAML fixture. Unknown fields are rejected. A missing
// world size is derived from the widget extents.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fx Fixture

	decodeErr := dec.Decode(&fx)
	if decodeErr != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, decodeErr)
	}

	validateErr := fx.validate()
	if validateErr != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, validateErr)
	}

	if fx.World <= 0 {
		for _, w := range fx.Widgets {
			fx.World = math.Max(fx.World, math.Max(w.X+w.Width, w.Y+w.Height))
		}
	}

	return &fx, nil
}

func (fx *Fixture) validate() error {
	if len(fx.Widgets) == 0 {
		return ErrEmptyFixture
	}

	for i, w := range fx.Widgets {
		if w.Width < 0 || w.Height < 0 {
			return fmt.Errorf("widget %d (%s): negative size %vx%v", i, w.Name, w.Width, w.Height)
		}
	}

	return nil
}

// GenerateFixture scatters cfg.Widgets random rectangles over the world.
func GenerateFixture(cfg FixtureConfig, r *rand.Rand) *Fixture {
	fx := &Fixture{World: cfg.WorldSize, Widgets: make([]FixtureWidget, cfg.Widgets)}
	for i := range fx.Widgets {
		fx.Widgets[i] = randomFixtureWidget(cfg, r, fmt.Sprintf("w%d", i))
	}

	return fx
}

func randomFixtureWidget(cfg FixtureConfig, r *rand.Rand, name string) FixtureWidget {
	return FixtureWidget{
		Name:   name,
		X:      math.Floor(r.Float64() * cfg.WorldSize),
		Y:      math.Floor(r.Float64() * cfg.WorldSize),
		Width:  math.Floor(r.Float64() * cfg.MaxWidgetSize),
		Height: math.Floor(r.Float64() * cfg.MaxWidgetSize),
		Z:      r.IntN(cfg.Layers),
	}
}

// benchWidgets converts the fixture into index widgets, in fixture order.
func (fx *Fixture) benchWidgets() []*benchWidget {
	out := make([]*benchWidget, len(fx.Widgets))
	for i, w := range fx.Widgets {
		out[i] = &benchWidget{
			name:   w.Name,
			bounds: canopy.Rect{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height},
			z:      w.Z,
		}
	}

	return out
}

// newRand returns the deterministic generator for a seed.
func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
