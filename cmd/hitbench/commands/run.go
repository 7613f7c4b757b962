package commands

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/phanxgames/canopy"
)

// ErrMismatch is returned when the index disagrees with the linear scan.
var ErrMismatch = errors.New("index disagrees with linear scan")

// RunCommand holds the flags of the run subcommand.
type RunCommand struct {
	configPath  string
	fixturePath string
	points      int
	rects       int
	seed        uint64
	noColor     bool
}

// NewRunCommand creates the run subcommand.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Time index queries against a linear scan",
		Long: `Build a hit index from a YAML fixture (or a generated one), run random
point and rect queries through the index and a linear reference scan, and
report timings and mismatches.`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	addCommonFlags(cmd, &rc.configPath, &rc.noColor)
	cmd.Flags().StringVarP(&rc.fixturePath, "fixture", "f", "", "YAML fixture to load instead of generating one")
	cmd.Flags().IntVar(&rc.points, "points", 0, "number of point queries (overrides config)")
	cmd.Flags().IntVar(&rc.rects, "rects", 0, "number of rect queries (overrides config)")
	cmd.Flags().Uint64Var(&rc.seed, "seed", 0, "random seed (overrides config)")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	applyColor(rc.noColor)

	cfg, err := LoadConfig(rc.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("points") {
		cfg.Queries.Points = rc.points
	}

	if cmd.Flags().Changed("rects") {
		cfg.Queries.Rects = rc.rects
	}

	if cmd.Flags().Changed("seed") {
		cfg.Seed = rc.seed
	}

	fx, err := loadOrGenerate(rc.fixturePath, cfg)
	if err != nil {
		return err
	}

	return runBench(cmd.OutOrStdout(), cfg, fx)
}

func loadOrGenerate(path string, cfg *Config) (*Fixture, error) {
	if path != "" {
		return LoadFixture(path)
	}

	return GenerateFixture(cfg.Fixture, newRand(cfg.Seed)), nil
}

// runBench times the index against the linear scan and prints the report.
// Returns ErrMismatch if any query disagreed.
func runBench(out io.Writer, cfg *Config, fx *Fixture) error {
	widgets := fx.benchWidgets()
	idx := canopy.NewHitTestIndex[*benchWidget]()

	start := time.Now()

	err := idx.RebuildFromWidgets(widgets)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	rows := []reportRow{{Operation: "rebuild", Count: len(widgets), Elapsed: time.Since(start)}}

	r := newRand(cfg.Seed + 1)
	points := randomPoints(r, fx.World, cfg.Queries.Points)
	rects := randomRects(r, fx.World, cfg.Queries.RectSize, cfg.Queries.Rects)

	pointIdx, pointIdxRow := timeQueries("point (index)", points, func(p canopy.Vec2) []*benchWidget {
		return idx.FindWidgetsAt(p.X, p.Y)
	})
	pointLin, pointLinRow := timeQueries("point (linear)", points, func(p canopy.Vec2) []*benchWidget {
		return linearAt(widgets, p.X, p.Y)
	})
	pointIdxRow.Mismatches = countMismatches(pointIdx, pointLin)

	rectIdx, rectIdxRow := timeQueries("rect (index)", rects, func(q canopy.Rect) []*benchWidget {
		return idx.FindWidgetsInRect(q)
	})
	rectLin, rectLinRow := timeQueries("rect (linear)", rects, func(q canopy.Rect) []*benchWidget {
		return linearIn(widgets, q)
	})
	rectIdxRow.Mismatches = countMismatches(rectIdx, rectLin)

	rows = append(rows, pointIdxRow, pointLinRow, rectIdxRow, rectLinRow)

	fmt.Fprintln(out, renderTable("hitbench run", rows))
	fmt.Fprintln(out, idx.Stats())

	mismatches := pointIdxRow.Mismatches + rectIdxRow.Mismatches
	queries := len(points) + len(rects)

	if mismatches > 0 {
		printStatus(out, false, "%d of %d queries disagree with the linear scan", mismatches, queries)

		return fmt.Errorf("%w: %d of %d queries", ErrMismatch, mismatches, queries)
	}

	printStatus(out, true, "%d queries match the linear scan", queries)

	return nil
}

func timeQueries[Q any](name string, qs []Q, fn func(Q) []*benchWidget) ([][]*benchWidget, reportRow) {
	results := make([][]*benchWidget, len(qs))
	start := time.Now()

	for i, q := range qs {
		results[i] = fn(q)
	}

	return results, reportRow{Operation: name, Count: len(qs), Elapsed: time.Since(start)}
}

func countMismatches(got, want [][]*benchWidget) int {
	n := 0

	for i := range got {
		if !slices.Equal(got[i], want[i]) {
			n++
		}
	}

	return n
}

// linearAt is the reference point query: every widget whose bounds contain
// the point, by descending z, ties in slice order.
func linearAt(ws []*benchWidget, x, y float64) []*benchWidget {
	var out []*benchWidget

	for _, w := range ws {
		if w.bounds.Contains(x, y) {
			out = append(out, w)
		}
	}

	return sortFrontToBack(out)
}

// linearIn is the reference rect query.
func linearIn(ws []*benchWidget, r canopy.Rect) []*benchWidget {
	if r.Width < 0 || r.Height < 0 {
		return nil
	}

	var out []*benchWidget

	for _, w := range ws {
		if w.bounds.Intersects(r) {
			out = append(out, w)
		}
	}

	return sortFrontToBack(out)
}

func sortFrontToBack(ws []*benchWidget) []*benchWidget {
	slices.SortStableFunc(ws, func(a, b *benchWidget) int {
		return cmp.Compare(b.z, a.z)
	})

	return ws
}

func randomPoints(r *rand.Rand, world float64, n int) []canopy.Vec2 {
	ps := make([]canopy.Vec2, n)
	for i := range ps {
		ps[i] = canopy.Vec2{X: r.Float64() * world, Y: r.Float64() * world}
	}

	return ps
}

func randomRects(r *rand.Rand, world, size float64, n int) []canopy.Rect {
	rs := make([]canopy.Rect, n)
	for i := range rs {
		rs[i] = canopy.Rect{
			X:      r.Float64() * world,
			Y:      r.Float64() * world,
			Width:  r.Float64() * size,
			Height: r.Float64() * size,
		}
	}

	return rs
}
