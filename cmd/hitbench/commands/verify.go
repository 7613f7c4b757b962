package commands

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/phanxgames/canopy"
)

// ErrIntegrity is returned when verify finds a broken index.
var ErrIntegrity = errors.New("index integrity check failed")

// VerifyCommand holds the flags of the verify subcommand.
type VerifyCommand struct {
	configPath  string
	fixturePath string
	rounds      int
	seed        uint64
	noColor     bool
}

// NewVerifyCommand creates the verify subcommand.
func NewVerifyCommand() *cobra.Command {
	vc := &VerifyCommand{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Mutate the index randomly and check it after every round",
		Long: `Apply rounds of random moves, resizes, inserts, and removals through the
update policy, then check tree balance, bounds bookkeeping, and query
results against a linear scan. Exits non-zero on the first failure.`,
		Args: cobra.NoArgs,
		RunE: vc.run,
	}

	addCommonFlags(cmd, &vc.configPath, &vc.noColor)
	cmd.Flags().StringVarP(&vc.fixturePath, "fixture", "f", "", "YAML fixture to start from instead of generating one")
	cmd.Flags().IntVar(&vc.rounds, "rounds", 0, "number of mutation rounds (overrides config)")
	cmd.Flags().Uint64Var(&vc.seed, "seed", 0, "random seed (overrides config)")

	return cmd
}

func (vc *VerifyCommand) run(cmd *cobra.Command, _ []string) error {
	applyColor(vc.noColor)

	cfg, err := LoadConfig(vc.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("rounds") {
		cfg.Verify.Rounds = vc.rounds
	}

	if cmd.Flags().Changed("seed") {
		cfg.Seed = vc.seed
	}

	fx, err := loadOrGenerate(vc.fixturePath, cfg)
	if err != nil {
		return err
	}

	return runVerify(cmd.OutOrStdout(), cfg, fx)
}

// mutationState tracks the live widget set and the dirty list for a round.
type mutationState struct {
	cfg  FixtureConfig
	r    *rand.Rand
	idx  *canopy.HitTestIndex[*benchWidget]
	live []*benchWidget

	dirty    []canopy.DirtyWidget[*benchWidget]
	dirtyPos map[*benchWidget]int
	created  int
}

func (m *mutationState) markDirty(w *benchWidget, old canopy.Rect) {
	if _, ok := m.dirtyPos[w]; ok {
		return
	}

	m.dirtyPos[w] = len(m.dirty)
	m.dirty = append(m.dirty, canopy.DirtyWidget[*benchWidget]{Widget: w, OldBounds: old})
}

func (m *mutationState) mutate() {
	if len(m.live) == 0 {
		m.insert()

		return
	}

	w := m.live[m.r.IntN(len(m.live))]

	switch m.r.IntN(5) {
	case 0, 1:
		old := w.bounds
		w.bounds.X = m.r.Float64() * m.cfg.WorldSize
		w.bounds.Y = m.r.Float64() * m.cfg.WorldSize
		m.markDirty(w, old)
	case 2:
		old := w.bounds
		w.bounds.Width = m.r.Float64() * m.cfg.MaxWidgetSize
		w.bounds.Height = m.r.Float64() * m.cfg.MaxWidgetSize
		m.markDirty(w, old)
	case 3:
		m.remove(w)
	default:
		m.insert()
	}
}

func (m *mutationState) insert() {
	m.created++
	fw := randomFixtureWidget(m.cfg, m.r, fmt.Sprintf("new%d", m.created))
	w := &benchWidget{
		name:   fw.Name,
		bounds: canopy.Rect{X: fw.X, Y: fw.Y, Width: fw.Width, Height: fw.Height},
		z:      fw.Z,
	}
	m.live = append(m.live, w)
	m.markDirty(w, canopy.Rect{})
}

func (m *mutationState) remove(w *benchWidget) {
	known := w.bounds
	if pos, ok := m.dirtyPos[w]; ok {
		known = m.dirty[pos].OldBounds
		m.dirty = slices.Delete(m.dirty, pos, pos+1)
		delete(m.dirtyPos, w)

		for i := pos; i < len(m.dirty); i++ {
			m.dirtyPos[m.dirty[i].Widget] = i
		}
	}

	m.idx.RemoveWidget(w, known)
	m.live = slices.DeleteFunc(m.live, func(x *benchWidget) bool { return x == w })
}

// check compares the index with the live set. The live slice is kept in
// insertion order, so the linear scan ties break the same way.
func (m *mutationState) check(probes int) error {
	if !m.idx.VerifyIntegrity() {
		return fmt.Errorf("%w: trees unbalanced or interval count off (%s)", ErrIntegrity, m.idx.Stats())
	}

	if m.idx.Len() != len(m.live) {
		return fmt.Errorf("%w: index holds %d widgets, want %d", ErrIntegrity, m.idx.Len(), len(m.live))
	}

	for _, w := range m.live {
		b, ok := m.idx.Bounds(w)
		if !ok || b != w.bounds {
			return fmt.Errorf("%w: widget %s indexed as %v, want %v", ErrIntegrity, w.name, b, w.bounds)
		}
	}

	for range probes {
		x, y := m.r.Float64()*m.cfg.WorldSize, m.r.Float64()*m.cfg.WorldSize
		if !slices.Equal(m.idx.FindWidgetsAt(x, y), linearAt(m.live, x, y)) {
			return fmt.Errorf("%w: point (%.1f, %.1f)", ErrMismatch, x, y)
		}
	}

	return nil
}

// runVerify applies cfg.Verify.Rounds rounds of mutations through
// ApplyUpdates and checks the index after each.
func runVerify(out io.Writer, cfg *Config, fx *Fixture) error {
	fixtureCfg := cfg.Fixture
	fixtureCfg.WorldSize = fx.World

	m := &mutationState{
		cfg:      fixtureCfg,
		r:        newRand(cfg.Seed + 2),
		idx:      canopy.NewHitTestIndex[*benchWidget](),
		live:     fx.benchWidgets(),
		dirtyPos: make(map[*benchWidget]int),
	}

	err := m.idx.RebuildFromWidgets(m.live)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	policy := canopy.UpdatePolicy{RebuildFraction: cfg.Policy.RebuildFraction}
	actions := map[canopy.UpdateAction]*reportRow{
		canopy.UpdateIncremental: {Operation: "incremental"},
		canopy.UpdateRebuild:     {Operation: "rebuild"},
	}
	check := reportRow{Operation: "check"}

	var failure error

	for round := range cfg.Verify.Rounds {
		for range cfg.Verify.Mutations {
			m.mutate()
		}

		start := time.Now()

		action, applyErr := m.idx.ApplyUpdates(policy, m.live, m.dirty)
		row := actions[action]
		row.Count++
		row.Elapsed += time.Since(start)

		clear(m.dirtyPos)
		m.dirty = m.dirty[:0]

		if applyErr != nil {
			failure = fmt.Errorf("round %d: apply updates: %w", round, applyErr)

			break
		}

		start = time.Now()
		checkErr := m.check(cfg.Verify.Probes)
		check.Count++
		check.Elapsed += time.Since(start)

		if checkErr != nil {
			check.Mismatches++
			failure = fmt.Errorf("round %d: %w", round, checkErr)

			break
		}
	}

	rows := []reportRow{*actions[canopy.UpdateIncremental], *actions[canopy.UpdateRebuild], check}
	fmt.Fprintln(out, renderTable("hitbench verify", rows))
	fmt.Fprintln(out, m.idx.Stats())

	if failure != nil {
		printStatus(out, false, "%v", failure)

		return failure
	}

	printStatus(out, true, "%d rounds, %d widgets live", cfg.Verify.Rounds, len(m.live))

	return nil
}
