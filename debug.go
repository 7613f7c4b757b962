package canopy

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// indexSyncStats describes one frame of hit index maintenance. Only
// populated when Scene.debug is true.
type indexSyncStats struct {
	added   int
	removed int
	dirty   int
	total   int
	action  UpdateAction
	elapsed time.Duration
	err     error
}

// debugLogSync prints the frame's index maintenance to the debug output.
// Frames where nothing changed are skipped.
func (s *Scene) debugLogSync(stats indexSyncStats) {
	if !s.debug || s.debugOut == nil {
		return
	}
	if stats.dirty == 0 && stats.removed == 0 && stats.err == nil {
		return
	}
	_, _ = fmt.Fprintf(s.debugOut,
		"[canopy] sync: action=%s | dirty: %s/%s | added: %d | removed: %d | %v\n",
		stats.action, humanize.Comma(int64(stats.dirty)), humanize.Comma(int64(stats.total)),
		stats.added, stats.removed, stats.elapsed)
	if stats.err != nil {
		_, _ = fmt.Fprintf(s.debugOut, "[canopy] sync error: %v\n", stats.err)
	}
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. Callers skip it outside debug mode.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("canopy debug: %s on disposed node %q (ID was %d)", op, n.Name, n.ID))
	}
}

// debugWarnOut receives node-level warnings, which have no Scene to ask.
var debugWarnOut io.Writer = os.Stderr

// debugCheckTreeDepth warns if tree depth exceeds the threshold.
const debugMaxTreeDepth = 32

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		_, _ = fmt.Fprintf(debugWarnOut, "[canopy] warning: tree depth %d exceeds %d (node %q)\n",
			depth, debugMaxTreeDepth, n.Name)
	}
}

// debugCheckChildCount warns if a node has more than 1000 children.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		_, _ = fmt.Fprintf(debugWarnOut, "[canopy] warning: node %q has %d children (threshold %d)\n",
			n.Name, len(n.children), debugMaxChildCount)
	}
}
