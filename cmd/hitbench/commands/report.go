package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// reportRow is one timed operation in a report table.
type reportRow struct {
	Operation  string
	Count      int
	Elapsed    time.Duration
	Mismatches int
}

func (r reportRow) perOp() time.Duration {
	if r.Count == 0 {
		return 0
	}

	return r.Elapsed / time.Duration(r.Count)
}

func (r reportRow) opsPerSecond() int64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return int64(float64(r.Count) / r.Elapsed.Seconds())
}

// renderTable formats rows with go-pretty.
func renderTable(title string, rows []reportRow) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"Operation", "Count", "Total", "Per op", "Ops/s", "Mismatches"})

	var mismatches int

	for _, r := range rows {
		tbl.AppendRow(table.Row{
			r.Operation,
			humanize.Comma(int64(r.Count)),
			r.Elapsed.Round(time.Microsecond),
			r.perOp(),
			humanize.Comma(r.opsPerSecond()),
			r.Mismatches,
		})
		mismatches += r.Mismatches
	}

	tbl.AppendFooter(table.Row{"", "", "", "", "Total", mismatches})

	return tbl.Render()
}

// printStatus writes a colored PASS or FAIL line.
func printStatus(out io.Writer, ok bool, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if ok {
		color.New(color.FgGreen).Fprintf(out, "PASS: %s\n", msg)

		return
	}

	color.New(color.FgRed).Fprintf(out, "FAIL: %s\n", msg)
}
