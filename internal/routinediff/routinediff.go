// Package routinediff shows how a newly generated routine differs from the
// one the user saved before.
package routinediff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/skinroutine/internal/routine"
)

// Lines renders r as one "Period: step" line per step, morning first.
// Product names are compared; ids and descriptions are not.
func Lines(r routine.Routine) string {
	var b strings.Builder
	for _, period := range []routine.Period{routine.Morning, routine.Evening} {
		for _, s := range r.Steps(period) {
			fmt.Fprintf(&b, "%s: %s\n", period, normalize(s.String()))
		}
	}
	return b.String()
}

// Diff returns a line diff from before to after. Each line is prefixed with
// "+ ", "- " or "  ". The result is empty when the routines match.
func Diff(before, after routine.Routine) string {
	a, b := Lines(before), Lines(after)
	if a == b {
		return ""
	}

	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
		}
	}
	return out.String()
}

// Stats counts added and removed step lines in a Diff result.
func Stats(diff string) (added, removed int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+ "):
			added++
		case strings.HasPrefix(line, "- "):
			removed++
		}
	}
	return added, removed
}

// normalize collapses internal whitespace so cosmetic spacing in model
// output does not show up as a change.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
