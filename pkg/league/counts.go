package league

import (
	"fmt"

	"github.com/royals-league/rally/pkg/optimistic"
	"github.com/royals-league/rally/pkg/pageconfig"
)

// IsMatrixRow matches the availability matrix rows, tr[data-pid].
func IsMatrixRow(n pageconfig.Node) bool {
	return n.Tag == "tr" && n.Attr("data-pid") != ""
}

// Counts returns, per timeslot, how many matrix rows are flagged available
// to sub (data-a0830="1" and so on).
func Counts(rows []pageconfig.Node) map[Timeslot]int {
	out := make(map[Timeslot]int, len(Timeslots))
	for _, t := range Timeslots {
		out[t] = 0
	}
	for _, r := range rows {
		if !IsMatrixRow(r) {
			continue
		}
		for _, t := range Timeslots {
			if r.Attr("data-a"+string(t)) == "1" {
				out[t]++
			}
		}
	}
	return out
}

// CountElements renders counts as the "(n)" labels next to each timeslot
// header.
func CountElements(counts map[Timeslot]int) []optimistic.Element {
	out := make([]optimistic.Element, 0, len(Timeslots))
	for _, t := range Timeslots {
		out = append(out, optimistic.Element{
			Target: "#cnt-" + string(t),
			Text:   fmt.Sprintf("(%d)", counts[t]),
		})
	}
	return out
}
