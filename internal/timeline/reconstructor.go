// Package timeline replays a cycle's audit log into labeled duration
// segments and per-pair totals. Reconstruction is a pure, deterministic
// function of the entries: recomputing over an unchanged log yields
// identical output, which is what makes the persisted summary a safe cache.
package timeline

import (
	"math"
	"sort"

	"github.com/plantasur/tablero/pkg/board"
)

// Pair defines one meaningful phase boundary of the workflow: the interval
// opens when the board enters From and closes when it enters To.
type Pair struct {
	From  board.StateKey
	To    board.StateKey
	Label string
	Color string
}

// Pairs is the fixed ordered list of phase boundaries spanning the
// eight-state workflow. Amber pairs are waiting delays, the others are the
// phases themselves.
var Pairs = []Pair{
	{From: board.StateCIPSolicitado, To: board.StateCIPEnCurso, Label: "Demora inicio CIP", Color: "#f59e0b"},
	{From: board.StateCIPEnCurso, To: board.StateHisopadoPend, Label: "Duración CIP", Color: "#2563eb"},
	{From: board.StateHisopadoPend, To: board.StateHisopadoEnCurso, Label: "Demora inicio hisopado", Color: "#f59e0b"},
	{From: board.StateHisopadoEnCurso, To: board.StateHisopadoOK, Label: "Duración hisopado", Color: "#16a34a"},
	{From: board.StateHisopadoOK, To: board.StateArranqueEnCurso, Label: "Demora inicio arranque", Color: "#f59e0b"},
	{From: board.StateArranqueEnCurso, To: board.StateProduccionOK, Label: "Duración arranque", Color: "#7c3aed"},
}

// Key returns the "from->to" identifier used in summaries.
func (p Pair) Key() string {
	return string(p.From) + "->" + string(p.To)
}

// Meta carries caller-supplied flags into the computed summary.
type Meta struct {
	Aborted     bool
	AbortReason string
	CreatedAtMs int64 // Summary creation time; the caller stamps it so Compute stays pure
}

// msToMin converts milliseconds to minutes rounded to two decimals.
func msToMin(ms int64) float64 {
	return math.Round(float64(ms)/60000*100) / 100
}

// Compute replays the given cycle's audit entries into a CycleSummary.
//
// Entries may arrive in any order; they are sorted ascending by timestamp
// (ties broken by entry id so the result is deterministic). The zero-point
// t0 is the timestamp of the first entry whose to-state opens any pair; if
// none does, it falls back to the very first entry. Each pair keeps a
// waiting-start: an entry entering the pair's from-state opens an interval
// (overwriting a previous unclosed open), an entry entering the pair's
// to-state while an interval is open closes it, emitting one segment and
// accumulating the interval's duration (clamped to >= 0). A pair reworked
// within the cycle therefore yields multiple segments under the same label.
//
// An empty entry set yields nil: no summary, not an error.
func Compute(cycle int, entries []*board.AuditEntry, meta Meta) *board.CycleSummary {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]*board.AuditEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].TsMs != sorted[j].TsMs {
			return sorted[i].TsMs < sorted[j].TsMs
		}
		return sorted[i].ID < sorted[j].ID
	})

	t0 := sorted[0].TsMs
	for _, e := range sorted {
		if opensAnyPair(e.To) {
			t0 = e.TsMs
			break
		}
	}

	segments := []board.Segment{}
	accMs := make([]int64, len(Pairs))
	waiting := make([]int64, len(Pairs))
	open := make([]bool, len(Pairs))

	for _, e := range sorted {
		t := e.TsMs
		for i, p := range Pairs {
			if e.To == p.From {
				waiting[i] = t
				open[i] = true
			} else if e.To == p.To && open[i] {
				dur := t - waiting[i]
				if dur < 0 {
					dur = 0
				}
				accMs[i] += dur
				segments = append(segments, board.Segment{
					Key:      p.Key(),
					Label:    p.Label,
					StartMin: msToMin(waiting[i] - t0),
					EndMin:   msToMin(t - t0),
					Color:    p.Color,
				})
				open[i] = false
			}
		}
	}

	pairs := make([]board.PairTotal, len(Pairs))
	totalMin := 0.0
	for i, p := range Pairs {
		pairs[i] = board.PairTotal{
			Key:   p.Key(),
			Label: p.Label,
			Ms:    accMs[i],
			Min:   msToMin(accMs[i]),
		}
		totalMin += pairs[i].Min
	}

	return &board.CycleSummary{
		Cycle:        cycle,
		Pairs:        pairs,
		Segments:     segments,
		StartedAtMs:  sorted[0].TsMs,
		FinishedAtMs: sorted[len(sorted)-1].TsMs,
		TotalMin:     math.Round(totalMin*100) / 100,
		Aborted:      meta.Aborted,
		AbortReason:  meta.AbortReason,
		CreatedAtMs:  meta.CreatedAtMs,
	}
}

func opensAnyPair(to board.StateKey) bool {
	for _, p := range Pairs {
		if to == p.From {
			return true
		}
	}
	return false
}
