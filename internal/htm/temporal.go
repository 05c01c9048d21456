package htm

import (
	"math/rand/v2"
	"slices"

	"github.com/tphakala/anomalystream/internal/params"
)

const permanenceEpsilon = 1e-6

type synapse struct {
	presynaptic int
	permanence  float64
}

type segment struct {
	cell     int
	synapses []synapse
	lastUsed int
}

// sequenceMemory learns transitions between successive sets of active
// columns and predicts the columns expected next.
type sequenceMemory struct {
	p   params.SequenceParams
	rng *rand.Rand

	segments     []*segment // nil slots are free
	freeSegments []int
	cellSegments [][]int

	activeCells    []int
	winnerCells    []int
	activeSegments []int // segments predicting the next step, ascending
	matching       []int // segments with enough potential synapses, ascending
	potentialCount []int // per segment, active potential synapses for the last step

	iteration int
}

func newSequenceMemory(p params.SequenceParams, rng *rand.Rand) *sequenceMemory {
	return &sequenceMemory{
		p:            p,
		rng:          rng,
		cellSegments: make([][]int, p.ColumnCount*p.CellsPerColumn),
	}
}

func (tm *sequenceMemory) columnOf(cell int) int {
	return cell / tm.p.CellsPerColumn
}

// predictedColumns returns the columns containing a cell with an active
// segment, as computed at the end of the previous step.
func (tm *sequenceMemory) predictedColumns() map[int]struct{} {
	cols := make(map[int]struct{}, len(tm.activeSegments))
	for _, s := range tm.activeSegments {
		cols[tm.columnOf(tm.segments[s].cell)] = struct{}{}
	}
	return cols
}

// compute activates cells for the sorted active columns, learns when learn
// is set and computes predictions for the next step.
func (tm *sequenceMemory) compute(activeColumns []int, learn bool) {
	prevActive := make(map[int]struct{}, len(tm.activeCells))
	for _, c := range tm.activeCells {
		prevActive[c] = struct{}{}
	}
	prevWinners := tm.winnerCells

	activeByColumn := groupByColumn(tm, tm.activeSegments)
	matchingByColumn := groupByColumn(tm, tm.matching)

	var nextActive, nextWinners []int
	activeColumnSet := make(map[int]struct{}, len(activeColumns))
	for _, col := range activeColumns {
		activeColumnSet[col] = struct{}{}

		if segs := activeByColumn[col]; len(segs) > 0 {
			for _, s := range segs {
				cell := tm.segments[s].cell
				if n := len(nextActive); n == 0 || nextActive[n-1] != cell {
					nextActive = append(nextActive, cell)
					nextWinners = append(nextWinners, cell)
				}
				if learn {
					tm.adaptSegment(s, prevActive)
					tm.growSynapses(s, prevWinners, tm.p.NewSynapseCount-tm.potentialCount[s])
				}
			}
			continue
		}

		first := col * tm.p.CellsPerColumn
		for cell := first; cell < first+tm.p.CellsPerColumn; cell++ {
			nextActive = append(nextActive, cell)
		}

		if segs := matchingByColumn[col]; len(segs) > 0 {
			best := segs[0]
			for _, s := range segs[1:] {
				if tm.potentialCount[s] > tm.potentialCount[best] {
					best = s
				}
			}
			nextWinners = append(nextWinners, tm.segments[best].cell)
			if learn {
				tm.adaptSegment(best, prevActive)
				tm.growSynapses(best, prevWinners, tm.p.NewSynapseCount-tm.potentialCount[best])
			}
			continue
		}

		winner := tm.leastUsedCell(col)
		nextWinners = append(nextWinners, winner)
		if learn && len(prevWinners) > 0 {
			s := tm.createSegment(winner)
			tm.growSynapses(s, prevWinners, min(tm.p.NewSynapseCount, len(prevWinners)))
		}
	}

	if learn && tm.p.PredictedSegmentDecrement > 0 {
		for col, segs := range matchingByColumn {
			if _, ok := activeColumnSet[col]; ok {
				continue
			}
			for _, s := range segs {
				tm.punishSegment(s, prevActive)
			}
		}
	}

	slices.Sort(nextActive)
	slices.Sort(nextWinners)
	tm.activeCells = nextActive
	tm.winnerCells = slices.Compact(nextWinners)
	tm.activateDendrites()
	tm.iteration++
}

func groupByColumn(tm *sequenceMemory, segs []int) map[int][]int {
	out := make(map[int][]int)
	for _, s := range segs {
		col := tm.columnOf(tm.segments[s].cell)
		out[col] = append(out[col], s)
	}
	return out
}

// activateDendrites recomputes active and matching segments from the
// current active cells.
func (tm *sequenceMemory) activateDendrites() {
	active := make(map[int]struct{}, len(tm.activeCells))
	for _, c := range tm.activeCells {
		active[c] = struct{}{}
	}

	if cap(tm.potentialCount) < len(tm.segments) {
		tm.potentialCount = make([]int, len(tm.segments))
	}
	tm.potentialCount = tm.potentialCount[:len(tm.segments)]
	tm.activeSegments = tm.activeSegments[:0]
	tm.matching = tm.matching[:0]

	// Segments are visited in index order, so both lists come out sorted by
	// segment index. Cells with several active segments appear once each.
	for s, seg := range tm.segments {
		tm.potentialCount[s] = 0
		if seg == nil {
			continue
		}
		connected, potential := 0, 0
		for _, syn := range seg.synapses {
			if _, ok := active[syn.presynaptic]; !ok {
				continue
			}
			potential++
			if syn.permanence >= tm.p.ConnectedPerm-permanenceEpsilon {
				connected++
			}
		}
		tm.potentialCount[s] = potential
		if connected >= tm.p.ActivationThreshold {
			tm.activeSegments = append(tm.activeSegments, s)
			seg.lastUsed = tm.iteration
		}
		if potential >= tm.p.MinThreshold {
			tm.matching = append(tm.matching, s)
		}
	}

	// compute walks active segments per column expecting cell order.
	slices.SortStableFunc(tm.activeSegments, func(a, b int) int {
		return tm.segments[a].cell - tm.segments[b].cell
	})
}

func (tm *sequenceMemory) adaptSegment(s int, prevActive map[int]struct{}) {
	seg := tm.segments[s]
	kept := seg.synapses[:0]
	for _, syn := range seg.synapses {
		if _, ok := prevActive[syn.presynaptic]; ok {
			syn.permanence = clamp01(syn.permanence + tm.p.PermanenceInc)
		} else {
			syn.permanence = clamp01(syn.permanence - tm.p.PermanenceDec)
		}
		if syn.permanence > permanenceEpsilon {
			kept = append(kept, syn)
		}
	}
	seg.synapses = kept
	seg.lastUsed = tm.iteration
}

func (tm *sequenceMemory) punishSegment(s int, prevActive map[int]struct{}) {
	seg := tm.segments[s]
	kept := seg.synapses[:0]
	for _, syn := range seg.synapses {
		if _, ok := prevActive[syn.presynaptic]; ok {
			syn.permanence = clamp01(syn.permanence - tm.p.PredictedSegmentDecrement)
		}
		if syn.permanence > permanenceEpsilon {
			kept = append(kept, syn)
		}
	}
	seg.synapses = kept
}

// growSynapses connects up to n previous winner cells not yet presynaptic to
// the segment, evicting the weakest synapses when the segment is full.
func (tm *sequenceMemory) growSynapses(s int, prevWinners []int, n int) {
	if n <= 0 || len(prevWinners) == 0 {
		return
	}
	seg := tm.segments[s]

	existing := make(map[int]struct{}, len(seg.synapses))
	for _, syn := range seg.synapses {
		existing[syn.presynaptic] = struct{}{}
	}
	candidates := make([]int, 0, len(prevWinners))
	for _, c := range prevWinners {
		if _, ok := existing[c]; !ok {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return
	}
	n = min(n, len(candidates))

	if overflow := len(seg.synapses) + n - tm.p.MaxSynapsesPerSegment; overflow > 0 {
		slices.SortStableFunc(seg.synapses, func(a, b synapse) int {
			switch {
			case a.permanence < b.permanence:
				return -1
			case a.permanence > b.permanence:
				return 1
			}
			return 0
		})
		drop := min(overflow, len(seg.synapses))
		seg.synapses = seg.synapses[drop:]
		n = min(n, tm.p.MaxSynapsesPerSegment-len(seg.synapses))
	}

	tm.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, c := range candidates[:n] {
		seg.synapses = append(seg.synapses, synapse{presynaptic: c, permanence: tm.p.InitialPerm})
	}
}

// leastUsedCell picks a cell of col with the fewest segments, breaking ties randomly.
func (tm *sequenceMemory) leastUsedCell(col int) int {
	first := col * tm.p.CellsPerColumn
	fewest := -1
	var candidates []int
	for cell := first; cell < first+tm.p.CellsPerColumn; cell++ {
		n := len(tm.cellSegments[cell])
		switch {
		case fewest < 0 || n < fewest:
			fewest = n
			candidates = append(candidates[:0], cell)
		case n == fewest:
			candidates = append(candidates, cell)
		}
	}
	return candidates[tm.rng.IntN(len(candidates))]
}

// createSegment adds a segment to cell, replacing the cell's least recently
// used segment when the cell is at capacity.
func (tm *sequenceMemory) createSegment(cell int) int {
	if segs := tm.cellSegments[cell]; len(segs) >= tm.p.MaxSegmentsPerCell {
		oldest := segs[0]
		for _, s := range segs[1:] {
			if tm.segments[s].lastUsed < tm.segments[oldest].lastUsed {
				oldest = s
			}
		}
		tm.destroySegment(oldest)
	}

	seg := &segment{cell: cell, lastUsed: tm.iteration}
	var s int
	if n := len(tm.freeSegments); n > 0 {
		s = tm.freeSegments[n-1]
		tm.freeSegments = tm.freeSegments[:n-1]
		tm.segments[s] = seg
	} else {
		s = len(tm.segments)
		tm.segments = append(tm.segments, seg)
	}
	tm.cellSegments[cell] = append(tm.cellSegments[cell], s)
	return s
}

func (tm *sequenceMemory) destroySegment(s int) {
	cell := tm.segments[s].cell
	tm.cellSegments[cell] = slices.DeleteFunc(tm.cellSegments[cell], func(x int) bool { return x == s })
	tm.segments[s] = nil
	tm.freeSegments = append(tm.freeSegments, s)
}

func (tm *sequenceMemory) counts() (segments, synapses int) {
	for _, seg := range tm.segments {
		if seg == nil {
			continue
		}
		segments++
		synapses += len(seg.synapses)
	}
	return segments, synapses
}
