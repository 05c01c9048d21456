package htm

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/tphakala/anomalystream/internal/params"
)

// spatialPooler maps an input bit set onto a sparse set of active columns.
type spatialPooler struct {
	p         params.SpatialParams
	numInputs int

	potential   [][]int     // input indices per column
	permanences [][]float64 // parallel to potential

	boost             []float64
	overlapDutyCycles []float64
	activeDutyCycles  []float64
	minOverlapDuty    float64
	minActiveDuty     float64

	inhibitionRadius int
	iteration        int

	// scratch
	inputActive []bool
	overlaps    []float64
	order       []int
}

func newSpatialPooler(p params.SpatialParams, numInputs int, rng *rand.Rand) *spatialPooler {
	sp := &spatialPooler{
		p:                 p,
		numInputs:         numInputs,
		potential:         make([][]int, p.ColumnCount),
		permanences:       make([][]float64, p.ColumnCount),
		boost:             make([]float64, p.ColumnCount),
		overlapDutyCycles: make([]float64, p.ColumnCount),
		activeDutyCycles:  make([]float64, p.ColumnCount),
		inputActive:       make([]bool, numInputs),
		overlaps:          make([]float64, p.ColumnCount),
		order:             make([]int, p.ColumnCount),
	}

	for c := range p.ColumnCount {
		sp.boost[c] = 1.0
		pool := sp.potentialPool(c, rng)
		perms := make([]float64, len(pool))
		for i := range pool {
			if rng.Float64() < 0.5 {
				perms[i] = p.SynPermConnected + rng.Float64()*p.SynPermActiveInc/4
			} else {
				perms[i] = p.SynPermConnected * rng.Float64()
			}
			perms[i] = clamp01(perms[i])
		}
		sp.potential[c] = pool
		sp.permanences[c] = perms
	}

	sp.inhibitionRadius = sp.computeInhibitionRadius()
	return sp
}

// potentialPool samples potentialPct of the inputs within potentialRadius of
// the column's center. A radius of 0, or one covering the whole input, makes
// every input a candidate.
func (sp *spatialPooler) potentialPool(column int, rng *rand.Rand) []int {
	var candidates []int
	r := sp.p.PotentialRadius
	if r <= 0 || 2*r+1 >= sp.numInputs {
		candidates = make([]int, sp.numInputs)
		for i := range candidates {
			candidates[i] = i
		}
	} else {
		center := int((float64(column) + 0.5) * float64(sp.numInputs) / float64(sp.p.ColumnCount))
		candidates = make([]int, 0, 2*r+1)
		for d := -r; d <= r; d++ {
			candidates = append(candidates, ((center+d)%sp.numInputs+sp.numInputs)%sp.numInputs)
		}
	}

	k := int(math.Round(sp.p.PotentialPct * float64(len(candidates))))
	k = max(1, min(k, len(candidates)))
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	pool := slices.Clone(candidates[:k])
	slices.Sort(pool)
	return pool
}

func (sp *spatialPooler) computeInhibitionRadius() int {
	if sp.p.GlobalInhibition {
		return sp.p.ColumnCount
	}
	r := sp.p.PotentialRadius
	if r <= 0 {
		r = sp.numInputs
	}
	radius := int(math.Round(float64(r) * float64(sp.p.ColumnCount) / float64(sp.numInputs)))
	return max(1, radius)
}

// numActive is the target number of winners within an inhibition area of
// the given size.
func (sp *spatialPooler) numActive(area int) int {
	if sp.p.LocalAreaDensity > 0 {
		return min(area, max(1, int(sp.p.LocalAreaDensity*float64(area)+0.5)))
	}
	if area >= sp.p.ColumnCount {
		return min(sp.p.NumActiveColumnsPerInhArea, sp.p.ColumnCount)
	}
	density := math.Min(float64(sp.p.NumActiveColumnsPerInhArea)/float64(area), 0.5)
	return max(1, int(density*float64(area)+0.5))
}

// compute returns the sorted active columns for input and, when learn is
// set, adapts permanences, duty cycles and boosts.
func (sp *spatialPooler) compute(input []int, learn bool) []int {
	clear(sp.inputActive)
	for _, i := range input {
		sp.inputActive[i] = true
	}

	rawOverlap := make([]int, sp.p.ColumnCount)
	for c := range sp.p.ColumnCount {
		n := 0
		for i, in := range sp.potential[c] {
			if sp.inputActive[in] && sp.permanences[c][i] >= sp.p.SynPermConnected {
				n++
			}
		}
		if n < sp.p.StimulusThreshold {
			n = 0
		}
		rawOverlap[c] = n
		sp.overlaps[c] = float64(n) * sp.boost[c]
	}

	var active []int
	if sp.p.GlobalInhibition || sp.inhibitionRadius >= sp.p.ColumnCount {
		active = sp.inhibitGlobal()
	} else {
		active = sp.inhibitLocal()
	}

	if learn {
		sp.learn(active, rawOverlap)
	}
	sp.iteration++
	return active
}

func (sp *spatialPooler) inhibitGlobal() []int {
	for i := range sp.order {
		sp.order[i] = i
	}
	slices.SortStableFunc(sp.order, func(a, b int) int {
		return cmp.Compare(sp.overlaps[b], sp.overlaps[a])
	})

	k := sp.numActive(sp.p.ColumnCount)
	active := make([]int, 0, k)
	for _, c := range sp.order[:k] {
		if sp.overlaps[c] <= 0 {
			break
		}
		active = append(active, c)
	}
	slices.Sort(active)
	return active
}

// inhibitLocal keeps a column when fewer than numActive neighbors within the
// inhibition radius beat it. Ties go to the lower index.
func (sp *spatialPooler) inhibitLocal() []int {
	r := sp.inhibitionRadius
	var active []int
	for c := range sp.p.ColumnCount {
		o := sp.overlaps[c]
		if o <= 0 {
			continue
		}
		lo, hi := max(0, c-r), min(sp.p.ColumnCount-1, c+r)
		want := sp.numActive(hi - lo + 1)
		bigger := 0
		for n := lo; n <= hi && bigger < want; n++ {
			if n == c {
				continue
			}
			if sp.overlaps[n] > o || (sp.overlaps[n] == o && n < c) {
				bigger++
			}
		}
		if bigger < want {
			active = append(active, c)
		}
	}
	return active
}

func (sp *spatialPooler) learn(active, rawOverlap []int) {
	p := sp.p
	for _, c := range active {
		perms := sp.permanences[c]
		for i, in := range sp.potential[c] {
			if sp.inputActive[in] {
				perms[i] = clamp01(perms[i] + p.SynPermActiveInc)
			} else {
				perms[i] = clamp01(perms[i] - p.SynPermInactiveDec)
			}
		}
	}

	period := float64(min(sp.iteration+1, p.DutyCyclePeriod))
	isActive := make([]bool, p.ColumnCount)
	for _, c := range active {
		isActive[c] = true
	}
	maxOverlapDuty, maxActiveDuty := 0.0, 0.0
	for c := range p.ColumnCount {
		sp.overlapDutyCycles[c] = updateDutyCycle(sp.overlapDutyCycles[c], rawOverlap[c] > 0, period)
		sp.activeDutyCycles[c] = updateDutyCycle(sp.activeDutyCycles[c], isActive[c], period)
		maxOverlapDuty = math.Max(maxOverlapDuty, sp.overlapDutyCycles[c])
		maxActiveDuty = math.Max(maxActiveDuty, sp.activeDutyCycles[c])
	}
	sp.minOverlapDuty = p.MinPctOverlapDutyCycles * maxOverlapDuty
	sp.minActiveDuty = p.MinPctActiveDutyCycles * maxActiveDuty

	// Columns that rarely overlap get all their permanences nudged up.
	bump := p.SynPermConnected / 10
	for c := range p.ColumnCount {
		if sp.overlapDutyCycles[c] >= sp.minOverlapDuty {
			continue
		}
		for i := range sp.permanences[c] {
			sp.permanences[c][i] = clamp01(sp.permanences[c][i] + bump)
		}
	}

	sp.updateBoost()
}

func (sp *spatialPooler) updateBoost() {
	if sp.p.MaxBoost <= 1 || sp.minActiveDuty <= 0 {
		for c := range sp.boost {
			sp.boost[c] = 1
		}
		return
	}
	for c, duty := range sp.activeDutyCycles {
		if duty >= sp.minActiveDuty {
			sp.boost[c] = 1
			continue
		}
		sp.boost[c] = (1-sp.p.MaxBoost)/sp.minActiveDuty*duty + sp.p.MaxBoost
	}
}

func updateDutyCycle(duty float64, on bool, period float64) float64 {
	v := 0.0
	if on {
		v = 1
	}
	return (duty*(period-1) + v) / period
}

// activeColumnCount counts columns with a nonzero active duty cycle.
func (sp *spatialPooler) activeColumnCount() int {
	n := 0
	for _, d := range sp.activeDutyCycles {
		if d > 0 {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
