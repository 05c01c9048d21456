package htm

import (
	"fmt"
	"math/rand/v2"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
	"github.com/tphakala/anomalystream/internal/params"
)

// PCG stream selectors keep the spatial and sequence random streams apart when both
// stages share a seed.
const (
	spatialStream  = 0x5350
	sequenceStream = 0x5450
)

// Stats is a snapshot of engine state for diagnostics.
type Stats struct {
	// ActiveColumnCount counts columns whose active duty cycle is nonzero.
	ActiveColumnCount int
	Iteration         int
	Segments          int
	Synapses          int
}

// Handle owns the learning state of one model.
type Handle struct {
	inputWidth int
	sp         *spatialPooler
	tm         *sequenceMemory
	learn      bool
	verbose    bool
	log        logger.Logger
}

// Configure validates the stage dimensions against the encoder width and
// builds a handle. Mismatches are pipeline errors.
func Configure(inputWidth int, sp params.SpatialParams, tp params.SequenceParams) (*Handle, error) {
	switch {
	case inputWidth <= 0:
		return nil, errors.PipelineError(fmt.Errorf("encoder width must be positive, got %d", inputWidth))
	case sp.InputWidth != 0 && sp.InputWidth != inputWidth:
		return nil, errors.New(fmt.Errorf("spatial inputWidth %d does not match encoder width %d", sp.InputWidth, inputWidth)).
			Category(errors.CategoryPipeline).
			Context("spatial_input_width", sp.InputWidth).
			Context("encoder_width", inputWidth).
			Build()
	case tp.ColumnCount != sp.ColumnCount:
		return nil, errors.New(fmt.Errorf("sequence columnCount %d does not match spatial columnCount %d", tp.ColumnCount, sp.ColumnCount)).
			Category(errors.CategoryPipeline).
			Context("sequence_columns", tp.ColumnCount).
			Context("spatial_columns", sp.ColumnCount).
			Build()
	case tp.InputWidth != 0 && tp.InputWidth != sp.ColumnCount:
		return nil, errors.New(fmt.Errorf("sequence inputWidth %d does not match spatial columnCount %d", tp.InputWidth, sp.ColumnCount)).
			Category(errors.CategoryPipeline).
			Context("sequence_input_width", tp.InputWidth).
			Context("spatial_columns", sp.ColumnCount).
			Build()
	}

	sp.InputWidth = inputWidth
	tp.InputWidth = sp.ColumnCount

	h := &Handle{
		inputWidth: inputWidth,
		sp:         newSpatialPooler(sp, inputWidth, newRand(sp.Seed, spatialStream)),
		tm:         newSequenceMemory(tp, newRand(tp.Seed, sequenceStream)),
		learn:      true,
		verbose:    sp.Verbosity > 0 || tp.Verbosity > 0,
		log:        GetLogger(),
	}

	h.log.Debug("engine configured",
		logger.Int("input_width", inputWidth),
		logger.Int("columns", sp.ColumnCount),
		logger.Int("cells_per_column", tp.CellsPerColumn),
		logger.Bool("global_inhibition", sp.GlobalInhibition))

	return h, nil
}

func newRand(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), stream))
}

// InputWidth is the encoder width the handle was configured for.
func (h *Handle) InputWidth() int {
	return h.inputWidth
}

// SetLearning enables or disables learning. Learning is on by default.
func (h *Handle) SetLearning(on bool) {
	h.learn = on
}

// Step feeds one encoded input through the spatial and sequence stages and
// returns the raw anomaly score in [0, 1]. input holds active bit indices.
func (h *Handle) Step(input []int) (float64, error) {
	for _, b := range input {
		if b < 0 || b >= h.inputWidth {
			return 0, fmt.Errorf("input bit %d outside [0, %d)", b, h.inputWidth)
		}
	}

	activeColumns := h.sp.compute(input, h.learn)
	predicted := h.tm.predictedColumns()
	score := RawAnomalyScore(activeColumns, predicted)
	h.tm.compute(activeColumns, h.learn)

	if h.verbose {
		h.log.Trace("engine step",
			logger.Int("iteration", h.tm.iteration),
			logger.Int("active_columns", len(activeColumns)),
			logger.Int("predicted_columns", len(predicted)),
			logger.Float64("score", score))
	}

	return score, nil
}

// Introspect returns a snapshot of the handle's state.
func (h *Handle) Introspect() Stats {
	segments, synapses := h.tm.counts()
	return Stats{
		ActiveColumnCount: h.sp.activeColumnCount(),
		Iteration:         h.sp.iteration,
		Segments:          segments,
		Synapses:          synapses,
	}
}

// RawAnomalyScore is the fraction of active columns that were not
// predicted. With no active columns the score is 0.
func RawAnomalyScore(activeColumns []int, predicted map[int]struct{}) float64 {
	if len(activeColumns) == 0 {
		return 0
	}
	hits := 0
	for _, c := range activeColumns {
		if _, ok := predicted[c]; ok {
			hits++
		}
	}
	return 1 - float64(hits)/float64(len(activeColumns))
}
