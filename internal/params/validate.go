package params

import (
	"fmt"

	"github.com/tphakala/anomalystream/internal/errors"
)

// Size limits keep the engine's allocations bounded.
const (
	MaxColumnCount     = 1 << 16
	MaxInputWidth      = 1 << 20
	MaxPotentialRadius = 1 << 20
	MaxCells           = 1 << 22
)

type rangeCheck struct {
	path string
	ok   bool
	msg  string
}

// Validate checks value ranges of a resolved configuration. All violations
// are returned together, each as a ConfigError naming its document path.
func (c *ModelConfig) Validate() error {
	sp, tp := c.Spatial, c.Sequence

	checks := []rangeCheck{
		{SpatialPath + ".inputWidth", sp.InputWidth >= 0 && sp.InputWidth <= MaxInputWidth,
			fmt.Sprintf("must be in [0, %d]", MaxInputWidth)},
		{SpatialPath + ".columnCount", sp.ColumnCount > 0 && sp.ColumnCount <= MaxColumnCount,
			fmt.Sprintf("must be in [1, %d]", MaxColumnCount)},
		{SpatialPath + ".potentialRadius", sp.PotentialRadius >= 0 && sp.PotentialRadius <= MaxPotentialRadius,
			fmt.Sprintf("must be in [0, %d]", MaxPotentialRadius)},
		{SpatialPath + ".potentialPct", sp.PotentialPct > 0 && sp.PotentialPct <= 1, "must be in (0, 1]"},
		{SpatialPath + ".numActiveColumnsPerInhArea", sp.NumActiveColumnsPerInhArea > 0 || (sp.LocalAreaDensity > 0 && sp.LocalAreaDensity <= 1),
			"must be positive unless localAreaDensity is in (0, 1]"},
		{SpatialPath + ".localAreaDensity", sp.LocalAreaDensity <= 1,
			"must be in (0, 1], or 0 or negative to use numActiveColumnsPerInhArea"},
		{SpatialPath + ".stimulusThreshold", sp.StimulusThreshold >= 0, "must not be negative"},
		{SpatialPath + ".synPermInactiveDec", unit(sp.SynPermInactiveDec), "must be in [0, 1]"},
		{SpatialPath + ".synPermActiveInc", unit(sp.SynPermActiveInc), "must be in [0, 1]"},
		{SpatialPath + ".synPermConnected", unit(sp.SynPermConnected), "must be in [0, 1]"},
		{SpatialPath + ".minPctOverlapDutyCycles", unit(sp.MinPctOverlapDutyCycles), "must be in [0, 1]"},
		{SpatialPath + ".minPctActiveDutyCycles", unit(sp.MinPctActiveDutyCycles), "must be in [0, 1]"},
		{SpatialPath + ".dutyCyclePeriod", sp.DutyCyclePeriod > 0, "must be positive"},
		{SpatialPath + ".maxBoost", sp.MaxBoost >= 0, "must not be negative"},
		{SpatialPath + ".spVerbosity", sp.Verbosity >= 0, "must not be negative"},

		{SequencePath + ".columnCount", tp.ColumnCount > 0 && tp.ColumnCount <= MaxColumnCount,
			fmt.Sprintf("must be in [1, %d]", MaxColumnCount)},
		{SequencePath + ".inputWidth", tp.InputWidth >= 0 && tp.InputWidth <= MaxColumnCount,
			fmt.Sprintf("must be in [0, %d]", MaxColumnCount)},
		{SequencePath + ".cellsPerColumn", tp.CellsPerColumn > 0 && tp.CellsPerColumn <= MaxCells/MaxColumnCount,
			fmt.Sprintf("must be in [1, %d]", MaxCells/MaxColumnCount)},
		{SequencePath + ".activationThreshold", tp.ActivationThreshold > 0, "must be positive"},
		{SequencePath + ".minThreshold", tp.MinThreshold >= 0 && tp.MinThreshold <= tp.ActivationThreshold,
			"must be in [0, activationThreshold]"},
		{SequencePath + ".newSynapseCount", tp.NewSynapseCount > 0, "must be positive"},
		{SequencePath + ".maxSynapsesPerSegment", tp.MaxSynapsesPerSegment > 0, "must be positive"},
		{SequencePath + ".maxSegmentsPerCell", tp.MaxSegmentsPerCell > 0, "must be positive"},
		{SequencePath + ".initialPerm", unit(tp.InitialPerm), "must be in [0, 1]"},
		{SequencePath + ".connectedPerm", unit(tp.ConnectedPerm), "must be in [0, 1]"},
		{SequencePath + ".permanenceInc", unit(tp.PermanenceInc), "must be in [0, 1]"},
		{SequencePath + ".permanenceDec", unit(tp.PermanenceDec), "must be in [0, 1]"},
		{SequencePath + ".predictedSegmentDecrement", unit(tp.PredictedSegmentDecrement), "must be in [0, 1]"},
		{SequencePath + ".verbosity", tp.Verbosity >= 0, "must not be negative"},

		{EncodersPath, len(c.Sensor.FieldEncodings) > 0, "must describe at least one field"},
	}

	var errs []error
	for _, check := range checks {
		if !check.ok {
			errs = append(errs, errors.ConfigError(check.path, fmt.Errorf("%s: %s", check.path, check.msg)))
		}
	}

	for name, enc := range c.Sensor.FieldEncodings {
		if enc.Resolution != nil && *enc.Resolution <= 0 {
			path := EncodersPath + "." + name + ".resolution"
			errs = append(errs, errors.ConfigError(path, fmt.Errorf("%s: must be positive", path)))
		}
	}

	return errors.Join(errs...)
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
