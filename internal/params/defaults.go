package params

// Default engine seed; the same value for both stages keeps runs reproducible.
const DefaultSeed int64 = 42

// DefaultSpatialParams returns the baseline spatial stage parameters.
func DefaultSpatialParams() SpatialParams {
	return SpatialParams{
		InputWidth:                 0,
		ColumnCount:                2048,
		PotentialRadius:            16,
		PotentialPct:               0.5,
		GlobalInhibition:           false,
		LocalAreaDensity:           -1.0,
		NumActiveColumnsPerInhArea: 10,
		StimulusThreshold:          0,
		SynPermInactiveDec:         0.008,
		SynPermActiveInc:           0.05,
		SynPermConnected:           0.10,
		MinPctOverlapDutyCycles:    0.001,
		MinPctActiveDutyCycles:     0.001,
		DutyCyclePeriod:            1000,
		MaxBoost:                   10.0,
		Seed:                       DefaultSeed,
		Verbosity:                  0,
	}
}

// DefaultSequenceParams returns the baseline sequence stage parameters.
func DefaultSequenceParams() SequenceParams {
	return SequenceParams{
		ColumnCount:               2048,
		InputWidth:                0,
		CellsPerColumn:            32,
		ActivationThreshold:       13,
		MinThreshold:              10,
		NewSynapseCount:           20,
		MaxSynapsesPerSegment:     255,
		MaxSegmentsPerCell:        255,
		InitialPerm:               0.21,
		ConnectedPerm:             0.5,
		PermanenceInc:             0.10,
		PermanenceDec:             0.10,
		PredictedSegmentDecrement: 0.0,
		Seed:                      DefaultSeed,
		Verbosity:                 0,
	}
}
