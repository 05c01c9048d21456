// Package params turns a nested model parameter document into the typed
// configuration consumed by the scoring engine.
package params

// Field types understood by the pipeline header.
const (
	FieldTypeFloat    = "float"
	FieldTypeDateTime = "datetime"
)

// DateTimePattern is the fixed pattern assigned to time-of-day fields.
// The Go layout equivalent is DateTimeLayout.
const (
	DateTimePattern = "YYYY-MM-dd HH:mm:ss"
	DateTimeLayout  = "2006-01-02 15:04:05"
)

// ModelConfig is the fully resolved configuration for one run. It is built
// once by Resolve and not modified after the pipeline is assembled.
type ModelConfig struct {
	Spatial  SpatialParams  `yaml:"spatial"`
	Sequence SequenceParams `yaml:"sequence"`
	Sensor   SensorParams   `yaml:"sensor"`
}

// SpatialParams configures the spatial stage.
type SpatialParams struct {
	// InputWidth is the expected encoder output width; 0 derives it from the encoders.
	InputWidth                 int     `yaml:"inputWidth"`
	ColumnCount                int     `yaml:"columnCount"`
	PotentialRadius            int     `yaml:"potentialRadius"`
	PotentialPct               float64 `yaml:"potentialPct"`
	GlobalInhibition           bool    `yaml:"globalInhibition"`
	LocalAreaDensity           float64 `yaml:"localAreaDensity"`
	NumActiveColumnsPerInhArea int     `yaml:"numActiveColumnsPerInhArea"`
	StimulusThreshold          int     `yaml:"stimulusThreshold"`
	SynPermInactiveDec         float64 `yaml:"synPermInactiveDec"`
	SynPermActiveInc           float64 `yaml:"synPermActiveInc"`
	SynPermConnected           float64 `yaml:"synPermConnected"`
	MinPctOverlapDutyCycles    float64 `yaml:"minPctOverlapDutyCycles"`
	MinPctActiveDutyCycles     float64 `yaml:"minPctActiveDutyCycles"`
	DutyCyclePeriod            int     `yaml:"dutyCyclePeriod"`
	MaxBoost                   float64 `yaml:"maxBoost"`
	Seed                       int64   `yaml:"seed"`
	Verbosity                  int     `yaml:"spVerbosity"`
}

// SequenceParams configures the sequence stage.
type SequenceParams struct {
	ColumnCount int `yaml:"columnCount"`
	// InputWidth, when nonzero, must match the spatial column count.
	InputWidth                int     `yaml:"inputWidth"`
	CellsPerColumn            int     `yaml:"cellsPerColumn"`
	ActivationThreshold       int     `yaml:"activationThreshold"`
	MinThreshold              int     `yaml:"minThreshold"`
	NewSynapseCount           int     `yaml:"newSynapseCount"`
	MaxSynapsesPerSegment     int     `yaml:"maxSynapsesPerSegment"`
	MaxSegmentsPerCell        int     `yaml:"maxSegmentsPerCell"`
	InitialPerm               float64 `yaml:"initialPerm"`
	ConnectedPerm             float64 `yaml:"connectedPerm"`
	PermanenceInc             float64 `yaml:"permanenceInc"`
	PermanenceDec             float64 `yaml:"permanenceDec"`
	PredictedSegmentDecrement float64 `yaml:"predictedSegmentDecrement"`
	Seed                      int64   `yaml:"seed"`
	Verbosity                 int     `yaml:"verbosity"`
}

// SensorParams configures input handling. It has no defaults: the field set
// always comes from the document.
type SensorParams struct {
	ClipInput      bool                     `yaml:"clipInput"`
	FieldEncodings map[string]FieldEncoding `yaml:"fieldEncodings"`
}

// TimeOfDay is the [bucketCount, radius] tuple of a time-of-day encoder.
type TimeOfDay struct {
	BucketCount int     `yaml:"bucketCount"`
	Radius      float64 `yaml:"radius"`
}

// FieldEncoding describes how one input column is encoded.
type FieldEncoding struct {
	FieldName       string     `yaml:"fieldName"`
	EncoderType     string     `yaml:"encoderType"`
	FieldType       string     `yaml:"fieldType"`
	Resolution      *float64   `yaml:"resolution,omitempty"`
	DateTimePattern string     `yaml:"dateTimePattern,omitempty"`
	TimeOfDay       *TimeOfDay `yaml:"timeOfDay,omitempty"`

	// Optional sizing keys; zero or nil means the encoder picks its default.
	N          int      `yaml:"n,omitempty"`
	W          int      `yaml:"w,omitempty"`
	MinVal     *float64 `yaml:"minval,omitempty"`
	MaxVal     *float64 `yaml:"maxval,omitempty"`
	NumBuckets int      `yaml:"numBuckets,omitempty"`
	Seed       *int64   `yaml:"seed,omitempty"`
}

// IsDateTime reports whether the field is encoded as a time-of-day feature.
func (f FieldEncoding) IsDateTime() bool {
	return f.FieldType == FieldTypeDateTime
}
