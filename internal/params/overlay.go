package params

import (
	"fmt"
	"math"
	"slices"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
)

// KeyPolicy decides how a parameter group treats absent keys.
type KeyPolicy int

const (
	// PolicyOverlay keeps the default for every absent key.
	PolicyOverlay KeyPolicy = iota
	// PolicyRequired rejects a document that omits one of the group's required keys.
	PolicyRequired
)

// One policy per group. Every key is optional; the document only needs to
// name the values it changes.
const (
	spatialKeyPolicy  = PolicyOverlay
	sequenceKeyPolicy = PolicyOverlay
)

// Keys that are mandatory when a group runs under PolicyRequired.
var (
	requiredSpatialKeys  = []string{"seed", "columnCount", "inputWidth", "spVerbosity"}
	requiredSequenceKeys = []string{"seed", "columnCount", "inputWidth", "verbosity"}
)

// binding applies one document key to one typed field.
type binding struct {
	key   string
	apply func(v *jason.Value, path string) error
}

func floatKey(key string, dst *float64) binding {
	return binding{key: key, apply: func(v *jason.Value, path string) error {
		f, err := v.Float64()
		if err != nil {
			return errors.ConfigError(path, fmt.Errorf("%s: expected a number", path))
		}
		*dst = f
		return nil
	}}
}

func intKey(key string, dst *int) binding {
	return binding{key: key, apply: func(v *jason.Value, path string) error {
		n, err := integral(v, path)
		if err != nil {
			return err
		}
		*dst = int(n)
		return nil
	}}
}

func int64Key(key string, dst *int64) binding {
	return binding{key: key, apply: func(v *jason.Value, path string) error {
		n, err := integral(v, path)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}}
}

// boolKey accepts a JSON boolean or a number, where any nonzero number is true.
func boolKey(key string, dst *bool) binding {
	return binding{key: key, apply: func(v *jason.Value, path string) error {
		if b, err := v.Boolean(); err == nil {
			*dst = b
			return nil
		}
		if f, err := v.Float64(); err == nil {
			*dst = f != 0
			return nil
		}
		return errors.ConfigError(path, fmt.Errorf("%s: expected a boolean or a number", path))
	}}
}

// integral reads a JSON number that must have no fractional part.
func integral(v *jason.Value, path string) (int64, error) {
	f, err := v.Float64()
	if err != nil {
		return 0, errors.ConfigError(path, fmt.Errorf("%s: expected an integer", path))
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, errors.ConfigError(path, fmt.Errorf("%s: expected an integer, got %v", path, f))
	}
	return int64(f), nil
}

func isNull(v *jason.Value) bool {
	return v == nil || v.Null() == nil
}

// overlay applies every bound key present in group. Null values keep the
// default. Keys with no binding are logged and ignored.
func overlay(group *jason.Object, path string, bindings []binding, policy KeyPolicy, required []string) error {
	fields := group.Map()
	bound := make(map[string]struct{}, len(bindings))

	for _, b := range bindings {
		bound[b.key] = struct{}{}
		keyPath := path + "." + b.key

		v, ok := fields[b.key]
		if !ok {
			if policy == PolicyRequired && slices.Contains(required, b.key) {
				return errors.ConfigError(keyPath, fmt.Errorf("%s: required key is missing", keyPath))
			}
			continue
		}
		if isNull(v) {
			continue
		}
		if err := b.apply(v, keyPath); err != nil {
			return err
		}
	}

	var ignored []string
	for key := range fields {
		if _, ok := bound[key]; !ok {
			ignored = append(ignored, key)
		}
	}
	if len(ignored) > 0 {
		slices.Sort(ignored)
		GetLogger().Debug("ignoring unsupported parameters",
			logger.String("group", path),
			logger.Any("keys", ignored))
	}

	return nil
}

func spatialBindings(p *SpatialParams) []binding {
	return []binding{
		intKey("inputWidth", &p.InputWidth),
		intKey("columnCount", &p.ColumnCount),
		intKey("potentialRadius", &p.PotentialRadius),
		floatKey("potentialPct", &p.PotentialPct),
		boolKey("globalInhibition", &p.GlobalInhibition),
		floatKey("localAreaDensity", &p.LocalAreaDensity),
		intKey("numActiveColumnsPerInhArea", &p.NumActiveColumnsPerInhArea),
		intKey("stimulusThreshold", &p.StimulusThreshold),
		floatKey("synPermInactiveDec", &p.SynPermInactiveDec),
		floatKey("synPermActiveInc", &p.SynPermActiveInc),
		floatKey("synPermConnected", &p.SynPermConnected),
		floatKey("minPctOverlapDutyCycles", &p.MinPctOverlapDutyCycles),
		floatKey("minPctActiveDutyCycles", &p.MinPctActiveDutyCycles),
		intKey("dutyCyclePeriod", &p.DutyCyclePeriod),
		floatKey("maxBoost", &p.MaxBoost),
		int64Key("seed", &p.Seed),
		intKey("spVerbosity", &p.Verbosity),
	}
}

func sequenceBindings(p *SequenceParams) []binding {
	return []binding{
		intKey("columnCount", &p.ColumnCount),
		intKey("inputWidth", &p.InputWidth),
		intKey("cellsPerColumn", &p.CellsPerColumn),
		intKey("activationThreshold", &p.ActivationThreshold),
		intKey("minThreshold", &p.MinThreshold),
		intKey("newSynapseCount", &p.NewSynapseCount),
		intKey("maxSynapsesPerSegment", &p.MaxSynapsesPerSegment),
		intKey("maxSegmentsPerCell", &p.MaxSegmentsPerCell),
		floatKey("initialPerm", &p.InitialPerm),
		floatKey("connectedPerm", &p.ConnectedPerm),
		floatKey("permanenceInc", &p.PermanenceInc),
		floatKey("permanenceDec", &p.PermanenceDec),
		floatKey("predictedSegmentDecrement", &p.PredictedSegmentDecrement),
		int64Key("seed", &p.Seed),
		intKey("verbosity", &p.Verbosity),
	}
}

// OverlaySpatial returns defaults overlaid with the keys present in group.
// A nil group yields the defaults.
func OverlaySpatial(group *jason.Object, path string) (SpatialParams, error) {
	return overlaySpatial(group, path, spatialKeyPolicy)
}

func overlaySpatial(group *jason.Object, path string, policy KeyPolicy) (SpatialParams, error) {
	p := DefaultSpatialParams()
	if group == nil {
		if policy == PolicyRequired {
			return p, errors.ConfigError(path, fmt.Errorf("%s: missing", path))
		}
		return p, nil
	}
	if err := overlay(group, path, spatialBindings(&p), policy, requiredSpatialKeys); err != nil {
		return SpatialParams{}, err
	}
	return p, nil
}

// OverlaySequence returns defaults overlaid with the keys present in group.
// A nil group yields the defaults.
func OverlaySequence(group *jason.Object, path string) (SequenceParams, error) {
	return overlaySequence(group, path, sequenceKeyPolicy)
}

func overlaySequence(group *jason.Object, path string, policy KeyPolicy) (SequenceParams, error) {
	p := DefaultSequenceParams()
	if group == nil {
		if policy == PolicyRequired {
			return p, errors.ConfigError(path, fmt.Errorf("%s: missing", path))
		}
		return p, nil
	}
	if err := overlay(group, path, sequenceBindings(&p), policy, requiredSequenceKeys); err != nil {
		return SequenceParams{}, err
	}
	return p, nil
}
