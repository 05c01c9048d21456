package params

import (
	"fmt"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
)

// Document paths of the parameter groups.
const (
	ModelParamsPath  = "modelParams"
	SpatialPath      = ModelParamsPath + ".spParams"
	SequencePath     = ModelParamsPath + ".tpParams"
	SensorParamsPath = ModelParamsPath + ".sensorParams"
)

// Resolve builds a ModelConfig from a JSON parameter document. The spatial
// and sequence groups start from their defaults and take only the keys the
// document sets. The sensor group is always built from the document.
func Resolve(doc []byte) (*ModelConfig, error) {
	root, err := jason.NewObjectFromBytes(doc)
	if err != nil {
		return nil, errors.ConfigError("$", fmt.Errorf("parameter document is not a JSON object: %w", err))
	}

	modelParams, err := childObject(root, "modelParams", ModelParamsPath, true)
	if err != nil {
		return nil, err
	}

	spGroup, err := childObject(modelParams, "spParams", SpatialPath, false)
	if err != nil {
		return nil, err
	}
	spatial, err := OverlaySpatial(spGroup, SpatialPath)
	if err != nil {
		return nil, err
	}

	tpGroup, err := childObject(modelParams, "tpParams", SequencePath, false)
	if err != nil {
		return nil, err
	}
	sequence, err := OverlaySequence(tpGroup, SequencePath)
	if err != nil {
		return nil, err
	}

	sensor, err := resolveSensor(modelParams)
	if err != nil {
		return nil, err
	}

	cfg := &ModelConfig{
		Spatial:  spatial,
		Sequence: sequence,
		Sensor:   sensor,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GetLogger().Debug("model parameters resolved",
		logger.Int("column_count", cfg.Spatial.ColumnCount),
		logger.Int("cells_per_column", cfg.Sequence.CellsPerColumn),
		logger.Int("fields", len(cfg.Sensor.FieldEncodings)))

	return cfg, nil
}

func resolveSensor(modelParams *jason.Object) (SensorParams, error) {
	group, err := childObject(modelParams, "sensorParams", SensorParamsPath, true)
	if err != nil {
		return SensorParams{}, err
	}

	encoders, ok := present(group.Map(), "encoders")
	if !ok {
		return SensorParams{}, errors.ConfigError(EncodersPath, fmt.Errorf("%s: missing", EncodersPath))
	}

	encodings, err := BuildEncodingMap(encoders)
	if err != nil {
		return SensorParams{}, err
	}

	return SensorParams{
		ClipInput:      true,
		FieldEncodings: encodings,
	}, nil
}

// childObject returns parent[key] as an object. An absent or null optional
// key returns nil without error.
func childObject(parent *jason.Object, key, path string, required bool) (*jason.Object, error) {
	v, ok := present(parent.Map(), key)
	if !ok {
		if required {
			return nil, errors.ConfigError(path, fmt.Errorf("%s: missing", path))
		}
		return nil, nil
	}
	obj, err := v.Object()
	if err != nil {
		return nil, errors.ConfigError(path, fmt.Errorf("%s: expected an object", path))
	}
	return obj, nil
}
