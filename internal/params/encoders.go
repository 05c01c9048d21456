package params

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/anomalystream/internal/errors"
	"github.com/tphakala/anomalystream/internal/logger"
)

// EncodersPath is the document path of the encoder descriptors.
const EncodersPath = "modelParams.sensorParams.encoders"

type encoderEntry struct {
	path  string
	value *jason.Value
}

// BuildEncodingMap derives one FieldEncoding per field name from the encoder
// descriptors. Descriptors may be an array, visited in document order, or an
// object of named descriptors, visited in sorted key order. Null entries are
// skipped. A later descriptor for an already seen field name updates the
// existing FieldEncoding.
func BuildEncodingMap(encoders *jason.Value) (map[string]FieldEncoding, error) {
	entries, err := encoderEntries(encoders)
	if err != nil {
		return nil, err
	}

	result := make(map[string]FieldEncoding, len(entries))
	for _, entry := range entries {
		if isNull(entry.value) {
			continue
		}
		if err := applyEncoder(result, entry); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func encoderEntries(encoders *jason.Value) ([]encoderEntry, error) {
	if isNull(encoders) {
		return nil, errors.ConfigError(EncodersPath, fmt.Errorf("%s: missing", EncodersPath))
	}

	if arr, err := encoders.Array(); err == nil {
		entries := make([]encoderEntry, 0, len(arr))
		for i, v := range arr {
			entries = append(entries, encoderEntry{
				path:  EncodersPath + "[" + strconv.Itoa(i) + "]",
				value: v,
			})
		}
		return entries, nil
	}

	obj, err := encoders.Object()
	if err != nil {
		return nil, errors.ConfigError(EncodersPath, fmt.Errorf("%s: expected an array or an object", EncodersPath))
	}

	named := obj.Map()
	keys := make([]string, 0, len(named))
	for k := range named {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	entries := make([]encoderEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, encoderEntry{path: EncodersPath + "." + k, value: named[k]})
	}
	return entries, nil
}

func applyEncoder(result map[string]FieldEncoding, entry encoderEntry) error {
	obj, err := entry.value.Object()
	if err != nil {
		return errors.ConfigError(entry.path, fmt.Errorf("%s: encoder descriptor must be an object", entry.path))
	}
	fields := obj.Map()

	name, err := stringField(fields, "fieldname", entry.path)
	if err != nil {
		return err
	}
	if name == "" {
		return errors.ConfigError(entry.path+".fieldname", fmt.Errorf("%s: encoder descriptor has no fieldname", entry.path))
	}

	encoderType, err := stringField(fields, "type", entry.path)
	if err != nil {
		return err
	}

	enc, exists := result[name]
	if exists {
		GetLogger().Debug("updating encoder for repeated field name",
			logger.String("field", name),
			logger.String("path", entry.path))
	}
	enc.FieldName = name
	enc.EncoderType = encoderType
	enc.FieldType = FieldTypeFloat

	if v, ok := present(fields, "timeOfDay"); ok {
		tod, err := parseTimeOfDay(v, entry.path+".timeOfDay")
		if err != nil {
			return err
		}
		enc.FieldType = FieldTypeDateTime
		enc.DateTimePattern = DateTimePattern
		enc.TimeOfDay = tod
	}

	if err := applyOptional(&enc, fields, entry.path); err != nil {
		return err
	}

	result[name] = enc
	return nil
}

// applyOptional copies resolution and the sizing keys when present.
func applyOptional(enc *FieldEncoding, fields map[string]*jason.Value, path string) error {
	for _, key := range []string{"resolution", "minval", "maxval"} {
		v, ok := present(fields, key)
		if !ok {
			continue
		}
		f, err := v.Float64()
		if err != nil {
			return errors.ConfigError(path+"."+key, fmt.Errorf("%s.%s: expected a number", path, key))
		}
		switch key {
		case "resolution":
			enc.Resolution = &f
		case "minval":
			enc.MinVal = &f
		case "maxval":
			enc.MaxVal = &f
		}
	}

	for _, key := range []string{"n", "w", "numBuckets", "seed"} {
		v, ok := present(fields, key)
		if !ok {
			continue
		}
		n, err := integral(v, path+"."+key)
		if err != nil {
			return err
		}
		switch key {
		case "n":
			enc.N = int(n)
		case "w":
			enc.W = int(n)
		case "numBuckets":
			enc.NumBuckets = int(n)
		case "seed":
			enc.Seed = &n
		}
	}

	return nil
}

// parseTimeOfDay requires exactly [bucketCount, radius] with a positive
// integral bucket count and a positive radius.
func parseTimeOfDay(v *jason.Value, path string) (*TimeOfDay, error) {
	arr, err := v.Array()
	if err != nil || len(arr) != 2 {
		return nil, errors.ConfigError(path, fmt.Errorf("%s: expected [bucketCount, radius]", path))
	}

	count, err := integral(arr[0], path+"[0]")
	if err != nil {
		return nil, err
	}
	radius, err := arr[1].Float64()
	if err != nil {
		return nil, errors.ConfigError(path+"[1]", fmt.Errorf("%s[1]: expected a number", path))
	}
	if count <= 0 || radius <= 0 {
		return nil, errors.ConfigError(path, fmt.Errorf("%s: bucketCount and radius must be positive, got [%d, %v]", path, count, radius))
	}

	return &TimeOfDay{BucketCount: int(count), Radius: radius}, nil
}

// present returns the value for key if it exists and is not null.
func present(fields map[string]*jason.Value, key string) (*jason.Value, bool) {
	v, ok := fields[key]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

func stringField(fields map[string]*jason.Value, key, path string) (string, error) {
	v, ok := present(fields, key)
	if !ok {
		return "", nil
	}
	s, err := v.String()
	if err != nil {
		return "", errors.ConfigError(path+"."+key, fmt.Errorf("%s.%s: expected a string", path, key))
	}
	return s, nil
}
