// Package htm implements the scoring engine: field encoders, a spatial
// stage, a sequence stage and the raw anomaly score.
//
// A Handle owns all learning state. It is not safe for concurrent use and
// must be stepped by a single goroutine, one record at a time.
package htm

import (
	"fmt"
	"time"

	"github.com/tphakala/anomalystream/internal/params"
)

// Encoder types understood by NewFieldEncoder.
const (
	EncoderDate   = "DateEncoder"
	EncoderRDSE   = "RandomDistributedScalarEncoder"
	EncoderScalar = "ScalarEncoder"
)

// FieldEncoder turns one column value into active bit indices in [0, Width()).
type FieldEncoder interface {
	Width() int
	Encode(value any) ([]int, error)
}

// Column names and types one input column.
type Column struct {
	Name string
	Type string
}

type boundEncoder struct {
	column int
	offset int
	enc    FieldEncoder
}

// MultiEncoder concatenates the encoders of all encoded columns into one
// sparse input vector.
type MultiEncoder struct {
	encoders []boundEncoder
	width    int
}

// NewMultiEncoder builds one encoder for every header column that has a
// field encoding. Encodings naming a column outside the header, or with an
// unsupported encoder type, are rejected.
func NewMultiEncoder(header []Column, encodings map[string]params.FieldEncoding, clip bool, loc *time.Location) (*MultiEncoder, error) {
	known := make(map[string]int, len(header))
	for i, col := range header {
		known[col.Name] = i
	}
	for name := range encodings {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("field %q is not a column of the input header", name)
		}
	}

	m := &MultiEncoder{}
	for i, col := range header {
		fe, ok := encodings[col.Name]
		if !ok {
			continue
		}
		if fe.IsDateTime() != (col.Type == params.FieldTypeDateTime) {
			return nil, fmt.Errorf("field %q: encoding type %s does not match column type %s", col.Name, fe.FieldType, col.Type)
		}
		enc, err := NewFieldEncoder(fe, clip, loc)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", col.Name, err)
		}
		m.encoders = append(m.encoders, boundEncoder{column: i, offset: m.width, enc: enc})
		m.width += enc.Width()
	}

	if len(m.encoders) == 0 {
		return nil, fmt.Errorf("no input column has a field encoding")
	}
	return m, nil
}

// NewFieldEncoder builds the encoder described by fe.
func NewFieldEncoder(fe params.FieldEncoding, clip bool, loc *time.Location) (FieldEncoder, error) {
	switch fe.EncoderType {
	case EncoderDate:
		if fe.TimeOfDay == nil {
			return nil, fmt.Errorf("%s without timeOfDay has no supported features", EncoderDate)
		}
		return NewTimeOfDayEncoder(fe.TimeOfDay.BucketCount, fe.TimeOfDay.Radius, loc)
	case EncoderRDSE:
		return NewRDSE(rdseConfig(fe))
	case EncoderScalar:
		return NewScalarEncoder(scalarConfig(fe, clip))
	case "":
		return nil, fmt.Errorf("encoder type is missing")
	default:
		return nil, fmt.Errorf("unsupported encoder type %q", fe.EncoderType)
	}
}

// Width is the total width of the encoded vector.
func (m *MultiEncoder) Width() int {
	return m.width
}

// Encode encodes one record. values are indexed like the header: time.Time
// for datetime columns and float64 for float columns. The result is sorted.
func (m *MultiEncoder) Encode(values []any) ([]int, error) {
	var out []int
	for _, be := range m.encoders {
		if be.column >= len(values) {
			return nil, fmt.Errorf("record has %d values, column %d is missing", len(values), be.column)
		}
		bits, err := be.enc.Encode(values[be.column])
		if err != nil {
			return nil, err
		}
		for _, b := range bits {
			out = append(out, be.offset+b)
		}
	}
	return out, nil
}
