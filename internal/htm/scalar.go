package htm

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/anomalystream/internal/params"
)

const (
	defaultW        = 21
	defaultScalarN  = 400
	defaultRDSEN    = 400
	defaultMinVal   = 0.0
	defaultMaxVal   = 100.0
	defaultRDSESeed = 42
	hoursPerDay     = 24.0
)

// bucketCache memoizes bucket index to active bits. Entries never expire and
// no janitor goroutine is started.
func newBucketCache() *cache.Cache {
	return cache.New(cache.NoExpiration, 0)
}

func cachedBits(c *cache.Cache, bucket int, compute func(int) []int) []int {
	key := strconv.Itoa(bucket)
	if v, ok := c.Get(key); ok {
		if bits, ok := v.([]int); ok {
			return bits
		}
	}
	bits := compute(bucket)
	c.Set(key, bits, cache.NoExpiration)
	return bits
}

func asFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", value)
	}
}

// TimeOfDayEncoder is a periodic scalar encoder over the hour of the day.
type TimeOfDayEncoder struct {
	w     int
	n     int
	loc   *time.Location
	cache *cache.Cache
}

// NewTimeOfDayEncoder builds an encoder with w active bits where radius is
// the span in hours that moves the representation by w bits.
func NewTimeOfDayEncoder(w int, radius float64, loc *time.Location) (*TimeOfDayEncoder, error) {
	if w <= 0 || radius <= 0 {
		return nil, fmt.Errorf("time of day encoder needs positive width and radius, got w=%d radius=%v", w, radius)
	}
	n := int(math.Ceil(float64(w) * hoursPerDay / radius))
	if n <= w {
		n = w + 1
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TimeOfDayEncoder{w: w, n: n, loc: loc, cache: newBucketCache()}, nil
}

func (e *TimeOfDayEncoder) Width() int { return e.n }

func (e *TimeOfDayEncoder) Encode(value any) ([]int, error) {
	ts, ok := value.(time.Time)
	if !ok {
		return nil, fmt.Errorf("time of day encoder expects a timestamp, got %T", value)
	}
	ts = ts.In(e.loc)
	hours := float64(ts.Hour()) + float64(ts.Minute())/60 + float64(ts.Second())/3600

	bucket := int(math.Floor(hours/hoursPerDay*float64(e.n))) % e.n
	return cachedBits(e.cache, bucket, func(start int) []int {
		bits := make([]int, e.w)
		for j := range e.w {
			bits[j] = (start + j) % e.n
		}
		slices.Sort(bits)
		return bits
	}), nil
}

// ScalarConfig configures a ScalarEncoder.
type ScalarConfig struct {
	W          int
	N          int
	MinVal     float64
	MaxVal     float64
	Resolution float64
	Clip       bool
}

func scalarConfig(fe params.FieldEncoding, clip bool) ScalarConfig {
	cfg := ScalarConfig{W: fe.W, N: fe.N, MinVal: defaultMinVal, MaxVal: defaultMaxVal, Clip: clip}
	if fe.MinVal != nil {
		cfg.MinVal = *fe.MinVal
	}
	if fe.MaxVal != nil {
		cfg.MaxVal = *fe.MaxVal
	}
	if fe.Resolution != nil {
		cfg.Resolution = *fe.Resolution
	}
	return cfg
}

// ScalarEncoder maps a bounded value to a contiguous run of w bits.
type ScalarEncoder struct {
	cfg   ScalarConfig
	cache *cache.Cache
}

func NewScalarEncoder(cfg ScalarConfig) (*ScalarEncoder, error) {
	if cfg.W <= 0 {
		cfg.W = defaultW
	}
	if cfg.MaxVal <= cfg.MinVal {
		return nil, fmt.Errorf("scalar encoder needs maxval > minval, got [%v, %v]", cfg.MinVal, cfg.MaxVal)
	}
	if cfg.N <= 0 {
		if cfg.Resolution > 0 {
			cfg.N = int(math.Ceil((cfg.MaxVal-cfg.MinVal)/cfg.Resolution)) + cfg.W
		} else {
			cfg.N = defaultScalarN
		}
	}
	if cfg.N <= cfg.W {
		return nil, fmt.Errorf("scalar encoder needs n > w, got n=%d w=%d", cfg.N, cfg.W)
	}
	return &ScalarEncoder{cfg: cfg, cache: newBucketCache()}, nil
}

func (e *ScalarEncoder) Width() int { return e.cfg.N }

func (e *ScalarEncoder) Encode(value any) ([]int, error) {
	v, err := asFloat(value)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, fmt.Errorf("scalar encoder cannot encode NaN")
	}
	if v < e.cfg.MinVal || v > e.cfg.MaxVal {
		if !e.cfg.Clip {
			return nil, fmt.Errorf("value %v outside [%v, %v]", v, e.cfg.MinVal, e.cfg.MaxVal)
		}
		v = math.Min(math.Max(v, e.cfg.MinVal), e.cfg.MaxVal)
	}

	span := e.cfg.N - e.cfg.W
	bucket := int(math.Round((v - e.cfg.MinVal) / (e.cfg.MaxVal - e.cfg.MinVal) * float64(span)))
	return cachedBits(e.cache, bucket, func(start int) []int {
		bits := make([]int, e.cfg.W)
		for j := range e.cfg.W {
			bits[j] = start + j
		}
		return bits
	}), nil
}
