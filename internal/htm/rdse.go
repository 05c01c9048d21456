package htm

import (
	"fmt"
	"math"
	"slices"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/anomalystream/internal/params"
)

// RDSEConfig configures a RandomDistributedScalarEncoder.
type RDSEConfig struct {
	W          int
	N          int
	Resolution float64
	Seed       int64
}

func rdseConfig(fe params.FieldEncoding) RDSEConfig {
	cfg := RDSEConfig{W: fe.W, N: fe.N, Seed: defaultRDSESeed}
	if fe.Seed != nil {
		cfg.Seed = *fe.Seed
	}
	switch {
	case fe.Resolution != nil:
		cfg.Resolution = *fe.Resolution
	case fe.NumBuckets > 0 && fe.MinVal != nil && fe.MaxVal != nil && *fe.MaxVal > *fe.MinVal:
		cfg.Resolution = (*fe.MaxVal - *fe.MinVal) / float64(fe.NumBuckets)
	}
	return cfg
}

// RDSE is a random distributed scalar encoder. Values are bucketed by
// resolution relative to the first value seen. Bucket b activates the hashed
// positions of the window [b, b+w), so neighboring buckets share w-1 bits.
type RDSE struct {
	cfg       RDSEConfig
	offset    float64
	hasOffset bool
	cache     *cache.Cache
}

func NewRDSE(cfg RDSEConfig) (*RDSE, error) {
	if cfg.W <= 0 {
		cfg.W = defaultW
	}
	if cfg.N <= 0 {
		cfg.N = defaultRDSEN
	}
	if cfg.Resolution <= 0 {
		cfg.Resolution = 1.0
	}
	if cfg.N < 2*cfg.W {
		return nil, fmt.Errorf("random distributed scalar encoder needs n >= 2w, got n=%d w=%d", cfg.N, cfg.W)
	}
	return &RDSE{cfg: cfg, cache: newBucketCache()}, nil
}

func (e *RDSE) Width() int { return e.cfg.N }

func (e *RDSE) Encode(value any) ([]int, error) {
	v, err := asFloat(value)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("random distributed scalar encoder cannot encode %v", v)
	}
	if !e.hasOffset {
		e.offset = v
		e.hasOffset = true
	}

	bucket := int(math.Round((v - e.offset) / e.cfg.Resolution))
	return cachedBits(e.cache, bucket, e.bucketBits), nil
}

// bucketBits returns the distinct positions of the bucket's window, sorted.
// Hash collisions inside a window are resolved by probing forward.
func (e *RDSE) bucketBits(bucket int) []int {
	taken := make(map[int]struct{}, e.cfg.W)
	bits := make([]int, 0, e.cfg.W)
	for j := range e.cfg.W {
		pos := e.position(bucket + j)
		for {
			if _, dup := taken[pos]; !dup {
				break
			}
			pos = (pos + 1) % e.cfg.N
		}
		taken[pos] = struct{}{}
		bits = append(bits, pos)
	}
	slices.Sort(bits)
	return bits
}

func (e *RDSE) position(i int) int {
	h := splitmix64(uint64(e.cfg.Seed)<<32 ^ uint64(int64(i)))
	return int(h % uint64(e.cfg.N))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
