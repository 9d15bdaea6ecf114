package util

import (
	"math"
	"sort"
	"sync"
)

// ----------------------------------------------------------------------------
// Distribution statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation and range of values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: values[0], Max: values[0], MinMaxRatio: 1}
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	var squares float64
	for _, v := range values {
		squares += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(squares / float64(len(values)))

	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly entries are spread over shards.
// The quality is 1 for a perfectly even spread and approaches 0 for a skewed one.
func NewDistributionStats(shardSizes []float64) DistributionStats {
	stats := NewStats(shardSizes)

	var cv float64 // coefficient of variation
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// histogramBoundaries are the inclusive upper bounds of the buckets: powers of four
// from 16 B to 4 GiB. A final bucket takes everything larger.
var histogramBoundaries = func() []int {
	var b []int
	for size := 16; size <= 1<<32; size *= 4 {
		b = append(b, size)
	}
	return b
}()

// SizeHistogram tracks the distribution of value sizes in exponential buckets.
//
// Thread-safe: All methods are safe for concurrent use
type SizeHistogram struct {
	mu      sync.RWMutex
	buckets []int64
	count   int64
	sum     int64
}

func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{buckets: make([]int64, len(histogramBoundaries)+1)}
}

// AddSample records one size.
func (h *SizeHistogram) AddSample(size int) {
	i := sort.SearchInts(histogramBoundaries, size)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets[i]++
	h.count++
	h.sum += int64(size)
}

// Count returns the number of samples.
func (h *SizeHistogram) Count() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// AverageSize returns the exact mean of all samples.
func (h *SizeHistogram) AverageSize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median size.
func (h *SizeHistogram) MedianEstimate() int {
	return h.Percentile(50)
}

// Percentile estimates the given percentile (0-100) as the middle of the bucket it
// falls into.
func (h *SizeHistogram) Percentile(p int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 || p < 0 || p > 100 {
		return 0
	}

	target := max(int64(math.Ceil(float64(h.count)*float64(p)/100)), 1)
	var seen int64
	for i, n := range h.buckets {
		seen += n
		if seen < target {
			continue
		}
		switch {
		case i == 0:
			return histogramBoundaries[0] / 2
		case i < len(histogramBoundaries):
			return (histogramBoundaries[i-1] + histogramBoundaries[i]) / 2
		default:
			return histogramBoundaries[len(histogramBoundaries)-1] * 2
		}
	}
	return int(h.sum / h.count)
}
