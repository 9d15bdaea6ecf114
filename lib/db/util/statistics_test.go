package util

import (
	"math"
	"testing"

	"lukechampine.com/uint128"
)

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Errorf("Expected an empty histogram to report zero sizes")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(100) // bucket (64, 256]
	}
	for i := 0; i < 10; i++ {
		h.AddSample(20000) // bucket (16384, 65536]
	}

	if h.Count() != 100 {
		t.Errorf("Expected 100 samples, got %d", h.Count())
	}
	if got := h.AverageSize(); got != (90*100+10*20000)/100 {
		t.Errorf("Unexpected average %d", got)
	}
	if got := h.MedianEstimate(); got != (64+256)/2 {
		t.Errorf("Expected the median in the (64, 256] bucket, got %d", got)
	}
	if got := h.Percentile(95); got != (16384+65536)/2 {
		t.Errorf("Expected p95 in the (16384, 65536] bucket, got %d", got)
	}
	if got := h.Percentile(101); got != 0 {
		t.Errorf("Expected 0 for an invalid percentile, got %d", got)
	}
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if math.Abs(even.DistributionQuality-1) > 1e-9 {
		t.Errorf("Expected quality 1 for an even spread, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= 0.5 {
		t.Errorf("Expected a low quality for a skewed spread, got %f", skewed.DistributionQuality)
	}
	if skewed.Max != 40 || skewed.Min != 0 || skewed.Mean != 10 {
		t.Errorf("Unexpected stats %+v", skewed.Stats)
	}
}

func TestHashUint128(t *testing.T) {
	a := HashUint128(uint128.From64(1), 0)
	b := HashUint128(uint128.New(0, 1), 0)
	if a == b {
		t.Errorf("Expected low and high half to hash differently")
	}
	if HashUint128(uint128.From64(1), 1) == a {
		t.Errorf("Expected the seed to change the hash")
	}
	if HashUint128(uint128.From64(1), 0) != a {
		t.Errorf("Expected the hash to be deterministic")
	}
}
