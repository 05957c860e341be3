package anomaly

import (
	"math/rand"
	"testing"
)

func clusterSamples(n int) [][]float64 {
	r := rand.New(rand.NewSource(42))
	samples := make([][]float64, n)
	for i := range samples {
		samples[i] = []float64{0.01 + r.Float64()*0.005, 1.0 + r.Float64()*0.2}
	}
	return samples
}

func TestNewDetectorDefaults(t *testing.T) {
	d := NewDetector(0, 0)
	if d.threshold != 0.72 {
		t.Fatalf("expected threshold fallback 0.72, got %v", d.threshold)
	}
	if d.minSamples != 64 {
		t.Fatalf("expected min samples fallback 64, got %v", d.minSamples)
	}

	d = NewDetector(1.5, -3)
	if d.threshold != 0.72 || d.minSamples != 64 {
		t.Fatalf("expected out-of-range values to fall back, got %v/%v", d.threshold, d.minSamples)
	}
}

func TestUntrainedDetectorNeverFlags(t *testing.T) {
	d := NewDetector(0.72, 64)
	if d.Flag([]float64{100, 100}) {
		t.Fatal("expected untrained detector to pass everything")
	}
	if d.Fitted() {
		t.Fatal("expected detector to report unfitted")
	}
}

func TestTrainRequiresMinSamples(t *testing.T) {
	d := NewDetector(0.72, 64)
	if d.Train(clusterSamples(63)) {
		t.Fatal("expected training below min samples to be skipped")
	}
	if d.Fitted() {
		t.Fatal("expected detector to stay unfitted")
	}

	if !d.Train(clusterSamples(64)) {
		t.Fatal("expected training at min samples to proceed")
	}
	if !d.Fitted() || d.SampleCount() != 64 {
		t.Fatalf("expected fitted detector with 64 samples, got %v/%d", d.Fitted(), d.SampleCount())
	}
}

func TestFlagThresholdBounds(t *testing.T) {
	samples := clusterSamples(128)

	// Isolation scores live strictly inside (0,1), so a near-zero
	// threshold flags everything and a near-one threshold nothing.
	loose := NewDetector(0.01, 64)
	if !loose.Train(samples) {
		t.Fatal("train failed")
	}
	if !loose.Flag(samples[0]) {
		t.Fatal("expected near-zero threshold to flag an in-distribution sample")
	}

	strict := NewDetector(0.99, 64)
	if !strict.Train(samples) {
		t.Fatal("train failed")
	}
	if strict.Flag(samples[0]) {
		t.Fatal("expected near-one threshold to pass an in-distribution sample")
	}
}

func TestRetrainReplacesForest(t *testing.T) {
	d := NewDetector(0.72, 64)
	if !d.Train(clusterSamples(64)) {
		t.Fatal("first train failed")
	}
	if !d.Train(clusterSamples(128)) {
		t.Fatal("retrain failed")
	}
	if d.SampleCount() != 128 {
		t.Fatalf("expected sample count to follow retrain, got %d", d.SampleCount())
	}
}
