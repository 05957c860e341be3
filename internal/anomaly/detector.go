// Package anomaly flags fills whose prints look wrong against recent
// history. An isolation forest is retrained periodically on audited fill
// features; between trainings the forest is read-only and scoring is cheap
// enough to sit on the fill path.
package anomaly

import (
	"log"
	"sync"

	"github.com/narumiruna/go-iforest/pkg/iforest"
)

type Detector struct {
	threshold  float64
	minSamples int

	mu      sync.Mutex
	forest  *iforest.IsolationForest
	trained int
}

// NewDetector builds an untrained detector. Observations scoring at or
// above threshold are flagged; out-of-range thresholds fall back to 0.72.
func NewDetector(threshold float64, minSamples int) *Detector {
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.72
	}
	if minSamples <= 0 {
		minSamples = 64
	}
	return &Detector{threshold: threshold, minSamples: minSamples}
}

// Train fits a fresh forest on the feature matrix and swaps it in. Returns
// false without touching the current forest when there is not enough data.
func (d *Detector) Train(features [][]float64) bool {
	if len(features) < d.minSamples {
		return false
	}
	forest := iforest.New()
	forest.Fit(features)

	d.mu.Lock()
	d.forest = forest
	d.trained = len(features)
	d.mu.Unlock()

	log.Printf("Anomaly detector trained on %d samples", len(features))
	return true
}

// Flag scores one observation. An untrained detector never flags, so fills
// pass through unchallenged until the first training completes.
func (d *Detector) Flag(features []float64) bool {
	d.mu.Lock()
	forest := d.forest
	d.mu.Unlock()
	if forest == nil || len(features) == 0 {
		return false
	}

	scores := forest.Score([][]float64{features})
	if len(scores) != 1 {
		return false
	}
	return scores[0] >= d.threshold
}

func (d *Detector) Fitted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forest != nil
}

// SampleCount reports the size of the last training set.
func (d *Detector) SampleCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trained
}
