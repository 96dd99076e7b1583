package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var labels = []string{"person", "bicycle", "car"}

func TestTargetClass(t *testing.T) {
	isPerson := TargetClass(labels, "person")

	assert.True(t, isPerson(0))
	assert.False(t, isPerson(1))
	assert.False(t, isPerson(-1))
	assert.False(t, isPerson(3))
	assert.False(t, TargetClass(nil, "person")(0))
}

func TestFilter(t *testing.T) {
	records := []DetectionRecord{
		Decode(prediction(0.5, 0.5, 0.2, 0.2, 0.9, 0.1, 0.0), 100, 100),
		Decode(prediction(0.2, 0.2, 0.1, 0.1, 0.1, 0.0, 0.95), 100, 100),
		Decode(prediction(0.7, 0.7, 0.1, 0.1, 0.6, 0.2, 0.1), 100, 100),
		Decode(prediction(0.3, 0.3, 0.1, 0.1, 0.4, 0.1, 0.1), 100, 100),
	}

	candidates := Filter(records, TargetClass(labels, "person"), 0.5)

	if assert.Len(t, candidates, 2) {
		assert.Equal(t, float32(0.9), candidates[0].Confidence)
		assert.Equal(t, 50, candidates[0].Box.CenterX)
		assert.Equal(t, float32(0.6), candidates[1].Confidence, "input order is kept")
		assert.Equal(t, 0, candidates[1].Class)
	}
}

func TestFilter_ThresholdIsExclusive(t *testing.T) {
	const threshold = float32(0.5)
	// Smallest float32 step above the threshold.
	const epsilon = float32(1e-7)

	at := Decode(prediction(0.5, 0.5, 0.2, 0.2, threshold), 100, 100)
	above := Decode(prediction(0.5, 0.5, 0.2, 0.2, threshold+epsilon), 100, 100)

	assert.Empty(t, Filter([]DetectionRecord{at}, AnyClass, threshold))
	assert.Len(t, Filter([]DetectionRecord{above}, AnyClass, threshold), 1)
}

func TestFilter_Empty(t *testing.T) {
	candidates := Filter(nil, AnyClass, 0.5)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}
