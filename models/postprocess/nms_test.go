package postprocess

import (
	"testing"

	"github.com/nvr-ai/go-person-detector/common"
	"github.com/stretchr/testify/assert"
)

// box builds a pixel box from its top-left corner and size.
func box(x, y, w, h int) common.BoundingBox {
	return common.BoundingBox{
		Width: w, Height: h,
		CenterX: x + w/2, CenterY: y + h/2,
		XStart: x, XEnd: x + w,
		YStart: y, YEnd: y + h,
	}
}

func TestSuppressIndices(t *testing.T) {
	tests := []struct {
		name        string
		boxes       []common.BoundingBox
		confidences []float32
		iou         float32
		expected    []int
	}{
		{
			name:        "overlapping pair keeps the higher confidence",
			boxes:       []common.BoundingBox{box(40, 40, 20, 20), box(41, 40, 20, 20)},
			confidences: []float32{0.6, 0.9},
			iou:         0.4,
			expected:    []int{1},
		},
		{
			name:        "disjoint pair keeps both",
			boxes:       []common.BoundingBox{box(15, 15, 10, 10), box(75, 75, 10, 10)},
			confidences: []float32{0.6, 0.9},
			iou:         0.4,
			expected:    []int{1, 0},
		},
		{
			name:        "overlap below threshold keeps both",
			boxes:       []common.BoundingBox{box(40, 40, 20, 20), box(45, 40, 20, 20)},
			confidences: []float32{0.9, 0.6},
			iou:         0.7, // actual IoU is 0.6
			expected:    []int{0, 1},
		},
		{
			name:        "overlap equal to threshold is kept",
			boxes:       []common.BoundingBox{box(40, 40, 20, 20), box(45, 40, 20, 20)},
			confidences: []float32{0.9, 0.6},
			iou:         0.6,
			expected:    []int{0, 1},
		},
		{
			name: "suppressed boxes do not suppress others",
			boxes: []common.BoundingBox{
				box(30, 40, 20, 20),
				box(35, 40, 20, 20),
				box(38, 40, 20, 20),
			},
			confidences: []float32{0.9, 0.8, 0.7},
			iou:         0.5,
			expected:    []int{0, 2},
		},
		{
			name:        "equal confidences keep first appearance",
			boxes:       []common.BoundingBox{box(40, 40, 20, 20), box(40, 40, 20, 20)},
			confidences: []float32{0.8, 0.8},
			iou:         0.5,
			expected:    []int{0},
		},
		{
			name:        "scores at the score threshold are dropped",
			boxes:       []common.BoundingBox{box(15, 15, 10, 10), box(75, 75, 10, 10)},
			confidences: []float32{0.3, 0.9},
			iou:         0.5,
			expected:    []int{1},
		},
		{
			name:        "zero-area boxes never overlap others",
			boxes:       []common.BoundingBox{box(40, 40, 20, 20), box(50, 50, 0, 0)},
			confidences: []float32{0.9, 0.8},
			iou:         0.0,
			expected:    []int{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SuppressIndices(tt.boxes, tt.confidences, 0.3, tt.iou))
		})
	}
}

func TestSuppressIndices_Empty(t *testing.T) {
	keep := SuppressIndices(nil, nil, 0.5, 0.4)
	assert.NotNil(t, keep)
	assert.Empty(t, keep)
}

func TestSuppressIndices_PanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() {
		SuppressIndices([]common.BoundingBox{box(40, 40, 20, 20)}, nil, 0.5, 0.4)
	})
}

func TestSuppress_KeepsPairsAligned(t *testing.T) {
	candidates := []Candidate{
		{Box: box(15, 15, 10, 10), Confidence: 0.7},
		{Box: box(40, 40, 20, 20), Confidence: 0.6},
		{Box: box(41, 40, 20, 20), Confidence: 0.95},
	}

	kept := Suppress(candidates, 0.5, 0.4)

	assert.Equal(t, []Candidate{candidates[2], candidates[0]}, kept)
}

func TestSuppress_Idempotent(t *testing.T) {
	candidates := []Candidate{
		{Box: box(30, 40, 20, 20), Confidence: 0.9},
		{Box: box(35, 40, 20, 20), Confidence: 0.8},
		{Box: box(38, 40, 20, 20), Confidence: 0.7},
		{Box: box(5, 5, 10, 10), Confidence: 0.85},
		{Box: box(6, 5, 10, 10), Confidence: 0.85},
	}

	once := Suppress(candidates, 0.5, 0.5)
	twice := Suppress(once, 0.5, 0.5)

	assert.Equal(t, once, twice)
}

func TestSuppress_Empty(t *testing.T) {
	assert.Empty(t, Suppress(nil, 0.5, 0.4))
	assert.Empty(t, Suppress([]Candidate{}, 0.5, 0.4))
}

func TestApplyNMS_ClassAware(t *testing.T) {
	candidates := []Candidate{
		{Box: box(40, 40, 20, 20), Confidence: 0.9, Class: 0},
		{Box: box(40, 40, 20, 20), Confidence: 0.8, Class: 2},
		{Box: box(41, 40, 20, 20), Confidence: 0.7, Class: 0},
	}

	aware := ApplyNMS(candidates, &NMSConfig{IoUThreshold: 0.5, ClassAware: true})
	assert.Equal(t, []Candidate{candidates[0], candidates[1]}, aware)

	agnostic := ApplyNMS(candidates, &NMSConfig{IoUThreshold: 0.5})
	assert.Equal(t, []Candidate{candidates[0]}, agnostic)
}
