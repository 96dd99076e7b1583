// Package postprocess - Decoding, filtering and suppression of raw detector output.
package postprocess

import "github.com/nvr-ai/go-person-detector/common"

// RawPrediction is one anchor of network output:
// [center_x, center_y, width, height, objectness, class_score_0 ... class_score_{C-1}].
// Geometry is normalized to the image size. It is owned by the caller and
// never modified.
type RawPrediction []float32

// Candidate is a detection that passed the class and confidence filter.
type Candidate struct {
	// The pixel-space box of the candidate.
	Box common.BoundingBox
	// The confidence of the best class.
	Confidence float32
	// The best class index.
	Class int
}

// Detection is a final, suppressed detection result.
type Detection struct {
	// The pixel-space box of the detection.
	Box common.BoundingBox `json:"box" yaml:"box"`
	// The retained confidence score.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// The class index of the detection.
	Class int `json:"class" yaml:"class"`
	// The resolved class name, empty when no label set is known.
	Label string `json:"label" yaml:"label"`
}
