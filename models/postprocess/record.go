package postprocess

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-person-detector/common"
	"github.com/pkg/errors"
)

const (
	// ClassOffset is the index of the first class score in a RawPrediction.
	// Index 4 holds the objectness score, which the class policy ignores.
	ClassOffset = 5
)

// ErrPredictionLength is returned when a prediction's class segment does not
// match the label set.
var ErrPredictionLength = errors.New("prediction length does not match label set")

// DetectionRecord is the decoded view of one RawPrediction.
type DetectionRecord struct {
	// ClassConfidences is a copy of the class score segment.
	ClassConfidences []float32
	// Center is the normalized box center.
	Center common.Point
	// Size is the normalized box width and height.
	Size common.Point
	// ImageWidth and ImageHeight are used to denormalize the box.
	ImageWidth, ImageHeight int
	// BestClassID is the index of the highest class score, first one on ties.
	BestClassID int
	// BestClassConfidence is the score at BestClassID.
	BestClassConfidence float32
}

// Decode interprets a raw prediction as class confidences plus box geometry.
//
// The prediction must hold the four box values, the objectness score and at
// least one class score. Anything shorter means the network and the decoder
// disagree on the output layout, so Decode panics.
//
// Arguments:
//   - raw: The prediction vector of one anchor.
//   - imageWidth: The source image width in pixels.
//   - imageHeight: The source image height in pixels.
//
// Returns:
//   - The decoded record with its best class precomputed.
func Decode(raw RawPrediction, imageWidth, imageHeight int) DetectionRecord {
	if len(raw) <= ClassOffset {
		panic(fmt.Sprintf("postprocess: prediction has %d values, need more than %d", len(raw), ClassOffset))
	}

	scores := make([]float32, len(raw)-ClassOffset)
	copy(scores, raw[ClassOffset:])

	bestID := 0
	best := math32.Inf(-1)
	for i, score := range scores {
		// Strict comparison keeps the first maximum and never picks NaN.
		if score > best {
			best = score
			bestID = i
		}
	}

	return DetectionRecord{
		ClassConfidences:    scores,
		Center:              common.Point{X: raw[0], Y: raw[1]},
		Size:                common.Point{X: raw[2], Y: raw[3]},
		ImageWidth:          imageWidth,
		ImageHeight:         imageHeight,
		BestClassID:         bestID,
		BestClassConfidence: scores[bestID],
	}
}

// DecodeChecked decodes a prediction after checking that its class segment
// holds exactly numClasses scores.
//
// Returns:
//   - The decoded record.
//   - ErrPredictionLength, wrapped with the offending sizes, on a mismatch.
func DecodeChecked(raw RawPrediction, numClasses, imageWidth, imageHeight int) (DetectionRecord, error) {
	if numClasses <= 0 || len(raw) != ClassOffset+numClasses {
		return DetectionRecord{}, errors.Wrapf(ErrPredictionLength,
			"got %d values, want %d for %d classes", len(raw), ClassOffset+numClasses, numClasses)
	}
	return Decode(raw, imageWidth, imageHeight), nil
}

// Box returns the pixel-space bounding box of the record.
func (r DetectionRecord) Box() common.BoundingBox {
	return common.NewBoundingBox(r.Center, r.Size, r.ImageWidth, r.ImageHeight)
}
