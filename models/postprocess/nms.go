package postprocess

import (
	"fmt"
	"sort"

	"github.com/nvr-ai/go-person-detector/common"
	"github.com/nvr-ai/go-person-detector/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression, exclusive.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Candidates at or below this score are dropped before suppression.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// If true, suppress only within the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// SuppressIndices performs greedy Non-Maximum Suppression over parallel box
// and confidence slices.
//
// Boxes scoring at or below scoreThreshold are discarded, the rest are
// visited by descending confidence (ties keep their input order), and every
// box whose IoU with an already kept box exceeds iouThreshold is suppressed.
// Mismatched slice lengths are a caller bug and panic.
//
// Arguments:
//   - boxes: The candidate boxes.
//   - confidences: The confidence of each box, confidences[i] belongs to boxes[i].
//   - scoreThreshold: The exclusive score floor.
//   - iouThreshold: The exclusive overlap ceiling.
//
// Returns:
//   - Indices into boxes of the kept detections, highest confidence first.
func SuppressIndices(boxes []common.BoundingBox, confidences []float32, scoreThreshold, iouThreshold float32) []int {
	if len(boxes) != len(confidences) {
		panic(fmt.Sprintf("postprocess: %d boxes but %d confidences", len(boxes), len(confidences)))
	}

	rects := make([]images.Rect, len(boxes))
	for i, b := range boxes {
		rects[i] = b.Rect()
	}
	return greedy(rects, confidences, scoreThreshold, iouThreshold, nil)
}

// Suppress runs greedy NMS over filtered candidates of a single class.
//
// Returns:
//   - The kept candidates, highest confidence first. If no candidates are
//     provided, returns an empty slice.
func Suppress(candidates []Candidate, scoreThreshold, iouThreshold float32) []Candidate {
	return ApplyNMS(candidates, &NMSConfig{
		IoUThreshold:   iouThreshold,
		ScoreThreshold: scoreThreshold,
	})
}

// ApplyNMS filters overlapping candidates using Non-Maximum Suppression.
//
// Arguments:
//   - candidates: The candidates in any order.
//   - config: NMS configuration. With ClassAware set, boxes only suppress
//     boxes of the same class. Otherwise every overlapping box is suppressed.
//
// Returns:
//   - The kept candidates, highest confidence first.
func ApplyNMS(candidates []Candidate, config *NMSConfig) []Candidate {
	if len(candidates) == 0 {
		return []Candidate{}
	}

	rects := make([]images.Rect, len(candidates))
	confidences := make([]float32, len(candidates))
	for i, c := range candidates {
		rects[i] = c.Box.Rect()
		confidences[i] = c.Confidence
	}

	var sameGroup func(i, j int) bool
	if config.ClassAware {
		sameGroup = func(i, j int) bool { return candidates[i].Class == candidates[j].Class }
	}

	keep := greedy(rects, confidences, config.ScoreThreshold, config.IoUThreshold, sameGroup)
	filtered := make([]Candidate, len(keep))
	for i, idx := range keep {
		filtered[i] = candidates[idx]
	}
	return filtered
}

// greedy is the shared suppression loop. sameGroup, when set, limits
// suppression to pairs it accepts.
func greedy(
	rects []images.Rect,
	confidences []float32,
	scoreThreshold, iouThreshold float32,
	sameGroup func(i, j int) bool,
) []int {
	order := make([]int, 0, len(rects))
	for i, c := range confidences {
		if c > scoreThreshold {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return []int{}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return confidences[order[a]] > confidences[order[b]]
	})

	keep := make([]int, 0, len(order))
	used := make([]bool, len(order))

	for i := 0; i < len(order); i++ {
		if used[i] {
			continue
		}

		anchor := order[i]
		keep = append(keep, anchor)
		used[i] = true

		for j := i + 1; j < len(order); j++ {
			if used[j] {
				continue
			}
			if sameGroup != nil && !sameGroup(anchor, order[j]) {
				continue
			}

			// Suppress if IoU exceeds threshold
			if images.CalculateIoU(rects[anchor], rects[order[j]]) > iouThreshold {
				used[j] = true
			}
		}
	}

	return keep
}
