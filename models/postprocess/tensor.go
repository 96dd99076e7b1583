package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// PredictionsFromTensor splits a detection output tensor into per-anchor
// predictions. The tensor must be [N, 5+C] or a batch of one, [1, N, 5+C].
// float32 tensors are sliced without copying; float64 tensors are converted.
//
// Arguments:
//   - t: The output tensor.
//
// Returns:
//   - One RawPrediction per anchor row.
//   - An error if the shape or dtype is unsupported.
func PredictionsFromTensor(t tensor.Tensor) ([]RawPrediction, error) {
	shape := t.Shape()
	switch {
	case len(shape) == 2:
	case len(shape) == 3 && shape[0] == 1:
		shape = shape[1:]
	default:
		return nil, errors.Errorf("unsupported output shape %v, want [N, 5+C] or [1, N, 5+C]", t.Shape())
	}

	rows, width := shape[0], shape[1]
	if width <= ClassOffset {
		return nil, errors.Wrapf(ErrPredictionLength, "row width %d has no class scores", width)
	}

	var data []float32
	switch backing := t.Data().(type) {
	case []float32:
		data = backing
	case []float64:
		data = make([]float32, len(backing))
		for i, v := range backing {
			data[i] = float32(v)
		}
	default:
		return nil, errors.Errorf("unsupported output dtype %v", t.Dtype())
	}

	if len(data) != rows*width {
		return nil, errors.Errorf("output holds %d values, shape %v needs %d", len(data), t.Shape(), rows*width)
	}

	predictions := make([]RawPrediction, rows)
	for i := range predictions {
		off := i * width
		predictions[i] = RawPrediction(data[off : off+width : off+width])
	}
	return predictions, nil
}
