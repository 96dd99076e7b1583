// Package inference - Detection networks producing raw YOLO predictions.
package inference

import (
	"context"

	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// Network runs a detection model over one image and returns every output
// layer's predictions in layer order.
type Network interface {
	// Forward runs the model.
	//
	// Arguments:
	//   - ctx: Checked before the forward pass starts.
	//   - img: The BGR image as read by gocv.IMRead / gocv.IMDecode.
	//
	// Returns:
	//   - One slice of predictions per output layer.
	//   - An error if preprocessing or inference fails.
	Forward(ctx context.Context, img gocv.Mat) ([][]postprocess.RawPrediction, error)
	// Close releases the model.
	Close() error
}

// predictionsFromRows copies a rows×width float32 buffer, which is owned by
// a Mat or an ORT value that is about to be released, into predictions.
func predictionsFromRows(data []float32, rows, width int) ([]postprocess.RawPrediction, error) {
	owned := make([]float32, rows*width)
	copy(owned, data)

	return postprocess.PredictionsFromTensor(tensor.New(
		tensor.WithShape(rows, width),
		tensor.WithBacking(owned),
	))
}
