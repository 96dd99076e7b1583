package inference

import (
	"context"

	"github.com/nvr-ai/go-person-detector/detector"
	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"gocv.io/x/gocv"
)

// FrameDetector runs a network over a frame and reduces its output to
// target detections in frame pixel coordinates.
type FrameDetector struct {
	Network  Network
	Pipeline *detector.Pipeline
}

// NewFrameDetector pairs a network with a pipeline.
func NewFrameDetector(network Network, pipeline *detector.Pipeline) *FrameDetector {
	return &FrameDetector{Network: network, Pipeline: pipeline}
}

// Detect runs one frame through the network and pipeline.
//
// Arguments:
//   - ctx: Cancels the forward pass before it starts.
//   - img: The BGR frame.
//
// Returns:
//   - []postprocess.Detection: The kept target detections.
//   - error: If inference fails or the output layout is unexpected.
func (d *FrameDetector) Detect(ctx context.Context, img gocv.Mat) ([]postprocess.Detection, error) {
	outputs, err := d.Network.Forward(ctx, img)
	if err != nil {
		return nil, err
	}
	return d.Pipeline.Run(outputs, img.Cols(), img.Rows())
}

// Close closes the network.
func (d *FrameDetector) Close() error {
	return d.Network.Close()
}
