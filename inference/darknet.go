package inference

import (
	"context"
	"image"
	"os"
	"sync"
	"time"

	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DarknetNetwork runs a Darknet YOLO model (cfg + weights) through the
// OpenCV DNN module.
type DarknetNetwork struct {
	mu          sync.Mutex
	net         gocv.Net
	outputNames []string
	inputSize   int
	log         *zap.Logger
}

// NewDarknetNetwork loads a Darknet model.
//
// Arguments:
//   - cfgPath: Path to the network definition, e.g. yolov3.cfg.
//   - weightsPath: Path to the trained weights, e.g. yolov3.weights.
//   - inputSize: Square input edge in pixels, a multiple of 32.
//   - log: The logger, nil for no logging.
//
// Returns:
//   - *DarknetNetwork: The loaded network.
//   - error: If the model cannot be read.
func NewDarknetNetwork(cfgPath, weightsPath string, inputSize int, log *zap.Logger) (*DarknetNetwork, error) {
	if log == nil {
		log = zap.NewNop()
	}

	for _, path := range []string{cfgPath, weightsPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "darknet model")
		}
	}

	log.Info("loading YOLO from disk", zap.String("cfg", cfgPath), zap.String("weights", weightsPath))
	net := gocv.ReadNetFromDarknet(cfgPath, weightsPath)
	if net.Empty() {
		return nil, errors.Errorf("reading darknet network from %s and %s", cfgPath, weightsPath)
	}

	// Output layers are the ones nothing else consumes. Ids are 1-based.
	names := net.GetLayerNames()
	ids := net.GetUnconnectedOutLayers()
	outputs := make([]string, 0, len(ids))
	for _, id := range ids {
		if id < 1 || id > len(names) {
			net.Close()
			return nil, errors.Errorf("unconnected output layer id %d out of range", id)
		}
		outputs = append(outputs, names[id-1])
	}

	return &DarknetNetwork{
		net:         net,
		outputNames: outputs,
		inputSize:   inputSize,
		log:         log,
	}, nil
}

// OutputNames returns the output layer names in forward order.
func (d *DarknetNetwork) OutputNames() []string {
	return d.outputNames
}

// Forward implements Network.
func (d *DarknetNetwork) Forward(ctx context.Context, img gocv.Mat) ([][]postprocess.RawPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, errors.New("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(d.inputSize, d.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	start := time.Now()
	mats := d.net.ForwardLayers(d.outputNames)
	defer func() {
		for i := range mats {
			mats[i].Close()
		}
	}()
	d.log.Debug("YOLO forward pass", zap.Duration("took", time.Since(start)))

	outputs := make([][]postprocess.RawPrediction, 0, len(mats))
	for i, m := range mats {
		data, err := m.DataPtrFloat32()
		if err != nil {
			return nil, errors.Wrapf(err, "reading output layer %s", d.outputNames[i])
		}
		predictions, err := predictionsFromRows(data, m.Rows(), m.Cols())
		if err != nil {
			return nil, errors.Wrapf(err, "output layer %s", d.outputNames[i])
		}
		outputs = append(outputs, predictions)
	}
	return outputs, nil
}

// Close implements Network.
func (d *DarknetNetwork) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
