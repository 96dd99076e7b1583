package inference

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/go-person-detector/models/postprocess"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ONNXConfig locates an exported YOLO model.
type ONNXConfig struct {
	ModelPath string
	// SharedLibraryPath is the onnxruntime library; empty uses the loader's
	// default search path.
	SharedLibraryPath string
	InputSize         int
	InputName         string
	OutputNames       []string
	// IntraOpThreads of 0 lets the runtime decide.
	IntraOpThreads int
	// Provider selects the execution provider, CPU when empty.
	Provider ExecutionProvider
	DeviceID int
}

// ONNXNetwork runs a YOLO model exported to ONNX with [1, N, 5+C] outputs.
type ONNXNetwork struct {
	mu      sync.Mutex
	session *Session
	size    int
	log     *zap.Logger
}

var envOnce sync.Once
var envErr error

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// NewONNXNetwork creates an ONNX Runtime session for the model.
//
// Arguments:
//   - config: The model location and tensor names.
//   - log: The logger, nil for no logging.
//
// Returns:
//   - *ONNXNetwork: The network.
//   - error: If the runtime or session cannot be created.
func NewONNXNetwork(config ONNXConfig, log *zap.Logger) (*ONNXNetwork, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(config.OutputNames) == 0 {
		return nil, errors.New("onnx network needs at least one output name")
	}
	if err := initEnvironment(config.SharedLibraryPath); err != nil {
		return nil, errors.Wrap(err, "initializing onnxruntime")
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(config.InputSize), int64(config.InputSize)))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()

	// Sets the number of threads used to parallelize execution within graph nodes.
	options.SetIntraOpNumThreads(config.IntraOpThreads)
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)
	if err := appendProvider(options, config.Provider, config.DeviceID); err != nil {
		input.Destroy()
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(config.ModelPath, []string{config.InputName}, config.OutputNames, options)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrapf(err, "creating session for %s", config.ModelPath)
	}

	log.Info("loaded onnx model", zap.String("model", config.ModelPath), zap.Int("input_size", config.InputSize), zap.String("provider", string(config.Provider)))
	return &ONNXNetwork{
		session: &Session{
			Session:    session,
			Input:      input,
			InputName:  config.InputName,
			OutputName: config.OutputNames,
		},
		size: config.InputSize,
		log:  log,
	}, nil
}

// Forward implements Network.
func (n *ONNXNetwork) Forward(ctx context.Context, img gocv.Mat) ([][]postprocess.RawPrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// ToImage converts BGR Mats to RGBA, so channels arrive in RGB order.
	rgb, err := img.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "converting mat to image")
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := PrepareInput(rgb, n.size, n.session.Input.GetData()); err != nil {
		return nil, err
	}

	start := time.Now()
	values, err := n.session.Run()
	if err != nil {
		return nil, errors.Wrap(err, "running onnx session")
	}
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	n.log.Debug("onnx forward pass", zap.Duration("took", time.Since(start)))

	outputs := make([][]postprocess.RawPrediction, 0, len(values))
	for i, v := range values {
		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, errors.Errorf("output %s is not a float32 tensor", n.session.OutputName[i])
		}
		rows, width, err := rowsAndWidth(t.GetShape())
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", n.session.OutputName[i])
		}
		predictions, err := predictionsFromRows(t.GetData(), rows, width)
		if err != nil {
			return nil, errors.Wrapf(err, "output %s", n.session.OutputName[i])
		}
		outputs = append(outputs, predictions)
	}
	return outputs, nil
}

// rowsAndWidth accepts [N, W] and [1, N, W] output shapes.
func rowsAndWidth(shape ort.Shape) (int, int, error) {
	switch {
	case len(shape) == 2:
		return int(shape[0]), int(shape[1]), nil
	case len(shape) == 3 && shape[0] == 1:
		return int(shape[1]), int(shape[2]), nil
	}
	return 0, 0, errors.Errorf("unsupported output shape %v", shape)
}

// Close implements Network.
func (n *ONNXNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.session.Close()
	return nil
}
