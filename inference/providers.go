package inference

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ExecutionProvider selects the ONNX Runtime backend a session runs on.
type ExecutionProvider string

const (
	// ProviderCPU is the default CPU execution provider.
	ProviderCPU ExecutionProvider = "cpu"
	// ProviderCUDA uses NVIDIA CUDA.
	ProviderCUDA ExecutionProvider = "cuda"
	// ProviderCoreML uses Apple CoreML on macOS.
	ProviderCoreML ExecutionProvider = "coreml"
	// ProviderOpenVINO uses Intel OpenVINO.
	ProviderOpenVINO ExecutionProvider = "openvino"
)

// appendProvider registers p on options. The CPU provider is always
// available and needs no registration.
//
// Arguments:
//   - options: The session options to modify.
//   - p: The execution provider; empty means CPU.
//   - deviceID: The accelerator index for CUDA.
//
// Returns:
//   - error: If the provider is unknown or unavailable in the runtime.
func appendProvider(options *ort.SessionOptions, p ExecutionProvider, deviceID int) error {
	switch p {
	case "", ProviderCPU:
		return nil
	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "creating cuda options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
			return errors.Wrap(err, "configuring cuda")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "enabling cuda")
	case ProviderCoreML:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "enabling coreml")
	case ProviderOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
			"precision":   "FP32",
		}), "enabling openvino")
	default:
		return errors.Errorf("unknown execution provider %q", p)
	}
}
