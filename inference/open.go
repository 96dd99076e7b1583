package inference

import (
	"github.com/nvr-ai/go-person-detector/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Open loads the network selected by cfg.Backend.
//
// Arguments:
//   - cfg: The network configuration.
//   - log: The logger, nil for no logging.
//
// Returns:
//   - Network: The loaded network; the caller closes it.
//   - error: If the backend is unknown or the model cannot be loaded.
func Open(cfg config.NetworkConfig, log *zap.Logger) (Network, error) {
	switch cfg.Backend {
	case config.BackendDarknet:
		return NewDarknetNetwork(cfg.ConfigPath, cfg.WeightsPath, cfg.InputSize, log)
	case config.BackendONNX:
		return NewONNXNetwork(ONNXConfig{
			ModelPath:         cfg.ModelPath,
			SharedLibraryPath: cfg.SharedLibraryPath,
			InputSize:         cfg.InputSize,
			InputName:         cfg.InputName,
			OutputNames:       cfg.OutputNames,
			Provider:          ExecutionProvider(cfg.ExecutionProvider),
			DeviceID:          cfg.DeviceID,
		}, log)
	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}
