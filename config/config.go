// Package config - File and environment configuration for the detector binaries.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/nvr-ai/go-person-detector/detector"
	"github.com/nvr-ai/go-person-detector/models"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Backend names the network runtime.
type Backend string

const (
	// BackendDarknet loads yolov3.cfg/yolov3.weights through OpenCV DNN.
	BackendDarknet Backend = "darknet"
	// BackendONNX loads an exported ONNX model through ONNX Runtime.
	BackendONNX Backend = "onnx"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DETECTOR_"

// NetworkConfig locates the detection network and its labels.
type NetworkConfig struct {
	Backend     Backend `json:"backend" yaml:"backend"`
	ConfigPath  string  `json:"config_path" yaml:"config_path"`
	WeightsPath string  `json:"weights_path" yaml:"weights_path"`
	ModelPath   string  `json:"model_path" yaml:"model_path"`
	// LabelsPath is a newline-delimited names file. Empty uses the built-in
	// 80 COCO names in YOLO order.
	LabelsPath string `json:"labels_path" yaml:"labels_path"`
	// InputSize is the square network input edge in pixels.
	InputSize int `json:"input_size" yaml:"input_size"`
	// ONNX tensor names.
	InputName   string   `json:"input_name" yaml:"input_name"`
	OutputNames []string `json:"output_names" yaml:"output_names"`
	// SharedLibraryPath points at the onnxruntime shared library.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// ExecutionProvider is cpu, cuda, coreml or openvino for the onnx backend.
	ExecutionProvider string `json:"execution_provider" yaml:"execution_provider"`
	DeviceID          int    `json:"device_id" yaml:"device_id"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string `json:"addr" yaml:"addr"`
	OutputDir      string `json:"output_dir" yaml:"output_dir"`
	MaxUploadBytes int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// EventsConfig configures where detection events go: Kafka, a webhook and
// a SQLite history, in any combination. Leaving all unset disables events.
type EventsConfig struct {
	BootstrapServers string `json:"bootstrap_servers" yaml:"bootstrap_servers"`
	Topic            string `json:"topic" yaml:"topic"`
	WebhookURL       string `json:"webhook_url" yaml:"webhook_url"`
	HistoryPath      string `json:"history_path" yaml:"history_path"`
}

// Enabled reports whether events should be published.
func (e EventsConfig) Enabled() bool {
	return e.BootstrapServers != "" || e.WebhookURL != "" || e.HistoryPath != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Development bool   `json:"development" yaml:"development"`
	Level       string `json:"level" yaml:"level"`
}

// Config is the complete configuration of the detector binaries.
type Config struct {
	Detector detector.Config `json:"detector" yaml:"detector"`
	Network  NetworkConfig   `json:"network" yaml:"network"`
	Server   ServerConfig    `json:"server" yaml:"server"`
	Events   EventsConfig    `json:"events" yaml:"events"`
	Log      LogConfig       `json:"log" yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Detector: detector.DefaultConfig(),
		Network: NetworkConfig{
			Backend:     BackendDarknet,
			ConfigPath:  "yolo-coco/yolov3.cfg",
			WeightsPath: "yolo-coco/yolov3.weights",
			InputSize:   416,
			InputName:   "images",
			OutputNames: []string{"output"},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			OutputDir:      "captures",
			MaxUploadBytes: 10 << 20,
		},
		Events: EventsConfig{
			Topic: "person-detections",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path skips the file.
//
// Arguments:
//   - path: The YAML file path.
//
// Returns:
//   - Config: The validated configuration.
//   - error: If reading, parsing or validation fails.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadEnv loads KEY=VALUE pairs from .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "load env file %s", path)
		}
	}
	return nil
}

// ApplyEnv overrides fields from DETECTOR_* variables.
//
// Arguments:
//   - lookup: The variable lookup, usually os.LookupEnv.
//
// Returns:
//   - error: If a numeric or boolean variable does not parse.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	floats := map[string]*float32{
		"CONFIDENCE_THRESHOLD": &c.Detector.ConfidenceThreshold,
		"NMS_THRESHOLD":        &c.Detector.NMSThreshold,
	}
	for key, dst := range floats {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 32)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*dst = float32(f)
		}
	}

	ints := map[string]*int{
		"WORKERS":    &c.Detector.Workers,
		"INPUT_SIZE": &c.Network.InputSize,
	}
	for key, dst := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "%s%s", EnvPrefix, key)
			}
			*dst = n
		}
	}

	strs := map[string]*string{
		"TARGET_CLASS":        &c.Detector.TargetClass,
		"CONFIG_PATH":         &c.Network.ConfigPath,
		"WEIGHTS_PATH":        &c.Network.WeightsPath,
		"MODEL_PATH":          &c.Network.ModelPath,
		"LABELS_PATH":         &c.Network.LabelsPath,
		"SHARED_LIBRARY_PATH": &c.Network.SharedLibraryPath,
		"EXECUTION_PROVIDER":  &c.Network.ExecutionProvider,
		"SERVER_ADDR":         &c.Server.Addr,
		"OUTPUT_DIR":          &c.Server.OutputDir,
		"LOG_LEVEL":           &c.Log.Level,
		"KAFKA_BROKERS":       &c.Events.BootstrapServers,
		"KAFKA_TOPIC":         &c.Events.Topic,
		"WEBHOOK_URL":         &c.Events.WebhookURL,
		"HISTORY_PATH":        &c.Events.HistoryPath,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if v, ok := get("BACKEND"); ok {
		c.Network.Backend = Backend(strings.ToLower(v))
	}
	if v, ok := get("LOG_DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "%sLOG_DEVELOPMENT", EnvPrefix)
		}
		c.Log.Development = b
	}
	return nil
}

// Validate checks the detector settings and the network backend.
func (c Config) Validate() error {
	if err := c.Detector.Validate(); err != nil {
		return err
	}
	switch c.Network.Backend {
	case BackendDarknet, BackendONNX:
	default:
		return errors.Errorf("unknown network backend %q", c.Network.Backend)
	}
	if c.Network.InputSize <= 0 || c.Network.InputSize%32 != 0 {
		return errors.Errorf("input size %d must be a positive multiple of 32", c.Network.InputSize)
	}
	if c.Events.BootstrapServers != "" && c.Events.Topic == "" {
		return errors.New("events topic must be set when brokers are configured")
	}
	return nil
}

// Labels loads the configured label set.
func (c Config) Labels() (*models.OutputClassSet, error) {
	if c.Network.LabelsPath == "" {
		return models.YOLOClasses, nil
	}
	return models.LoadLabelsFile(c.Network.LabelsPath)
}
