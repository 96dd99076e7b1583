package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-person-detector/detector"
	"github.com/nvr-ai/go-person-detector/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, detector.DefaultConfig(), cfg.Detector)
	assert.Equal(t, BackendDarknet, cfg.Network.Backend)
	assert.Equal(t, 416, cfg.Network.InputSize)
	assert.False(t, cfg.Events.Enabled())
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
detector:
  confidence_threshold: 0.6
  nms_threshold: 0.45
  target_class: car
  workers: 3
network:
  backend: onnx
  model_path: models/yolov3.onnx
  input_size: 640
  output_names: [boxes]
server:
  addr: ":9090"
log:
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, detector.Config{
		ConfidenceThreshold: 0.6,
		NMSThreshold:        0.45,
		TargetClass:         "car",
		Workers:             3,
	}, cfg.Detector)
	assert.Equal(t, BackendONNX, cfg.Network.Backend)
	assert.Equal(t, "models/yolov3.onnx", cfg.Network.ModelPath)
	assert.Equal(t, 640, cfg.Network.InputSize)
	assert.Equal(t, []string{"boxes"}, cfg.Network.OutputNames)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "captures", cfg.Server.OutputDir, "unset fields keep defaults")
	assert.True(t, cfg.Log.Development)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "detector: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "threshold.yaml", "detector:\n  confidence_threshold: 2\n"))
	assert.ErrorIs(t, err, detector.ErrInvalidThreshold)

	_, err = Load(writeFile(t, "backend.yaml", "network:\n  backend: tflite\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "size.yaml", "network:\n  input_size: 400\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "events.yaml", "events:\n  bootstrap_servers: kafka:9092\n  topic: \"\"\n"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DETECTOR_CONFIDENCE_THRESHOLD": "0.7",
		"DETECTOR_NMS_THRESHOLD":        " 0.4 ",
		"DETECTOR_TARGET_CLASS":         "dog",
		"DETECTOR_WORKERS":              "2",
		"DETECTOR_BACKEND":              "ONNX",
		"DETECTOR_LABELS_PATH":          "coco.names",
		"DETECTOR_LOG_DEVELOPMENT":      "true",
		"DETECTOR_SERVER_ADDR":          "",
		"DETECTOR_EXECUTION_PROVIDER":   "cuda",
		"DETECTOR_KAFKA_BROKERS":        "kafka:9092",
		"DETECTOR_WEBHOOK_URL":          "http://alerts.local/hook",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, float32(0.7), cfg.Detector.ConfidenceThreshold)
	assert.Equal(t, float32(0.4), cfg.Detector.NMSThreshold)
	assert.Equal(t, "dog", cfg.Detector.TargetClass)
	assert.Equal(t, 2, cfg.Detector.Workers)
	assert.Equal(t, BackendONNX, cfg.Network.Backend)
	assert.Equal(t, "coco.names", cfg.Network.LabelsPath)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "cuda", cfg.Network.ExecutionProvider)
	assert.True(t, cfg.Events.Enabled())
	assert.Equal(t, "person-detections", cfg.Events.Topic)
	assert.Equal(t, "http://alerts.local/hook", cfg.Events.WebhookURL)
	assert.Equal(t, ":8080", cfg.Server.Addr, "empty variables are ignored")
}

func TestApplyEnv_ParseErrors(t *testing.T) {
	for _, key := range []string{"DETECTOR_NMS_THRESHOLD", "DETECTOR_WORKERS", "DETECTOR_LOG_DEVELOPMENT"} {
		t.Run(key, func(t *testing.T) {
			cfg := Default()
			err := cfg.ApplyEnv(func(k string) (string, bool) {
				if k == key {
					return "not-a-value", true
				}
				return "", false
			})
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, ".env", "DETECTOR_TARGET_CLASS=bicycle\n")
	t.Setenv("DETECTOR_TARGET_CLASS", "")
	require.NoError(t, os.Unsetenv("DETECTOR_TARGET_CLASS"))

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bicycle", cfg.Detector.TargetClass)
}

func TestLabels(t *testing.T) {
	cfg := Default()
	set, err := cfg.Labels()
	require.NoError(t, err)
	assert.Same(t, models.YOLOClasses, set)

	cfg.Network.LabelsPath = writeFile(t, "custom.names", "cat\nperson\n")
	set, err = cfg.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "person"}, set.Names())
}
