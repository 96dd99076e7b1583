// Package detector - Detection pipeline turning raw network output into person detections.
package detector

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidThreshold is returned when a threshold falls outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
	// ErrUnknownTarget is returned when the target class is not in the label set.
	ErrUnknownTarget = errors.New("target class not found in labels")
)

// Config represents the configuration of a detection pipeline.
type Config struct {
	// ConfidenceThreshold filters detections at or below this confidence level.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMSThreshold controls the Non-Maximum Suppression IoU threshold.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// TargetClass is the only class name kept by the pipeline.
	TargetClass string `json:"target_class" yaml:"target_class"`

	// Workers bounds how many output tensors are decoded concurrently. Values
	// below 2 decode sequentially.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultConfig returns the person detector defaults.
//
// Returns:
//   - Config: confidence 0.5, NMS 0.3, target "person", sequential decode.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.3,
		TargetClass:         "person",
		Workers:             1,
	}
}

// Validate checks the thresholds and target class.
func (c Config) Validate() error {
	if !inUnitRange(c.ConfidenceThreshold) {
		return errors.Wrapf(ErrInvalidThreshold, "confidence threshold %v", c.ConfidenceThreshold)
	}
	if !inUnitRange(c.NMSThreshold) {
		return errors.Wrapf(ErrInvalidThreshold, "nms threshold %v", c.NMSThreshold)
	}
	if c.TargetClass == "" {
		return errors.New("target class must be set")
	}
	return nil
}

// inUnitRange reports whether v is a number within [0, 1]. NaN is rejected.
func inUnitRange(v float32) bool {
	return !math32.IsNaN(v) && v >= 0 && v <= 1
}
