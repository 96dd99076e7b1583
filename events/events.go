// Package events - Publishes person detections to a message bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nvr-ai/go-person-detector/models/postprocess"
)

// Event is one frame in which the target class was detected.
type Event struct {
	ID         string                  `json:"id"`
	Time       time.Time               `json:"time"`
	Source     string                  `json:"source"`
	Target     string                  `json:"target"`
	Detections []postprocess.Detection `json:"detections"`
}

// Encode returns the JSON payload of e.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
