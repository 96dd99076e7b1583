package events

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// WebhookPublisher POSTs each event as JSON to a URL.
type WebhookPublisher struct {
	client *resty.Client
	url    string
}

// NewWebhookPublisher creates a publisher for url. A zero timeout means 5s.
func NewWebhookPublisher(url string, timeout time.Duration) *WebhookPublisher {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &WebhookPublisher{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

// Publish implements Publisher. Non-2xx replies are errors.
func (w *WebhookPublisher) Publish(ctx context.Context, e Event) error {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(e).
		Post(w.url)
	if err != nil {
		return errors.Wrapf(err, "posting event %s", e.ID)
	}
	if resp.IsError() {
		return errors.Errorf("webhook returned %s for event %s", resp.Status(), e.ID)
	}
	return nil
}

// Close implements Publisher.
func (w *WebhookPublisher) Close() error {
	return nil
}

// Multi fans an event out to several publishers and returns the first error.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Publisher.
func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
