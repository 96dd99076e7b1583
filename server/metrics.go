package server

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics holds the service's prometheus collectors on a private registry.
type Metrics struct {
	Registry   *prometheus.Registry
	Requests   *prometheus.CounterVec
	Inference  prometheus.Histogram
	Persons    prometheus.Counter
	MemoryMB   prometheus.Gauge
	CPUPercent prometheus.Gauge
}

// NewMetrics registers the service collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detector_requests_total",
			Help: "Detection requests by transport and outcome.",
		}, []string{"transport", "outcome"}),
		Inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detector_inference_seconds",
			Help:    "Time spent in the network and pipeline per frame.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		Persons: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detector_detections_total",
			Help: "Target detections kept after suppression.",
		}),
		MemoryMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "detector_memory_usage_megabytes",
			Help: "Resident memory of the service in megabytes.",
		}),
		CPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "detector_cpu_usage_percent",
			Help: "CPU usage of the service in percent.",
		}),
	}
	m.Registry.MustRegister(m.Requests, m.Inference, m.Persons, m.MemoryMB, m.CPUPercent)
	return m
}

// SampleProcess records the current process memory and CPU usage once.
func (m *Metrics) SampleProcess(p *process.Process) error {
	mem, err := p.MemoryInfo()
	if err != nil {
		return err
	}
	m.MemoryMB.Set(float64(mem.RSS) / 1024 / 1024)

	cpu, err := p.CPUPercent()
	if err != nil {
		return err
	}
	m.CPUPercent.Set(cpu)
	return nil
}

// WatchProcess samples this process every interval until ctx is done.
func (m *Metrics) WatchProcess(ctx context.Context, interval time.Duration, log *zap.Logger) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("process metrics disabled", zap.Error(err))
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.SampleProcess(p); err != nil {
			log.Debug("sampling process", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
