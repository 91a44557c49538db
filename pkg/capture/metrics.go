package capture

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricFramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "frames_captured_total",
		Help:      "Frames captured across all drivers.",
	})
	metricCaptureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "capture_failures_total",
		Help:      "Capture operations that returned an error.",
	})
	metricFrameBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "frame_bytes_total",
		Help:      "Total bytes of captured frame payloads.",
	})
	metricVideosEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "genstudio",
		Name:      "videos_encoded_total",
		Help:      "Videos successfully written by the encoder pipeline.",
	})
)

// Metrics tracks capture pipeline counters for one driver.
type Metrics struct {
	FramesCaptured  atomic.Int64
	FrameBytes      atomic.Int64
	CaptureFailures atomic.Int64
	StateUpdates    atomic.Int64
	VideosEncoded   atomic.Int64

	CaptureLatencySum   atomic.Int64 // nanoseconds sum for averaging
	CaptureLatencyCount atomic.Int64
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordFrame tracks one captured frame.
func (m *Metrics) RecordFrame(size int, latency time.Duration) {
	metricFramesCaptured.Inc()
	metricFrameBytes.Add(float64(size))
	if m == nil {
		return
	}
	m.FramesCaptured.Add(1)
	m.FrameBytes.Add(int64(size))
	m.CaptureLatencySum.Add(latency.Nanoseconds())
	m.CaptureLatencyCount.Add(1)
}

// RecordFailure tracks a failed capture operation.
func (m *Metrics) RecordFailure() {
	metricCaptureFailures.Inc()
	if m == nil {
		return
	}
	m.CaptureFailures.Add(1)
}

// RecordStateUpdate tracks one applied state update.
func (m *Metrics) RecordStateUpdate() {
	if m == nil {
		return
	}
	m.StateUpdates.Add(1)
}

// RecordVideo tracks one encoded video.
func (m *Metrics) RecordVideo() {
	metricVideosEncoded.Inc()
	if m == nil {
		return
	}
	m.VideosEncoded.Add(1)
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	avgLatency := time.Duration(0)
	if count := m.CaptureLatencyCount.Load(); count > 0 {
		avgLatency = time.Duration(m.CaptureLatencySum.Load() / count)
	}
	return MetricsSnapshot{
		FramesCaptured:        m.FramesCaptured.Load(),
		FrameBytes:            m.FrameBytes.Load(),
		CaptureFailures:       m.CaptureFailures.Load(),
		StateUpdates:          m.StateUpdates.Load(),
		VideosEncoded:         m.VideosEncoded.Load(),
		AverageCaptureLatency: avgLatency,
	}
}

// MetricsSnapshot is a point-in-time copy of capture metrics.
type MetricsSnapshot struct {
	FramesCaptured        int64
	FrameBytes            int64
	CaptureFailures       int64
	StateUpdates          int64
	VideosEncoded         int64
	AverageCaptureLatency time.Duration
}
