// Package telemetry defines the feed the governor consumes metric samples
// and raw health-probe results from. The governor never computes metrics
// itself; an external collector pushes them.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/governor/internal/core/domain"
)

// Sample is one per-dependency metrics observation.
type Sample struct {
	DependencyID string    `json:"dependency_id"`
	ErrorRate    float64   `json:"error_rate"`
	LatencyMs    float64   `json:"latency_ms"`
	QueueDepth   int       `json:"queue_depth"`
	Timestamp    time.Time `json:"timestamp"`
}

// ProbeResult is one raw health-probe observation.
type ProbeResult struct {
	DependencyID string              `json:"dependency_id"`
	Status       domain.HealthStatus `json:"status"`
	Latency      time.Duration       `json:"latency"`
	Error        string              `json:"error,omitempty"`
}

// Source supplies telemetry to the control loop. Implementations must
// return promptly; the loop polls on a ticker.
type Source interface {
	// NextSamples drains the metric samples received since the last call
	NextSamples(ctx context.Context) ([]Sample, error)

	// NextProbes drains the probe results received since the last call
	NextProbes(ctx context.Context) ([]ProbeResult, error)
}

// QueueSource is an in-process Source fed by Push calls. Used when no Redis
// feed is configured and by tests.
type QueueSource struct {
	mu      sync.Mutex
	samples []Sample
	probes  []ProbeResult
}

// NewQueueSource creates an empty queue source.
func NewQueueSource() *QueueSource {
	return &QueueSource{}
}

// PushSample enqueues a metric sample.
func (q *QueueSource) PushSample(s Sample) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	q.samples = append(q.samples, s)
}

// PushProbe enqueues a probe result.
func (q *QueueSource) PushProbe(p ProbeResult) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.probes = append(q.probes, p)
}

// NextSamples drains the queued samples.
func (q *QueueSource) NextSamples(ctx context.Context) ([]Sample, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.samples
	q.samples = nil
	return out, nil
}

// NextProbes drains the queued probe results.
func (q *QueueSource) NextProbes(ctx context.Context) ([]ProbeResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.probes
	q.probes = nil
	return out, nil
}
