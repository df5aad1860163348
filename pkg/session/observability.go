package session

import "context"

// MetricsSink receives observability signals from the Supervisor and Health
// Checker. The session package depends only on this narrow interface;
// pkg/observability provides the Prometheus-backed implementation.
type MetricsSink interface {
	SetConnectionState(state Phase)
	SetRetryCount(n int)
	SetQueueSize(n int)
	IncQueuePressureAlerts()
	IncStalenessAlerts()
	IncFramesSent()
	IncFramesReceived()
}

// Tracer starts one span per connection attempt. The returned function
// closes it, tagging outcome ("connected", "failed", "stopped") and the retry count at
// the time of the attempt.
type Tracer interface {
	StartAttempt(ctx context.Context, attemptID string) (context.Context, func(outcome string, retryCount int))
}

type noopMetrics struct{}

func (noopMetrics) SetConnectionState(Phase)    {}
func (noopMetrics) SetRetryCount(int)           {}
func (noopMetrics) SetQueueSize(int)            {}
func (noopMetrics) IncQueuePressureAlerts()     {}
func (noopMetrics) IncStalenessAlerts()         {}
func (noopMetrics) IncFramesSent()              {}
func (noopMetrics) IncFramesReceived()          {}

type noopTracer struct{}

func (noopTracer) StartAttempt(ctx context.Context, _ string) (context.Context, func(string, int)) {
	return ctx, func(string, int) {}
}
