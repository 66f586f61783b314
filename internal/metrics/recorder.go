package metrics

import "time"

// FlushOutcome enumerates flush results for counters.
type FlushOutcome string

const (
	FlushApplied   FlushOutcome = "applied"
	FlushNoop      FlushOutcome = "noop"
	FlushViolation FlushOutcome = "violation"
)

// Recorder defines observability hooks for configuration runs. All methods
// must be safe to call on NoopRecorder.
type Recorder interface {
	ObserveFlushDuration(d time.Duration)
	IncFlushOutcome(outcome FlushOutcome)
	IncAttachment(kind string)
	IncItemApplied(item string)
	ObserveModuleDuration(module string, d time.Duration, success bool)
	SetPendingDeliveries(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFlushDuration(time.Duration)                {}
func (NoopRecorder) IncFlushOutcome(FlushOutcome)                      {}
func (NoopRecorder) IncAttachment(string)                              {}
func (NoopRecorder) IncItemApplied(string)                             {}
func (NoopRecorder) ObserveModuleDuration(string, time.Duration, bool) {}
func (NoopRecorder) SetPendingDeliveries(int)                          {}
