package metrics

import (
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg            *prom.Registry
	flushDuration  prom.Histogram
	flushOutcomes  *prom.CounterVec
	attachments    *prom.CounterVec
	itemsApplied   *prom.CounterVec
	moduleDuration *prom.HistogramVec
	pending        prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.flushDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: "modlay",
		Name:      "flush_duration_seconds",
		Help:      "Duration of overlay flushes",
		Buckets:   prom.DefBuckets,
	})
	pr.flushOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "modlay",
		Name:      "flush_outcomes_total",
		Help:      "Overlay flushes by outcome",
	}, []string{"outcome"})
	pr.attachments = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "modlay",
		Name:      "capability_attachments_total",
		Help:      "Capability attachments delivered to the engine by kind",
	}, []string{"kind"})
	pr.itemsApplied = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "modlay",
		Name:      "items_applied_total",
		Help:      "Policy items applied to modules",
	}, []string{"item"})
	pr.moduleDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "modlay",
		Name:      "module_configure_duration_seconds",
		Help:      "Duration of individual module configuration",
		Buckets:   prom.DefBuckets,
	}, []string{"module", "result"})
	pr.pending = prom.NewGauge(prom.GaugeOpts{
		Namespace: "modlay",
		Name:      "pending_deliveries",
		Help:      "Attachments buffered but not yet delivered at the last checkpoint",
	})
	reg.MustRegister(pr.flushDuration, pr.flushOutcomes, pr.attachments, pr.itemsApplied, pr.moduleDuration, pr.pending)
	return pr
}

func (p *PrometheusRecorder) ObserveFlushDuration(d time.Duration) {
	if p == nil || p.flushDuration == nil {
		return
	}
	p.flushDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFlushOutcome(outcome FlushOutcome) {
	if p == nil || p.flushOutcomes == nil {
		return
	}
	p.flushOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncAttachment(kind string) {
	if p == nil || p.attachments == nil {
		return
	}
	p.attachments.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncItemApplied(item string) {
	if p == nil || p.itemsApplied == nil {
		return
	}
	p.itemsApplied.WithLabelValues(item).Inc()
}

func (p *PrometheusRecorder) ObserveModuleDuration(module string, d time.Duration, success bool) {
	if p == nil || p.moduleDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.moduleDuration.WithLabelValues(module, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPendingDeliveries(n int) {
	if p == nil || p.pending == nil {
		return
	}
	p.pending.Set(float64(n))
}

// Registry returns the registry the collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

// WriteTextfile writes the current metric values in the text exposition
// format, atomically, for the node exporter textfile collector.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
