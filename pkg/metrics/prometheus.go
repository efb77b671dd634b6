package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus is a Recorder backed by client_golang collectors.
type Prometheus struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	items    *prometheus.CounterVec
	gatherer prometheus.Gatherer
}

// NewPrometheus creates the collectors and registers them on reg. A nil reg
// uses a fresh private registry, which keeps tests independent of the
// global default registry.
func NewPrometheus(reg *prometheus.Registry) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	p := &Prometheus{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindshard",
			Name:      "operations_total",
			Help:      "Completed operations by component, operation and outcome.",
		}, []string{"component", "op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mindshard",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency by component and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component", "op"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindshard",
			Name:      "items_total",
			Help:      "Items processed by component, such as chunks ingested or entries flushed.",
		}, []string{"component", "name"}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{p.ops, p.duration, p.items} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveOp implements Recorder.
func (p *Prometheus) ObserveOp(component, op string, d time.Duration, err error) {
	p.ops.WithLabelValues(component, op, Outcome(err)).Inc()
	p.duration.WithLabelValues(component, op).Observe(d.Seconds())
}

// AddCount implements Recorder.
func (p *Prometheus) AddCount(component, name string, n int) {
	if n <= 0 {
		return
	}
	p.items.WithLabelValues(component, name).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
