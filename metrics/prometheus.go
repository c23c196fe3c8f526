package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports q402 counters and latency histograms.
type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the q402 collectors on the given
// registerer. A nil registerer uses the default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "q402",
			Name:      "operations_total",
			Help:      "q402 verify/settle outcomes",
		},
		[]string{"operation", "network", "result"},
	)

	latencies := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "q402",
			Name:      "operation_duration_seconds",
			Help:      "q402 operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "network"},
	)

	if err := reg.Register(counters); err != nil {
		return nil, err
	}
	if err := reg.Register(latencies); err != nil {
		return nil, err
	}

	return &PrometheusRecorder{counters: counters, latencies: latencies}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"operation": name,
		"network":   labels["network"],
		"result":    labels["result"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.latencies.With(prometheus.Labels{
		"operation": name,
		"network":   labels["network"],
	}).Observe(d.Seconds())
}
