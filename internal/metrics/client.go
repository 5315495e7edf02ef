package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ClientCollector instruments outgoing RPC calls. It satisfies the
// vectorstore.Recorder interface.
type ClientCollector struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func NewClientCollector(namespace string) *ClientCollector {
	return NewClientCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewClientCollectorWith registers against reg instead of the default
// registry.
func NewClientCollectorWith(namespace string, reg prometheus.Registerer) *ClientCollector {
	if namespace == "" {
		namespace = "rpc_client"
	}
	factory := promauto.With(reg)
	return &ClientCollector{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "total",
				Help:      "Total RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "calls",
				Name:      "duration_seconds",
				Help:      "RPC call latency by method",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

func (c *ClientCollector) Record(method string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.calls.WithLabelValues(method, status).Inc()
	c.latency.WithLabelValues(method).Observe(duration.Seconds())
}
