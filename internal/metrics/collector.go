package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	recordsCreated prometheus.Counter
	recordsDeleted prometheus.Counter
	searches       prometheus.Counter
	chunkFetches   prometheus.Counter

	createLatency prometheus.Histogram
	searchLatency prometheus.Histogram
	deleteLatency prometheus.Histogram

	recordCount prometheus.Gauge

	errorCounter   *prometheus.CounterVec
	requestCounter *prometheus.CounterVec
}

func NewCollector() *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer)
}

// NewCollectorWith registers the collector's metrics against reg
// instead of the default registry.
func NewCollectorWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		recordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vectorstored",
			Subsystem: "records",
			Name:      "created_total",
			Help:      "Total number of records created",
		}),

		recordsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vectorstored",
			Subsystem: "records",
			Name:      "deleted_total",
			Help:      "Total number of records deleted",
		}),

		searches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vectorstored",
			Subsystem: "operations",
			Name:      "searches_total",
			Help:      "Total number of search operations",
		}),

		chunkFetches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vectorstored",
			Subsystem: "operations",
			Name:      "chunk_fetches_total",
			Help:      "Total number of chunk retrieval operations",
		}),

		createLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vectorstored",
			Subsystem: "latency",
			Name:      "create_seconds",
			Help:      "Latency of record creation",
			Buckets:   prometheus.DefBuckets,
		}),

		searchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vectorstored",
			Subsystem: "latency",
			Name:      "search_seconds",
			Help:      "Latency of search operations",
			Buckets:   prometheus.DefBuckets,
		}),

		deleteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vectorstored",
			Subsystem: "latency",
			Name:      "delete_seconds",
			Help:      "Latency of delete operations",
			Buckets:   prometheus.DefBuckets,
		}),

		recordCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vectorstored",
			Subsystem: "records",
			Name:      "count",
			Help:      "Current number of stored records",
		}),

		errorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vectorstored",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total errors by method",
			},
			[]string{"method", "error_type"},
		),

		requestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vectorstored",
				Subsystem: "requests",
				Name:      "total",
				Help:      "Total requests by method",
			},
			[]string{"method", "status"},
		),
	}
}

func (c *Collector) IncrementCounter(name string, value float64) {
	switch name {
	case "records_created":
		c.recordsCreated.Add(value)
	case "records_deleted":
		c.recordsDeleted.Add(value)
	case "searches":
		c.searches.Add(value)
	case "chunk_fetches":
		c.chunkFetches.Add(value)
	}
}

// RecordLatency observes the duration histogram for method. Request
// outcome counting is separate (IncrementRequest / IncrementError) so
// failed calls are not also tallied as successes.
func (c *Collector) RecordLatency(method string, duration time.Duration) {
	seconds := duration.Seconds()

	switch method {
	case "create_record", "create_text_record":
		c.createLatency.Observe(seconds)
	case "search_records", "search_text_records", "filter_records":
		c.searchLatency.Observe(seconds)
	case "delete_records":
		c.deleteLatency.Observe(seconds)
	}
}

func (c *Collector) IncrementRequest(method string, status string) {
	c.requestCounter.WithLabelValues(method, status).Inc()
}

func (c *Collector) IncrementError(method string, errorType string) {
	c.errorCounter.WithLabelValues(method, errorType).Inc()
	c.requestCounter.WithLabelValues(method, "error").Inc()
}

func (c *Collector) SetRecordCount(count int64) {
	c.recordCount.Set(float64(count))
}
