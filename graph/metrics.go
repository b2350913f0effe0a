package graph

import "github.com/prometheus/client_golang/prometheus"

// DynamoDB operation names used for metrics and StoreError.Op.
const (
	opPutItem    = "PutItem"
	opQuery      = "Query"
	opDeleteItem = "DeleteItem"
	opUpdateItem = "UpdateItem"
)

// Fan-out phases.
const (
	phaseShards = "shards"
	phaseExpand = "expand"
	phaseDelete = "delete"
)

// Metrics instruments store requests and fan-out widths.
// A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	fanout   *prometheus.HistogramVec
}

// NewMetrics creates the graph collectors and registers them on reg.
// Pass a nil Registerer to create unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graph",
			Name:      "store_requests_total",
			Help:      "DynamoDB requests issued by the graph, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		fanout: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graph",
			Name:      "fanout_width",
			Help:      "Number of concurrent requests launched per fan-out.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.fanout)
	}
	return m
}

func (m *Metrics) observeRequest(op string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) observeFanout(phase string, width int) {
	if m == nil {
		return
	}
	m.fanout.WithLabelValues(phase).Observe(float64(width))
}
