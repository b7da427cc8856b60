// Package metrics exports generator counters to Prometheus.
//
// The generator keeps its own atomic counters; the collector reads a snapshot
// on every scrape instead of mirroring each increment, so the hot path pays
// nothing for Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/qianshe/snowflake"
)

const namespace = "snowflake"

// Source is the part of *snowflake.Generator the collector needs.
type Source interface {
	GetMetrics() snowflake.Metrics
	WorkerID() int64
	DatacenterID() int64
}

type counter struct {
	desc  *prometheus.Desc
	value func(snowflake.Metrics) int64
}

// Collector implements prometheus.Collector over a generator.
type Collector struct {
	src      Source
	counters []counter
	info     *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector labelled with the generator's node.
func NewCollector(src Source) *Collector {
	labels := prometheus.Labels{
		"worker":     strconv.FormatInt(src.WorkerID(), 10),
		"datacenter": strconv.FormatInt(src.DatacenterID(), 10),
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}

	return &Collector{
		src: src,
		counters: []counter{
			{desc("ids_generated_total", "IDs issued on the structured path."),
				func(m snowflake.Metrics) int64 { return m.Generated }},
			{desc("clock_backward_total", "Clock rollbacks observed, recovered or not."),
				func(m snowflake.Metrics) int64 { return m.ClockBackward }},
			{desc("clock_backward_errors_total", "Clock rollbacks that failed the call."),
				func(m snowflake.Metrics) int64 { return m.ClockBackwardErr }},
			{desc("sequence_overflow_total", "Milliseconds in which all 4096 sequence values were used."),
				func(m snowflake.Metrics) int64 { return m.SequenceOverflow }},
			{desc("wait_microseconds_total", "Time spent waiting for the clock, in microseconds."),
				func(m snowflake.Metrics) int64 { return m.WaitTimeUs }},
			{desc("fallback_ids_total", "IDs issued in the fallback shape."),
				func(m snowflake.Metrics) int64 { return m.FallbackIssued }},
			{desc("spin_timeouts_total", "Sequence exhaustion waits that hit the spin limit."),
				func(m snowflake.Metrics) int64 { return m.SpinTimeouts }},
		},
		info: desc("generator_info", "Generator node identity; always 1."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, ctr := range c.counters {
		ch <- ctr.desc
	}
	ch <- c.info
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.src.GetMetrics()
	for _, ctr := range c.counters {
		ch <- prometheus.MustNewConstMetric(ctr.desc, prometheus.CounterValue, float64(ctr.value(m)))
	}
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1)
}

// HTTP holds request metrics for the service's HTTP surface.
type HTTP struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

func newHTTP() *HTTP {
	return &HTTP{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Registry bundles the registry served on /metrics with the HTTP metrics
// registered in it.
type Registry struct {
	*prometheus.Registry
	HTTP *HTTP
}

// NewRegistry returns a registry with the generator collector, HTTP request
// metrics and the standard Go runtime and process collectors.
func NewRegistry(src Source) *Registry {
	reg := prometheus.NewRegistry()
	h := newHTTP()
	reg.MustRegister(
		NewCollector(src),
		h.Requests,
		h.Duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Registry{Registry: reg, HTTP: h}
}
